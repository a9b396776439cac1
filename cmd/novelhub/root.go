package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"novelhub/internal/logging"
	"novelhub/pkg/utils"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        utils.Config
	log        zerolog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{v: utils.NewViper()}

	root := &cobra.Command{
		Use:           "novelhub",
		Short:         "Legacy novel catalogue migration and search index sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := utils.LoadConfig(a.v, a.configFile)
		if err != nil {
			return err
		}
		a.cfg = cfg
		a.log = logging.New(cfg.Log, cmd.ErrOrStderr())
		return nil
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (yaml, json or toml)")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.Bool("log-json", false, "log as JSON instead of console text")
	flags.String("legacy-driver", "sqlite3", "legacy database driver (sqlite3 or postgres)")
	flags.String("legacy-dsn", "", "legacy database DSN or sqlite path")
	flags.String("store-path", "", "document store directory")
	flags.String("search-path", "", "search index sqlite path")
	mustBind(a.v, root, map[string]string{
		"log.level":     "log-level",
		"log.json":      "log-json",
		"legacy.driver": "legacy-driver",
		"legacy.dsn":    "legacy-dsn",
		"store.path":    "store-path",
		"search.path":   "search-path",
	})

	root.AddCommand(
		newMigrateCommand(a),
		newSyncCommand(a),
		newReconcileCommand(a),
		newServeCommand(a),
		newTokenCommand(a),
		newExportCommand(a),
	)
	return root
}

// mustBind binds config keys to flags of cmd. Viper prefers a flag only when
// it was set, so unset flags leave env, file and defaults in charge.
func mustBind(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		f := cmd.PersistentFlags().Lookup(name)
		if f == nil {
			f = cmd.Flags().Lookup(name)
		}
		if f == nil {
			panic(fmt.Sprintf("flag %q not defined", name))
		}
		if err := v.BindPFlag(key, f); err != nil {
			panic(err)
		}
	}
}
