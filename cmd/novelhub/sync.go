package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [entity...]",
		Short: "Push documents modified since the last watermark into the search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.Context(), openOpts{})
			if err != nil {
				return err
			}
			defer rt.close()

			if len(args) == 0 {
				synced, err := rt.syncer.SyncAll(cmd.Context())
				for entity, n := range synced {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", entity, n)
				}
				return err
			}

			for _, entity := range args {
				n, err := rt.syncer.Sync(cmd.Context(), entity)
				if err != nil {
					return fmt.Errorf("sync %s: %w", entity, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", entity, n)
			}
			return nil
		},
	}
	cmd.Flags().Int("page-size", 500, "documents per sync page")
	mustBind(a.v, cmd, map[string]string{"sync.page_size": "page-size"})
	return cmd
}
