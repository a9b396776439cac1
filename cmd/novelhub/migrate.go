package main

import (
	"github.com/spf13/cobra"

	"novelhub/internal/migrate"
)

func newMigrateCommand(a *app) *cobra.Command {
	var rebuildOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run the staged legacy migration",
		Long: `Runs taxonomy, content, users, ratings, bookmarks, comments, reading_lists
and stats in order. Per-record failures are reported and do not change the
exit code; only failing to open a store does.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.Context(), openOpts{legacy: !rebuildOnly})
			if err != nil {
				return err
			}
			defer rt.close()

			opts := a.migrateOptions()
			plan := migrate.Plan{
				Skip:              a.skips(),
				RebuildIndexAfter: a.cfg.Migration.RebuildIndexAfter,
			}
			if rebuildOnly {
				opts.MaxNovels = 0
			}

			report := migrate.NewOrchestrator(rt.deps(a, nil), opts, rt.syncer).Run(cmd.Context(), plan)
			a.log.Info().
				Int("stages", len(report.Stages)).
				Int("failed", report.Failed()).
				Interface("synced", report.Synced).
				Dur("took", report.FinishedAt.Sub(report.StartedAt)).
				Msg("migration finished")
			return writeReport(cmd.OutOrStdout(), a.cfg.Report.Path, report)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&rebuildOnly, "rebuild-only", false, "skip migration and only sync the search index")
	f.Bool("dry-run", false, "run every stage without writing")
	f.Int("max-novels", -1, "maximum novels to migrate (-1 unlimited, 0 reindex only)")
	f.Int("batch-size", 200, "legacy rows per page")
	f.Int("workers", 4, "records processed concurrently within a stage")
	f.Bool("rebuild-index-after", true, "sync the search index after the stages")
	f.String("report", "", "write the report to this file (.yaml/.yml or JSON)")
	keys := map[string]string{
		"migration.dry_run":             "dry-run",
		"migration.max_novels":          "max-novels",
		"migration.batch_size":          "batch-size",
		"migration.workers":             "workers",
		"migration.rebuild_index_after": "rebuild-index-after",
		"report.path":                   "report",
	}
	for _, s := range migrate.Stages {
		name := "skip-" + dashed(string(s))
		f.Bool(name, false, "skip the "+string(s)+" stage")
		keys["migration.skip."+string(s)] = name
	}
	mustBind(a.v, cmd, keys)
	return cmd
}

func (a *app) skips() map[migrate.Stage]bool {
	s := a.cfg.Migration.Skip
	return map[migrate.Stage]bool{
		migrate.StageTaxonomy:     s.Taxonomy,
		migrate.StageContent:      s.Content,
		migrate.StageUsers:        s.Users,
		migrate.StageRatings:      s.Ratings,
		migrate.StageBookmarks:    s.Bookmarks,
		migrate.StageComments:     s.Comments,
		migrate.StageReadingLists: s.ReadingLists,
		migrate.StageStats:        s.Stats,
	}
}

func dashed(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c == '_' {
			b[i] = '-'
		}
	}
	return string(b)
}
