package main

import (
	"github.com/spf13/cobra"

	"novelhub/internal/migrate"
)

func newReconcileCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute novel chapter and word counts and fix drift",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.Context(), openOpts{})
			if err != nil {
				return err
			}
			defer rt.close()

			res := migrate.NewReconciler(rt.deps(a, nil), a.migrateOptions()).Reconcile(cmd.Context())
			a.log.Info().
				Int("novels", res.Total).
				Int("corrected", res.Migrated).
				Int("failed", res.Failed).
				Msg("reconcile finished")
			return writeReport(cmd.OutOrStdout(), a.cfg.Report.Path, migrate.Report{
				StartedAt:  res.StartedAt,
				FinishedAt: res.StartedAt.Add(res.Duration),
				DryRun:     a.cfg.Migration.DryRun,
				Stages:     []migrate.MigrationResult{res},
			})
		},
	}
}
