package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/macrame/admin/internal/app/maintenance"
)

func newMaintenanceCmd(opts *rootOptions) *cobra.Command {
	maint := &cobra.Command{
		Use:   "maintenance",
		Short: "Background upkeep jobs",
	}
	maint.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run every maintenance job once and print the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.environment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			cleaner := maintenance.NewCleaner(env.db, env.services.Pages, maintenance.WithPurger(env.dbCache))
			report, runErr := cleaner.RunOnce(cmd.Context())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			return runErr
		},
	})
	return maint
}
