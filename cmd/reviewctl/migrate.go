package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinshin4n4n/tube-review-sub001/internal/app"
	"github.com/shinshin4n4n/tube-review-sub001/internal/config"
)

func newMigrateCmd(c *cli) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := c.setup(cmd)
			if err != nil {
				return err
			}
			if cfg.StoreBackend != config.BackendPostgres {
				return fmt.Errorf("migrate needs STORE_BACKEND=postgres, got %q", cfg.StoreBackend)
			}

			ctx := cmd.Context()
			pool, err := app.OpenPostgres(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			pending, err := app.PendingMigrations(ctx, pool)
			if err != nil {
				return fmt.Errorf("list pending migrations: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "schema is up to date")
				return nil
			}
			for _, name := range pending {
				fmt.Fprintln(out, "pending:", name)
			}
			if dryRun {
				return nil
			}
			if err := app.Migrate(ctx, pool, log); err != nil {
				return err
			}
			fmt.Fprintf(out, "applied %d migration(s)\n", len(pending))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending migrations without applying them")
	return cmd
}
