package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tes-agency/portal/internal/storage/backend"
	"github.com/tes-agency/portal/internal/storage/postgres"
)

func newMigrateCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		Long: `Apply or roll back the PostgreSQL schema migrations.

SQLite databases migrate themselves when opened and the memory backend has
no schema, so both are reported and left alone.`,
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := postgresURL(cmd, global)
			if err != nil || url == "" {
				return err
			}
			if err := postgres.MigrateUp(url); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := postgresURL(cmd, global)
			if err != nil || url == "" {
				return err
			}
			if err := postgres.MigrateDown(url, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

// postgresURL returns the configured database URL when it selects
// PostgreSQL. For other backends it prints why there is nothing to do and
// returns "".
func postgresURL(cmd *cobra.Command, global *globalOptions) (string, error) {
	cfg, err := global.loadConfig()
	if err != nil {
		return "", fmt.Errorf("config error: %w", err)
	}
	kind, err := backend.Detect(cfg.Database.URL)
	if err != nil {
		return "", err
	}
	if kind != backend.KindPostgres {
		fmt.Fprintf(cmd.OutOrStdout(), "%s backend has no managed migrations; nothing to do\n", kind)
		return "", nil
	}
	return cfg.Database.URL, nil
}
