package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/storage/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply or roll back schema migrations.

Migrations are embedded in the binary; DATABASE_MIGRATIONS_PATH points at a
directory on disk instead. "up" also installs the job queue tables.`,
	}

	var skipRiver bool
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if err := postgres.MigrateUp(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
				return err
			}
			if !skipRiver {
				ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
				defer cancel()
				pool, err := postgres.OpenPool(ctx, cfg.Database.URL, postgres.PoolOptions{MaxConns: 2})
				if err != nil {
					return err
				}
				defer pool.Close()
				applied, err := postgres.MigrateRiver(ctx, pool)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "job queue migrations applied: %d\n", applied)
			}
			return printVersion(cmd, cfg.Database.URL, cfg.Database.MigrationsPath)
		},
	}
	up.Flags().BoolVar(&skipRiver, "skip-river", false, "do not install the job queue tables")

	down := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default 1 step)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := parseSteps(args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(opts)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if err := postgres.MigrateDown(cfg.Database.URL, cfg.Database.MigrationsPath, steps); err != nil {
				return err
			}
			return printVersion(cmd, cfg.Database.URL, cfg.Database.MigrationsPath)
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			return printVersion(cmd, cfg.Database.URL, cfg.Database.MigrationsPath)
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	steps, err := strconv.Atoi(args[0])
	if err != nil || steps < 1 {
		return 0, fmt.Errorf("steps must be a positive integer, got %q", args[0])
	}
	return steps, nil
}

func printVersion(cmd *cobra.Command, databaseURL, path string) error {
	version, dirty, err := postgres.MigrationVersion(databaseURL, path)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d (%s)\n", version, state)
	return nil
}
