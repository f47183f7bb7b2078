package main

import (
	"context"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/coachlatam/coachlatam/migrations"
	"github.com/coachlatam/coachlatam/pkg/pg"
)

type migrateFunc func(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, cfg pg.Config, log pg.Logger) error

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the billing database schema",
	}

	cmd.AddCommand(
		a.migrateSubcommand("up", "Apply all pending migrations", pg.Migrate),
		a.migrateSubcommand("status", "Print the migration status", pg.Status),
		a.migrateSubcommand("down", "Roll back the latest migration", pg.Rollback),
	)
	return cmd
}

func (a *app) migrateSubcommand(use, short string, run migrateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, cfg, err := a.connectPostgres(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			return run(ctx, pool, migrations.FS, cfg, a.log)
		},
	}
}
