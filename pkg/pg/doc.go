// Package pg bootstraps the PostgreSQL layer on top of pgx/v5: a retrying
// pool constructor, goose migrations read from an embedded filesystem, a
// readiness check, and helpers that classify *pgconn.PgError values.
//
//	cfg := config.MustLoad[pg.Config]()
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil {
//	    return err
//	}
package pg
