package store

import (
	"context"
	"embed"
	"io/fs"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLockKey serializes concurrent migrators via pg_advisory_lock.
const migrationLockKey = 74100421

// Migrate applies any pending SQL migrations in filename order. Applied
// versions are tracked in schema_migrations, and the whole pass is guarded
// by an advisory lock so concurrent loaders do not race.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store"))

	if _, err := s.pool.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return eris.Wrap(err, "store: acquire migration lock")
	}
	defer func() {
		if _, err := s.pool.Exec(ctx, `SELECT pg_advisory_unlock($1)`, migrationLockKey); err != nil {
			log.Warn("failed to release migration lock", zap.Error(err))
		}
	}()

	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return eris.Wrap(err, "store: create schema_migrations")
	}

	applied := make(map[string]bool)
	rows, err := s.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return eris.Wrap(err, "store: read applied migrations")
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return eris.Wrap(err, "store: scan migration version")
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "store: read applied migrations")
	}

	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return eris.Wrap(err, "store: list migrations")
	}
	sort.Strings(names)

	for _, name := range names {
		if applied[name] {
			continue
		}
		sql, err := migrationFS.ReadFile(name)
		if err != nil {
			return eris.Wrapf(err, "store: read migration %s", name)
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return eris.Wrapf(err, "store: begin migration %s", name)
		}
		if _, err := tx.Exec(ctx, string(sql)); err != nil {
			tx.Rollback(ctx)
			return eris.Wrapf(err, "store: apply migration %s", name)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
			tx.Rollback(ctx)
			return eris.Wrapf(err, "store: record migration %s", name)
		}
		if err := tx.Commit(ctx); err != nil {
			return eris.Wrapf(err, "store: commit migration %s", name)
		}
		log.Info("applied migration", zap.String("version", name))
	}
	return nil
}
