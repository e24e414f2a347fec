package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ria-hunter/internal/store"
)

// openStore builds the configured store backend. Postgres is the default;
// sqlite keeps local runs self-contained.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store: DATABASE_URL is not set")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	case "sqlite":
		path := cfg.Store.DatabaseURL
		if path == "" {
			path = "ria-hunter.db"
		}
		return store.NewSQLite(path)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Store.Driver)
	}
}
