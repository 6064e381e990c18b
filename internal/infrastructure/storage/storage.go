package storage

import (
	"context"
	"database/sql"
	"fmt"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/ports"
)

// Open builds the configured record store, creates its schema, and returns a closer.
func Open(ctx context.Context, cfg config.DatabaseConfig) (ports.RecordStore, func() error, error) {
	var (
		store ports.RecordStore
		db    *sql.DB
	)

	switch cfg.Driver {
	case config.DriverMemory:
		store = NewMemoryRepository()
	case config.DriverPostgres:
		var err error
		db, err = OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		store = NewPostgresRepository(db)
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	closer := func() error {
		if db == nil {
			return nil
		}
		return db.Close()
	}

	if err := store.EnsureSchema(ctx); err != nil {
		_ = closer()
		return nil, nil, err
	}

	return store, closer, nil
}
