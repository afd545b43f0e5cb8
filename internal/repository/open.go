package repository

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/hray3182/tildy/internal/database"
)

// Open connects the configured record store. Postgres stores are migrated first.
func Open(ctx context.Context, driver, dsn string, logger *log.Logger) (RecordStore, error) {
	switch driver {
	case "postgres":
		db, err := database.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if _, err := db.Migrate(ctx, logger); err != nil {
			db.Close()
			return nil, err
		}
		return NewPostgresStore(db), nil
	case "sqlite":
		return NewSQLiteStore(dsn)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}
