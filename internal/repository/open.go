package repository

import (
	"context"
	"fmt"

	"promptflow/backend/internal/config"
)

// Open builds the Store selected by the configuration.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	driver, dsn, err := cfg.Database()
	if err != nil {
		return nil, err
	}

	switch driver {
	case config.DriverPostgres:
		return OpenPostgres(ctx, dsn)
	case config.DriverSQLite:
		return OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
