package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deskops/helpdesk-service/internal/config"
	"github.com/deskops/helpdesk-service/internal/repository"
	"github.com/deskops/helpdesk-service/internal/repository/gormstore"
)

// OpenStore opens the ticket store selected by STORE_DRIVER. The returned
// close function releases every resource the store holds.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		store, err := gormstore.Open(cfg.SQLite.DSN)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using embedded sqlite store", zap.String("dsn", cfg.SQLite.DSN))
		return store, func() { _ = store.Close() }, nil
	case config.DriverPostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pg.Pool, logger); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		return repository.NewPostgresStore(pg.Pool), pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
