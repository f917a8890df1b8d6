package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deskops/helpdesk-service/internal/config"
	"github.com/deskops/helpdesk-service/internal/observability"
	"github.com/deskops/helpdesk-service/internal/persistence"
	"github.com/deskops/helpdesk-service/internal/repository"
)

type env struct {
	cfg    *config.Config
	logger *zap.Logger
	store  repository.Store
	close  func()
}

// openEnv loads configuration and opens the configured store, applying
// migrations on the way.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	cfg.Postgres.RunMigrations = true

	store, closeStore, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &env{
		cfg:    cfg,
		logger: logger,
		store:  store,
		close: func() {
			closeStore()
			_ = logger.Sync()
		},
	}, nil
}
