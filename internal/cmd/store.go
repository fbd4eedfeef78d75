package cmd

import (
	"context"
	"fmt"

	"github.com/quizai/quizai/internal/config"
	"github.com/quizai/quizai/internal/core/store"
)

func openStore(ctx context.Context) (store.Backend, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return openBackend(ctx, cfg.Store)
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (store.Backend, error) {
	db, err := store.OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
