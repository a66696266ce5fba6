package main

import (
	"context"

	"github.com/urban95/accessmap-cli/internal/store"
)

// initStore opens the configured store and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store)
}
