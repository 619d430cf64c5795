package cmd

import (
	"context"
	"errors"

	"github.com/searchprobe/searchprobe/internal/core/store"
)

// openStore opens and migrates the local store for commands that only need history
// or rate limit state.
func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Store.Disabled {
		return nil, newConfigError(errors.New("store is disabled (store.disabled=true)"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return store.OpenAndMigrate(ctx, cfg.Store)
}
