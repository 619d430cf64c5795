package cmd

import (
	"context"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/searchprobe/searchprobe/internal/config"
	"github.com/searchprobe/searchprobe/internal/core/backend"
	"github.com/searchprobe/searchprobe/internal/core/engine"
	"github.com/searchprobe/searchprobe/internal/core/store"
)

// services bundles the collaborators shared by search, feedback and serve.
type services struct {
	cfg    *config.Config
	store  *store.Store
	client *backend.Client
	logger *logging.Logger
}

// newServices opens the store (unless disabled) and builds the backend client.
// A store that fails to open is logged and skipped; history and caching are optional.
func newServices(ctx context.Context, cfg *config.Config, logger *logging.Logger, noStore bool) *services {
	svc := &services{cfg: cfg, logger: logger}

	if !cfg.Store.Disabled && !noStore {
		db, err := store.OpenAndMigrate(ctx, cfg.Store)
		if err != nil {
			if logger != nil {
				logger.Warn("Store unavailable, continuing without history or cache", zap.Error(err))
			}
		} else {
			svc.store = db
		}
	}

	limiter := &engine.RateLimiter{}
	if svc.store != nil {
		limiter.Store = svc.store
	} else {
		limiter.Store = &engine.MemoryRateStore{}
	}
	limiter.ApplyOverrides(cfg.RateLimits)
	limiter.ApplySafetyMargin(cfg.RateLimitMargin)

	svc.client = &backend.Client{
		BaseURL:   cfg.Backend.BaseURL,
		Client:    backend.NewHTTPClient(cfg.BackendTimeout()),
		Limiter:   limiter,
		Timeout:   cfg.BackendTimeout(),
		UserAgent: cfg.Backend.UserAgent,
	}
	return svc
}

// controllerOptions wires a SearchController to the backend and, when open, the store.
func (svc *services) controllerOptions() engine.ControllerOptions {
	opts := engine.ControllerOptions{
		Searcher: svc.client,
		Enrichment: engine.BoardOptions{
			Lookup:       svc.client,
			CacheTTL:     svc.cfg.Cache.EnrichmentTTL,
			RejectionTTL: svc.cfg.Cache.RejectionTTL,
			Workers:      svc.cfg.Enrichment.Workers,
			Logger:       svc.logger,
		},
		Feedback: svc.submitterOptions(),
		Logger:   svc.logger,
	}
	if svc.store != nil {
		opts.Enrichment.Cache = svc.store
		opts.History = svc.store
	}
	return opts
}

func (svc *services) submitterOptions() engine.SubmitterOptions {
	opts := engine.SubmitterOptions{Sender: svc.client, Logger: svc.logger}
	if svc.store != nil && svc.cfg.Feedback.Record {
		opts.Log = svc.store
	}
	return opts
}

// newController creates a controller using the shared collaborators.
func (svc *services) newController() *engine.SearchController {
	return engine.NewSearchController(svc.controllerOptions())
}

// Close releases the store.
func (svc *services) Close() {
	if svc == nil || svc.store == nil {
		return
	}
	if err := svc.store.Close(); err != nil && svc.logger != nil {
		svc.logger.Warn("Failed to close store", zap.Error(err))
	}
}
