package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/searchprobe/searchprobe/internal/config"
	"github.com/searchprobe/searchprobe/internal/metrics"
	"github.com/searchprobe/searchprobe/internal/observability"
	"github.com/searchprobe/searchprobe/internal/server"
	"github.com/searchprobe/searchprobe/internal/server/handlers"
)

const uptimeInterval = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server exposing the session API, health probes and metrics.

Each client session (X-Session-ID header) gets its own search controller, so a
newer search from one session never discards another session's results.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read and validate the config file

The server will cleanly shut down the HTTP server and flush logs on shutdown.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	flagBindings["server.host"] = serveCmd.Flags().Lookup("host")
	flagBindings["server.port"] = serveCmd.Flags().Lookup("port")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	observability.InitServeLogger(config.AppName, cfg.Logging.Profile, cfg.Logging.Level)
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return err
		}
		server.SetMetricsFallbackPort(observability.GetMetricsPort())
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc := newServices(ctx, cfg, logger, false)
	defer svc.Close()

	logger.Info("Initializing server",
		zap.String("service", config.AppName),
		zap.String("version", versionInfo.Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Bool("store", svc.store != nil),
		zap.Bool("metrics", cfg.Metrics.Enabled))

	handlers.InitHealthManager(versionInfo.Version)
	if cfg.Health.Enabled {
		registerHealthChecks(handlers.GetHealthManager(), cfg, svc)
	}

	handlers.SetBackendURL(cfg.Backend.BaseURL)

	sessions := server.NewSessionManager(svc.newController, cfg.Server.SessionTTL)
	go sessions.Run(ctx)
	handlers.GetHealthManager().SetSessionCounter(sessions.Len)

	srv := server.New(server.Options{
		Config:        cfg.Server,
		Sessions:      sessions,
		CountryCode:   cfg.Backend.CountryCode,
		LocationBased: cfg.Backend.LocationBased,
		AdminToken:    os.Getenv(config.EnvPrefix + "_ADMIN_TOKEN"),
	})

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}

	// Shutdown handlers run LIFO: the HTTP server stops first, then metrics stop and the logger flushes.
	signals.OnShutdown(func(ctx context.Context) error {
		if err := observability.StopMetrics(); err != nil {
			logger.Warn("Metrics exporter stop failed", zap.Error(err))
		}
		logger.Info("Flushing logger...")
		if err := logger.Sync(); err != nil {
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		cancel()
		shutdownCtx, stop := context.WithTimeout(ctx, shutdownTimeout)
		defer stop()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", zap.Error(err))
			return err
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: re-reading configuration")
		reloaded, err := reloadConfig()
		if err != nil {
			logger.Error("Config reload failed, keeping current settings", zap.Error(err))
			return err
		}
		// Collaborators are built once; changes other than the backend URL need a restart.
		if reloaded.Backend.BaseURL != cfg.Backend.BaseURL {
			logger.Warn("Backend URL changed; restart to apply",
				zap.String("current", cfg.Backend.BaseURL),
				zap.String("configured", reloaded.Backend.BaseURL))
		}
		logger.Info("Configuration validated", zap.String("file", appViper.ConfigFileUsed()))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	started := time.Now()
	metrics.SetServerStartTime(started.Unix())
	go reportUptime(ctx, started)

	errChan := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	go func() {
		if err := signals.Listen(ctx); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	return <-errChan
}

// registerHealthChecks wires readiness checks for the collaborators serve depends on.
func registerHealthChecks(hm *handlers.HealthManager, cfg *config.Config, svc *services) {
	hm.RegisterChecker("backend_config", handlers.HealthCheckFunc(func(ctx context.Context) error {
		return cfg.Validate()
	}))
	if cfg.Metrics.Enabled {
		hm.RegisterChecker("telemetry", handlers.HealthCheckFunc(func(ctx context.Context) error {
			if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
				return errors.New("telemetry system not initialized")
			}
			return nil
		}))
	}
	if svc.store != nil {
		// Searches still work without history and the enrichment cache.
		hm.RegisterOptionalChecker("store", handlers.HealthCheckFunc(svc.store.Ping))
	}
}

// reloadConfig re-reads the config file into a fresh viper instance and validates it.
func reloadConfig() (*config.Config, error) {
	v := config.NewViper(cfgFile)
	bindFlags(v)
	if _, err := config.ReadFile(v); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	appViper = v
	return cfg, nil
}

func reportUptime(ctx context.Context, started time.Time) {
	ticker := time.NewTicker(uptimeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetServerUptime(int64(time.Since(started).Seconds()))
		}
	}
}
