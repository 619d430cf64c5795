package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/searchprobe/searchprobe/internal/config"
	"github.com/searchprobe/searchprobe/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()

		log.Info("=== searchprobe Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + config.AppName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadStoreConfig()
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		log.Info("Backend:")
		log.Info("  Base URL:       "+cfg.Backend.BaseURL, zap.String("backend_url", cfg.Backend.BaseURL))
		log.Info("  Timeout:        " + cfg.BackendTimeout().String())
		log.Info("  Country Code:   " + cfg.Backend.CountryCode)
		log.Info(fmt.Sprintf("  Location Based: %t", cfg.Backend.LocationBased))
		if err := cfg.Validate(); err != nil {
			log.Warn("  Invalid:        "+err.Error(), zap.String("hint", configHint()))
		}
		log.Info("")

		log.Info("Enrichment:")
		log.Info(fmt.Sprintf("  Workers:        %d", cfg.Enrichment.Workers))
		log.Info("  Cache TTL:      " + cfg.Cache.EnrichmentTTL.String())
		log.Info("  Rejection TTL:  " + cfg.Cache.RejectionTTL.String())
		log.Info(fmt.Sprintf("  Rate Margin:    %.2f", cfg.RateLimitMargin))
		log.Info("")

		log.Info("Configuration:")
		log.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		log.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		log.Info("  Session TTL:    " + cfg.Server.SessionTTL.String())
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		switch {
		case cfg.Store.Disabled:
			log.Info("  Store:          disabled")
		case strings.TrimSpace(cfg.Store.URL) != "":
			log.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		default:
			log.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		log.Info(fmt.Sprintf("  Feedback Log:   %t", cfg.Feedback.Record))
		log.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		log.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
