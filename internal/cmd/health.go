package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/searchprobe/searchprobe/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify the binary can start: version info, logger, configuration and (unless disabled) the local store.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		if log == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", nil)
			return
		}
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", nil)
			return
		}
		log.Debug("Version check passed", zap.String("version", versionInfo.Version))
		log.Info("✅ Version information available")

		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Configuration invalid: "+configHint(), err)
			return
		}
		log.Info("✅ Configuration valid", zap.String("backend", cfg.Backend.BaseURL))

		if !cfg.Store.Disabled {
			db, err := openStore(cmd.Context())
			if err != nil {
				ExitWithCode(log, foundry.ExitFailure, "Store unavailable", err)
				return
			}
			schema, err := db.SchemaVersion(cmd.Context())
			_ = db.Close()
			if err != nil {
				ExitWithCode(log, foundry.ExitFailure, "Store schema unreadable", err)
				return
			}
			log.Info("✅ Store reachable", zap.String("driver", db.Driver()), zap.Int("schema_version", schema))
		}

		log.Info("")
		log.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
