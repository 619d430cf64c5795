package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/searchprobe/searchprobe/internal/config"
	"github.com/searchprobe/searchprobe/internal/observability"
	"github.com/searchprobe/searchprobe/internal/server/handlers"
)

var (
	cfgFile string
	verbose bool

	// appViper holds defaults, the config file, env overrides and bound flags.
	appViper *viper.Viper

	versionInfo = handlers.BuildInfo{Name: config.AppName}
)

// SetVersionInfo records the ldflags build identity for the CLI and the /version endpoint.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	handlers.SetBuildInfo(versionInfo)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Search for vendors and enrich them with ratings",
	Long: `searchprobe runs goal-driven vendor searches against the search backend,
looks up supplemental ratings for vendors that arrive without one, and submits
feedback on result sets.

Use the subcommands to perform specific operations.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early so config loading does not emit metrics to
	// stdout. Server mode initializes the Prometheus-backed system later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/searchprobe/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().String("backend", "", "search backend base URL (overrides backend.base_url)")
	flagBindings["backend.base_url"] = rootCmd.PersistentFlags().Lookup("backend")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	observability.InitCLILogger(config.AppName, verbose)

	appViper = config.NewViper(cfgFile)
	bindFlags(appViper)

	used, err := config.ReadFile(appViper)
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to read config file", err)
	}
	if used != "" {
		observability.CLILogger.Debug("Using config file", zap.String("path", used))
	} else {
		observability.CLILogger.Debug("No config file found, using defaults and environment variables")
	}
}

// flagBindings maps config keys to the flags that override them. Commands register
// their flags from init.
var flagBindings = map[string]*pflag.Flag{}

// bindFlags binds registered flags to their config keys.
func bindFlags(v *viper.Viper) {
	for key, flag := range flagBindings {
		if flag != nil {
			_ = v.BindPFlag(key, flag)
		}
	}
}

// loadConfig decodes and validates the merged configuration.
func loadConfig() (*config.Config, error) {
	v, err := currentViper()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	return cfg, newConfigError(err)
}

// loadStoreConfig decodes the configuration without requiring a usable backend.
func loadStoreConfig() (*config.Config, error) {
	v, err := currentViper()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Decode(v)
	return cfg, newConfigError(err)
}

func currentViper() (*viper.Viper, error) {
	if appViper != nil {
		return appViper, nil
	}
	v := config.NewViper(cfgFile)
	bindFlags(v)
	if _, err := config.ReadFile(v); err != nil {
		return nil, newConfigError(err)
	}
	appViper = v
	return v, nil
}
