// Package config provides centralized configuration management for searchprobe.
// Values are layered by viper: built-in defaults, an optional YAML file under the
// XDG config directory, SEARCHPROBE_* environment variables, then bound flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// AppName names the config, data and cache directories.
	AppName = "searchprobe"
	// EnvPrefix is the prefix for environment overrides, e.g. SEARCHPROBE_BACKEND_BASE_URL.
	EnvPrefix = "SEARCHPROBE"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers every known key with its default value. Keys must be
// registered for environment overrides to reach AllSettings.
func SetDefaults(v *viper.Viper) {
	// Backend defaults
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("backend.user_agent", AppName)
	v.SetDefault("backend.country_code", "US")
	v.SetDefault("backend.location_based", true)

	// Enrichment defaults
	v.SetDefault("enrichment.workers", 4)

	// Feedback defaults
	v.SetDefault("feedback.record", true)

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.session_ttl", "30m")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")
	v.SetDefault("store.disabled", false)

	// Cache defaults
	v.SetDefault("cache.enrichment_ttl", "24h")
	v.SetDefault("cache.rejection_ttl", "1h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Rate limit overrides (optional)
	v.SetDefault("rate_limits", map[string]int{})
	v.SetDefault("rate_limit_margin", 0.9)
}

// NewViper returns a viper instance with defaults and environment binding applied.
// configFile, when set, must exist; otherwise config.yaml is searched in the XDG
// config directory and ./config.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if dir := gfconfig.GetAppConfigDir(AppName); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile reads the config file, if any. A missing file is not an error unless it was
// named explicitly. It reports the path that was used.
func ReadFile(v *viper.Viper) (string, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config file: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load decodes the merged viper settings into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Decode decodes the merged viper settings without validating them. Commands that
// only touch the local store use it so they work before a backend is configured.
func Decode(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = NewViper("")
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	cfg.Backend.CountryCode = strings.ToUpper(strings.TrimSpace(cfg.Backend.CountryCode))
	return cfg, nil
}

// Validate checks values that would otherwise fail later at request time.
func (c *Config) Validate() error {
	var problems []string

	base := strings.TrimSpace(c.Backend.BaseURL)
	if base == "" {
		problems = append(problems, "backend.base_url is required")
	} else if parsed, err := url.Parse(base); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		problems = append(problems, fmt.Sprintf("backend.base_url %q is not an absolute URL", base))
	}
	if c.Backend.Timeout < 0 {
		problems = append(problems, "backend.timeout must not be negative")
	}
	if c.Enrichment.Workers < 0 {
		problems = append(problems, "enrichment.workers must not be negative")
	}
	if c.RateLimitMargin < 0 || c.RateLimitMargin > 1 {
		problems = append(problems, "rate_limit_margin must be between 0 and 1")
	}
	if c.Cache.EnrichmentTTL < 0 || c.Cache.RejectionTTL < 0 {
		problems = append(problems, "cache TTLs must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(AppName)
}

// DefaultCacheDir returns the XDG-compliant cache directory for the app.
func DefaultCacheDir() string {
	return gfconfig.GetAppCacheDir(AppName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}

// BackendTimeout returns the per-request timeout, falling back to 15s.
func (c *Config) BackendTimeout() time.Duration {
	if c == nil || c.Backend.Timeout <= 0 {
		return 15 * time.Second
	}
	return c.Backend.Timeout
}
