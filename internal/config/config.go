package config

import "time"

// Config represents the complete application configuration.
// Precedence: flags, then SEARCHPROBE_* environment variables, then the config file,
// then built-in defaults.
type Config struct {
	Backend    BackendConfig    `mapstructure:"backend"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Feedback   FeedbackConfig   `mapstructure:"feedback"`
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Health     HealthConfig     `mapstructure:"health"`

	RateLimits      map[string]int `mapstructure:"rate_limits"`
	RateLimitMargin float64        `mapstructure:"rate_limit_margin"`
}

// BackendConfig points at the search backend. All three endpoints share BaseURL.
type BackendConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
	CountryCode string        `mapstructure:"country_code"`

	// LocationBased requires a location on every search and enables enrichment.
	LocationBased bool `mapstructure:"location_based"`
}

// EnrichmentConfig controls vendor rating lookups.
type EnrichmentConfig struct {
	Workers int `mapstructure:"workers"`
}

// FeedbackConfig controls feedback submission.
type FeedbackConfig struct {
	// Record keeps an audit trail of submissions in the local store.
	Record bool `mapstructure:"record"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
	Disabled  bool   `mapstructure:"disabled"`
}

// CacheConfig contains enrichment cache TTLs. A zero TTL disables caching for that outcome.
type CacheConfig struct {
	EnrichmentTTL time.Duration `mapstructure:"enrichment_ttl"`
	RejectionTTL  time.Duration `mapstructure:"rejection_ttl"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logger used by serve: simple or structured
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
