// Package config provides centralized configuration management for iocgate.
// Defaults live in internal/cmd (viper), user overrides come from the
// config file and IOCGATE_* environment variables.
package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Retention RetentionConfig `mapstructure:"retention"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CacheConfig controls the analysis result cache.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// QuotaConfig holds the three quota ceilings. All must be positive; a sane
// deployment keeps per_client_daily <= global_daily <= global_monthly.
type QuotaConfig struct {
	PerClientDaily int `mapstructure:"per_client_daily"`
	GlobalDaily    int `mapstructure:"global_daily"`
	GlobalMonthly  int `mapstructure:"global_monthly"`
}

// RetentionConfig controls the retention sweeper. SweepInterval of zero
// means sweep once at startup only.
type RetentionConfig struct {
	HorizonDays   int           `mapstructure:"horizon_days"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// AnalyzerConfig points at the external IOC analyzer. An empty endpoint
// falls back to the built-in static analyzer.
type AnalyzerConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level.
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format).
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
