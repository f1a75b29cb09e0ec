// Package config provides structures and utilities for managing the
// pipeline's application configuration.
package config

// EmbeddedConfig holds the content of the configuration file, typically
// passed from main.go via go:embed.
type EmbeddedConfig []byte

// RetryConfig holds a bounded-attempt backoff configuration.
type RetryConfig struct {
	MaxAttempts     int     `yaml:"max_attempts"`     // MaxAttempts is the maximum number of attempts, including the first.
	InitialInterval int     `yaml:"initial_interval"` // InitialInterval is the initial backoff interval in milliseconds.
	MaxInterval     int     `yaml:"max_interval"`     // MaxInterval is the backoff ceiling in milliseconds (0 means uncapped).
	Factor          float64 `yaml:"factor"`           // Factor is the multiplier applied per attempt (e.g., 2.0 for exponential backoff).
}

// RateConfig holds a token-bucket budget for one data source.
type RateConfig struct {
	Requests   int `yaml:"requests"`    // Requests is the number of tokens refilled per interval.
	IntervalMs int `yaml:"interval_ms"` // IntervalMs is the refill interval in milliseconds.
	Burst      int `yaml:"burst"`       // Burst is the bucket capacity (defaults to Requests when 0).
}

// SourceConfig holds the per-data-source settings.
type SourceConfig struct {
	// Enabled toggles the source on or off for a run.
	Enabled bool `yaml:"enabled"`
	// Required marks a source whose failure aborts the whole run during setup;
	// failures of non-required sources only degrade the run status.
	Required bool `yaml:"required"`
	// MaxWindowDays is the widest date window the source's API accepts per query.
	MaxWindowDays int `yaml:"max_window_days"`
	// PageSize is the page size requested from the API.
	PageSize int `yaml:"page_size"`
	// Rate is the source's request budget.
	Rate RateConfig `yaml:"rate"`
}

// SellerAPIConfig holds credentials and endpoint for the seller API.
type SellerAPIConfig struct {
	Endpoint string `yaml:"endpoint"`  // Endpoint is the seller API base URL.
	ClientID string `yaml:"client_id"` // ClientID is the Client-Id header value.
	APIKey   string `yaml:"api_key"`   // APIKey is the Api-Key header value.
}

// PerformanceAPIConfig holds credentials and endpoint for the ads
// (performance) API, which authenticates via client credentials.
type PerformanceAPIConfig struct {
	Endpoint     string `yaml:"endpoint"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// PipelineConfig holds settings for the pipeline engine itself.
type PipelineConfig struct {
	// LookbackDays is the default window when the CLI is invoked without dates.
	LookbackDays int `yaml:"lookback_days"`
	// WorkerPoolSize bounds how many data sources load concurrently.
	WorkerPoolSize int `yaml:"worker_pool_size"`
	// BatchSize is the maximum number of canonical rows per write transaction.
	BatchSize int `yaml:"batch_size"`
	// PageRetry is the backoff configuration for page fetches.
	PageRetry RetryConfig `yaml:"page_retry"`
	// WriteRetry is the backoff configuration for batch writes.
	WriteRetry RetryConfig `yaml:"write_retry"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig holds logical dependency settings for infrastructure
// components.
type InfrastructureConfig struct {
	// DatabaseRef is the name of the database connection used as the
	// destination store (key into the database config map).
	DatabaseRef string `yaml:"database_ref"`
}

// ArchiveConfig holds the optional parquet archive export settings.
type ArchiveConfig struct {
	Enabled     bool   `yaml:"enabled"`
	StorageRef  string `yaml:"storage_ref"` // StorageRef names the storage connection (key into the storage config map).
	Compression string `yaml:"compression"` // Compression is the parquet codec ("SNAPPY", "GZIP", "NONE").
}

// MarketsyncConfig holds all configuration under the "marketsync" top-level key.
type MarketsyncConfig struct {
	// Pipeline contains engine-level settings.
	Pipeline PipelineConfig `yaml:"pipeline"`
	// System contains system-wide settings.
	System SystemConfig `yaml:"system"`
	// Infrastructure contains infrastructure-related settings.
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	// Sources contains per-data-source settings, keyed by source name.
	Sources map[string]SourceConfig `yaml:"sources"`
	// SellerAPI contains seller API credentials.
	SellerAPI SellerAPIConfig `yaml:"seller_api"`
	// PerformanceAPI contains ads API credentials.
	PerformanceAPI PerformanceAPIConfig `yaml:"performance_api"`
	// Archive contains parquet archive settings.
	Archive ArchiveConfig `yaml:"archive"`
	// DatabaseConfigs holds per-connection database settings as raw maps,
	// decoded by the database adapter via the binder.
	DatabaseConfigs map[string]interface{} `yaml:"database"`
	// StorageConfigs holds per-connection storage settings as raw maps.
	StorageConfigs map[string]interface{} `yaml:"storage"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Marketsync contains the top-level configuration for the pipeline.
	Marketsync MarketsyncConfig `yaml:"marketsync"`
}

// Source returns the configuration for the named source, falling back to a
// zero value when the source is not configured.
func (c *Config) Source(name string) SourceConfig {
	if c == nil || c.Marketsync.Sources == nil {
		return SourceConfig{}
	}
	return c.Marketsync.Sources[name]
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	cfg := &Config{
		Marketsync: MarketsyncConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Pipeline: PipelineConfig{
				LookbackDays:   30,
				WorkerPoolSize: 3,
				BatchSize:      1000,
				PageRetry: RetryConfig{
					MaxAttempts:     6,
					InitialInterval: 1500,
					MaxInterval:     60000,
					Factor:          2.0,
				},
				WriteRetry: RetryConfig{
					MaxAttempts:     3,
					InitialInterval: 1000,
					MaxInterval:     10000,
					Factor:          2.0,
				},
			},
			Infrastructure: InfrastructureConfig{
				DatabaseRef: "warehouse",
			},
			Sources: map[string]SourceConfig{
				"orders": {
					Enabled:       true,
					Required:      true,
					MaxWindowDays: 30,
					PageSize:      100,
					Rate:          RateConfig{Requests: 2, IntervalMs: 1000},
				},
				"finance": {
					Enabled:       true,
					MaxWindowDays: 10,
					PageSize:      200,
					Rate:          RateConfig{Requests: 2, IntervalMs: 1000},
				},
				// The ads API is off by default; its quota is separate from the
				// seller API and the step is optional for a complete run.
				"performance": {
					Enabled:       false,
					MaxWindowDays: 30,
					PageSize:      0,
					Rate:          RateConfig{Requests: 1, IntervalMs: 1000},
				},
			},
			Archive: ArchiveConfig{
				Enabled:     false,
				StorageRef:  "archive",
				Compression: "SNAPPY",
			},
		},
	}

	cfg.Marketsync.DatabaseConfigs = map[string]interface{}{}
	cfg.Marketsync.StorageConfigs = map[string]interface{}{}
	return cfg
}
