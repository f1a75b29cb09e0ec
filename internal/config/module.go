package config

import "go.uber.org/fx"

// NewLoggingConfigProvider extracts and provides *LoggingConfig from *Config
// so that components can depend on the logging configuration alone.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Marketsync.System.Logging
}

// NewPipelineConfigProvider extracts and provides *PipelineConfig from *Config.
func NewPipelineConfigProvider(cfg *Config) *PipelineConfig {
	return &cfg.Marketsync.Pipeline
}

// Module provides configuration-related components to Fx.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(NewPipelineConfigProvider),
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
)
