package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"go.uber.org/fx"

	"github.com/seaward/marketsync/internal/support/exception"
	"github.com/seaward/marketsync/internal/support/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig      // EmbeddedConfig contains the raw bytes of the configuration file.
	Expander       EnvironmentExpander // Expander resolves ${VAR} placeholders in the raw YAML.
	EnvFilePath    string              `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
}

// loadConfig loads configuration from the embedded YAML and environment
// variables. Defaults are applied first, the YAML is merged on top, and
// environment variables override last. This function is intended to be called
// only once during application startup.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to expand environment placeholders in embedded config", err, false, false)
	}

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}

	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads, validates, and provides
// *Config. It also sets the global logger level from the loaded configuration.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Marketsync.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Marketsync.System.Logging.Level)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfig loads configuration from the embedded YAML and environment
// variables without registering it with Fx. Intended for tests and tooling.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig, expander)
}

// Validate checks the loaded configuration for contradictions that would make
// a run impossible. It returns a non-retryable PipelineError so startup fails
// before any date range is touched.
func Validate(cfg *Config) error {
	ms := &cfg.Marketsync

	if ms.Infrastructure.DatabaseRef == "" {
		return configError("infrastructure.database_ref must name a database connection")
	}
	if _, ok := ms.DatabaseConfigs[ms.Infrastructure.DatabaseRef]; !ok {
		return configError(fmt.Sprintf("database connection %q referenced by infrastructure.database_ref is not configured", ms.Infrastructure.DatabaseRef))
	}

	for name, src := range ms.Sources {
		if !src.Enabled {
			continue
		}
		if src.MaxWindowDays <= 0 {
			return configError(fmt.Sprintf("source %q: max_window_days must be positive", name))
		}
		if src.Rate.Requests <= 0 || src.Rate.IntervalMs <= 0 {
			return configError(fmt.Sprintf("source %q: rate.requests and rate.interval_ms must be positive", name))
		}
	}

	sellerNeeded := sourceEnabled(ms, "orders") || sourceEnabled(ms, "finance")
	if sellerNeeded && (ms.SellerAPI.ClientID == "" || ms.SellerAPI.APIKey == "") {
		return configError("seller_api.client_id and seller_api.api_key are required when the orders or finance source is enabled")
	}
	if sourceEnabled(ms, "performance") && (ms.PerformanceAPI.ClientID == "" || ms.PerformanceAPI.ClientSecret == "") {
		return configError("performance_api credentials are required when the performance source is enabled")
	}

	if ms.Archive.Enabled {
		if _, ok := ms.StorageConfigs[ms.Archive.StorageRef]; !ok {
			return configError(fmt.Sprintf("storage connection %q referenced by archive.storage_ref is not configured", ms.Archive.StorageRef))
		}
	}

	if ms.Pipeline.WorkerPoolSize <= 0 {
		return configError("pipeline.worker_pool_size must be positive")
	}
	if ms.Pipeline.BatchSize <= 0 {
		return configError("pipeline.batch_size must be positive")
	}

	return nil
}

func configError(message string) error {
	return exception.NewPipelineError(moduleName, message, nil, false, false)
}

func sourceEnabled(ms *MarketsyncConfig, name string) bool {
	src, ok := ms.Sources[name]
	return ok && src.Enabled
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Values in sourceConfig overwrite corresponding values in destConfig when
// they are not zero values for their type.
func mergeConfig(destConfig, sourceConfig *Config) {
	mergeMarketsyncConfig(&destConfig.Marketsync, &sourceConfig.Marketsync)
}

func mergeMarketsyncConfig(dest, source *MarketsyncConfig) {
	if source.Pipeline.LookbackDays != 0 {
		dest.Pipeline.LookbackDays = source.Pipeline.LookbackDays
	}
	if source.Pipeline.WorkerPoolSize != 0 {
		dest.Pipeline.WorkerPoolSize = source.Pipeline.WorkerPoolSize
	}
	if source.Pipeline.BatchSize != 0 {
		dest.Pipeline.BatchSize = source.Pipeline.BatchSize
	}
	mergeRetryConfig(&dest.Pipeline.PageRetry, &source.Pipeline.PageRetry)
	mergeRetryConfig(&dest.Pipeline.WriteRetry, &source.Pipeline.WriteRetry)

	mergeSystemConfig(&dest.System, &source.System)

	if source.Infrastructure.DatabaseRef != "" {
		dest.Infrastructure.DatabaseRef = source.Infrastructure.DatabaseRef
	}

	// Source blocks replace their defaults wholesale. A partially merged
	// source block would silently mix defaults and file values for a single
	// API, which is harder to reason about than full replacement.
	for name, src := range source.Sources {
		if dest.Sources == nil {
			dest.Sources = make(map[string]SourceConfig)
		}
		dest.Sources[name] = src
	}

	if source.SellerAPI.Endpoint != "" {
		dest.SellerAPI.Endpoint = source.SellerAPI.Endpoint
	}
	if source.SellerAPI.ClientID != "" {
		dest.SellerAPI.ClientID = source.SellerAPI.ClientID
	}
	if source.SellerAPI.APIKey != "" {
		dest.SellerAPI.APIKey = source.SellerAPI.APIKey
	}

	if source.PerformanceAPI.Endpoint != "" {
		dest.PerformanceAPI.Endpoint = source.PerformanceAPI.Endpoint
	}
	if source.PerformanceAPI.ClientID != "" {
		dest.PerformanceAPI.ClientID = source.PerformanceAPI.ClientID
	}
	if source.PerformanceAPI.ClientSecret != "" {
		dest.PerformanceAPI.ClientSecret = source.PerformanceAPI.ClientSecret
	}

	if source.Archive.Enabled {
		dest.Archive.Enabled = true
	}
	if source.Archive.StorageRef != "" {
		dest.Archive.StorageRef = source.Archive.StorageRef
	}
	if source.Archive.Compression != "" {
		dest.Archive.Compression = source.Archive.Compression
	}

	if source.DatabaseConfigs != nil {
		if dest.DatabaseConfigs == nil {
			dest.DatabaseConfigs = make(map[string]interface{})
		}
		for key, value := range source.DatabaseConfigs {
			dest.DatabaseConfigs[key] = value
		}
	}
	if source.StorageConfigs != nil {
		if dest.StorageConfigs == nil {
			dest.StorageConfigs = make(map[string]interface{})
		}
		for key, value := range source.StorageConfigs {
			dest.StorageConfigs[key] = value
		}
	}
}

func mergeRetryConfig(dest, source *RetryConfig) {
	if source.MaxAttempts != 0 {
		dest.MaxAttempts = source.MaxAttempts
	}
	if source.InitialInterval != 0 {
		dest.InitialInterval = source.InitialInterval
	}
	if source.MaxInterval != 0 {
		dest.MaxInterval = source.MaxInterval
	}
	if source.Factor != 0 {
		dest.Factor = source.Factor
	}
}

func mergeSystemConfig(dest, source *SystemConfig) {
	if source.Timezone != "" {
		dest.Timezone = source.Timezone
	}
	if source.Logging.Level != "" {
		dest.Logging.Level = source.Logging.Level
	}
}

// loadStructFromEnv recursively loads configuration values into a struct from
// environment variables, using the "yaml" tag to build the variable name
// (e.g., MARKETSYNC_PIPELINE_BATCH_SIZE).
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		if field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Struct {
			// For map[string]struct{}, process nested environment variables.
			// Example: MARKETSYNC_SOURCES_ORDERS_ENABLED=false
			if err := loadMapOfStructsFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadMapOfStructsFromEnv loads fields of type map[string]struct{} from
// environment variables, inferring the map key and struct field from the
// variable name. Example: SOURCES_ORDERS_ENABLED sets Enabled of the "orders"
// entry.
func loadMapOfStructsFromEnv(mapField reflect.Value, prefix string) error {
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}

	elemType := mapField.Type().Elem()

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}

		keyPartWithValue := strings.TrimPrefix(env, prefix)
		parts := strings.SplitN(keyPartWithValue, "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyAndField := parts[0]
		envValue := parts[1]

		keyAndFieldParts := strings.Split(keyAndField, "_")
		if len(keyAndFieldParts) < 2 {
			continue
		}
		mapKey := strings.ToLower(keyAndFieldParts[0])
		structFieldName := strings.Join(keyAndFieldParts[1:], "_")

		structVal := mapField.MapIndex(reflect.ValueOf(mapKey))
		if !structVal.IsValid() {
			structVal = reflect.New(elemType).Elem()
		} else {
			// Map values are not addressable; copy before mutating.
			copied := reflect.New(elemType).Elem()
			copied.Set(structVal)
			structVal = copied
		}

		if err := setStructFieldFromEnv(structVal, structFieldName, envValue); err != nil {
			return err
		}
		mapField.SetMapIndex(reflect.ValueOf(mapKey), structVal)
	}
	return nil
}

// setStructFieldFromEnv sets the value of a struct field whose yaml tag
// matches fieldName case-insensitively. A missing field is not an error.
func setStructFieldFromEnv(structVal reflect.Value, fieldName string, value string) error {
	typ := structVal.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := structVal.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		if strings.EqualFold(yamlTag, fieldName) {
			return setField(field, value)
		}
	}
	return nil
}

// setField converts a string environment value to the field's kind and sets it.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
