// Package database opens the destination store connection. Dialect support is
// pluggable: each dialect subpackage registers a dialector factory from its
// init, and the connection named by infrastructure.database_ref picks the
// factory by its configured type.
package database

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/seaward/marketsync/internal/config"
	"github.com/seaward/marketsync/internal/support/binder"
	"github.com/seaward/marketsync/internal/support/exception"
	"github.com/seaward/marketsync/internal/support/logger"
)

const moduleName = "database"

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds one named connection's settings, decoded from the raw
// database config map.
type DatabaseConfig struct {
	Type     string     `yaml:"type"`
	Host     string     `yaml:"host"`
	Port     int        `yaml:"port"`
	Database string     `yaml:"database"`
	User     string     `yaml:"user"`
	Password string     `yaml:"password"`
	Schema   string     `yaml:"schema,omitempty"`
	Sslmode  string     `yaml:"sslmode"`
	Pool     PoolConfig `yaml:"pool"`
}

// DialectorFactory builds a gorm.Dialector from a connection's settings.
type DialectorFactory func(cfg DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorMu       sync.RWMutex
	dialectorRegistry = make(map[string]DialectorFactory)
)

// RegisterDialector registers a DialectorFactory for the given database type.
// Dialect subpackages call this from init.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMu.Lock()
	defer dialectorMu.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("dialector for type %q already registered, overwriting", dbType)
	}
	dialectorRegistry[dbType] = factory
}

func dialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMu.RLock()
	defer dialectorMu.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type %q", dbType)
	}
	return factory, nil
}

// ResolveConfig decodes the settings of the connection named by
// infrastructure.database_ref.
func ResolveConfig(cfg *config.Config) (DatabaseConfig, error) {
	name := cfg.Marketsync.Infrastructure.DatabaseRef

	raw, ok := cfg.Marketsync.DatabaseConfigs[name]
	if !ok {
		return DatabaseConfig{}, exception.NewPipelineError(moduleName,
			fmt.Sprintf("database configuration %q not found", name), nil, false, false)
	}
	properties, ok := raw.(map[string]interface{})
	if !ok {
		return DatabaseConfig{}, exception.NewPipelineError(moduleName,
			fmt.Sprintf("database configuration %q is not a mapping", name), nil, false, false)
	}

	var dbCfg DatabaseConfig
	if err := binder.BindProperties(properties, &dbCfg); err != nil {
		return DatabaseConfig{}, exception.NewPipelineError(moduleName,
			fmt.Sprintf("failed to decode database configuration %q", name), err, false, false)
	}
	return dbCfg, nil
}

// Open connects to the destination store and applies the pool settings.
func Open(cfg *config.Config) (*gorm.DB, error) {
	dbCfg, err := ResolveConfig(cfg)
	if err != nil {
		return nil, err
	}

	factory, err := dialectorFactory(dbCfg.Type)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "unsupported database type", err, false, false)
	}
	dialector, err := factory(dbCfg)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to build dialector", err, false, false)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(cfg.Marketsync.System.Logging.Level),
	})
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to open database connection", err, false, true)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to get underlying sql.DB", err, false, false)
	}
	if dbCfg.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbCfg.Pool.MaxOpenConns)
	}
	if dbCfg.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbCfg.Pool.MaxIdleConns)
	}
	if dbCfg.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbCfg.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}

	logger.Infof("connected to destination store %q (%s)", cfg.Marketsync.Infrastructure.DatabaseRef, dbCfg.Type)
	return db, nil
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
