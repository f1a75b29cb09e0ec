// Package migration applies the destination store schema on startup, driven
// by SQL files embedded in the binary.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"github.com/seaward/marketsync/internal/adapter/database"
	"github.com/seaward/marketsync/internal/config"
	"github.com/seaward/marketsync/internal/support/exception"
	"github.com/seaward/marketsync/internal/support/logger"
)

const moduleName = "migration"

// migrationsTable tracks applied versions in the destination store.
const migrationsTable = "marketsync_schema_migrations"

// Migrator applies pending schema migrations.
type Migrator struct {
	db     *gorm.DB
	dbType string
}

// NewMigrator builds a Migrator for the configured destination store.
func NewMigrator(db *gorm.DB, cfg *config.Config) (*Migrator, error) {
	dbCfg, err := database.ResolveConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Migrator{db: db, dbType: dbCfg.Type}, nil
}

// Up applies all pending migrations from migrationFS under path. A store
// already at the latest version is not an error.
func (m *Migrator) Up(migrationFS fs.FS, path string) error {
	logger.Infof("applying schema migrations (dialect %s)", m.dbType)

	sqlDB, err := m.db.DB()
	if err != nil {
		return exception.NewPipelineError(moduleName, "failed to get underlying sql.DB", err, false, false)
	}

	sourceDriver, err := iofs.New(migrationFS, path)
	if err != nil {
		return exception.NewPipelineError(moduleName, "failed to load embedded migrations", err, false, false)
	}

	dbDriver, err := m.databaseDriver(sqlDB)
	if err != nil {
		return exception.NewPipelineError(moduleName, "failed to build migration driver", err, false, false)
	}

	instance, err := migrate.NewWithInstance("iofs", sourceDriver, m.dbType, dbDriver)
	if err != nil {
		return exception.NewPipelineError(moduleName, "failed to create migrate instance", err, false, false)
	}

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return exception.NewPipelineError(moduleName, "schema migration failed", err, false, false)
	}

	version, dirty, err := instance.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return exception.NewPipelineError(moduleName, "failed to read schema version", err, false, false)
	}
	logger.Infof("schema at version %d (dirty=%t)", version, dirty)
	return nil
}

func (m *Migrator) databaseDriver(sqlDB *sql.DB) (migratedb.Driver, error) {
	switch m.dbType {
	case "postgres", "redshift":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: migrationsTable})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: migrationsTable})
	case "sqlite":
		return sqlite3.WithInstance(sqlDB, &sqlite3.Config{MigrationsTable: migrationsTable})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.dbType)
	}
}
