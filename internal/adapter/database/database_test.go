package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaward/marketsync/internal/adapter/database"
	"github.com/seaward/marketsync/internal/adapter/database/mysql"
	"github.com/seaward/marketsync/internal/adapter/database/postgres"
	"github.com/seaward/marketsync/internal/config"
)

func configWithDB(ref string, raw interface{}) *config.Config {
	cfg := config.NewConfig()
	cfg.Marketsync.Infrastructure.DatabaseRef = ref
	cfg.Marketsync.DatabaseConfigs = map[string]interface{}{"main": raw}
	return cfg
}

func TestResolveConfig(t *testing.T) {
	cfg := configWithDB("main", map[string]interface{}{
		"type":     "postgres",
		"host":     "db.internal",
		"port":     5432,
		"database": "marketsync",
		"user":     "etl",
		"password": "secret",
		"sslmode":  "require",
		"pool": map[string]interface{}{
			"max_open_conns": 10,
			"max_idle_conns": 2,
		},
	})

	dbCfg, err := database.ResolveConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "postgres", dbCfg.Type)
	assert.Equal(t, "db.internal", dbCfg.Host)
	assert.Equal(t, 5432, dbCfg.Port)
	assert.Equal(t, 10, dbCfg.Pool.MaxOpenConns)
}

func TestResolveConfig_UnknownRef(t *testing.T) {
	cfg := configWithDB("missing", map[string]interface{}{"type": "postgres"})

	_, err := database.ResolveConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestPostgresConnectionString(t *testing.T) {
	dsn := postgres.ConnectionString(database.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "etl",
		Password: "pw",
		Database: "marketsync",
		Sslmode:  "disable",
		Schema:   "analytics",
	})
	assert.Equal(t, "host=localhost port=5432 user=etl password=pw dbname=marketsync sslmode=disable search_path=analytics", dsn)
}

func TestMySQLConnectionString(t *testing.T) {
	dsn := mysql.ConnectionString(database.DatabaseConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "etl",
		Password: "pw",
		Database: "marketsync",
	})
	assert.Equal(t, "etl:pw@tcp(localhost:3306)/marketsync?charset=utf8mb4&parseTime=True&loc=UTC", dsn)
}
