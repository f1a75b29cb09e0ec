// Package sqlite registers the SQLite dialector. Importing it for side
// effects enables "type: sqlite" connections, mainly for local runs.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/seaward/marketsync/internal/adapter/database"
)

func init() {
	database.RegisterDialector("sqlite", func(cfg database.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("sqlite database path cannot be empty")
		}
		// The dialector takes the file path directly.
		return sqlite.Open(cfg.Database), nil
	})
}
