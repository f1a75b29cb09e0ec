// Package mysql registers the MySQL dialector. Importing it for side effects
// enables "type: mysql" connections.
package mysql

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/seaward/marketsync/internal/adapter/database"
)

func init() {
	database.RegisterDialector("mysql", func(cfg database.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString builds the DSN form expected by gorm.io/driver/mysql:
// user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True
func ConnectionString(c database.DatabaseConfig) string {
	auth := c.User
	if c.Password != "" {
		auth = fmt.Sprintf("%s:%s", c.User, c.Password)
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		auth, c.Host, c.Port, c.Database)
}
