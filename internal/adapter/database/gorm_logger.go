package database

import (
	"fmt"
	"strings"
	"time"

	gorm_logger "gorm.io/gorm/logger"

	"github.com/seaward/marketsync/internal/support/logger"
)

// NewGormLogger bridges GORM's logger onto the application logger. SQL trace
// output only appears at DEBUG level.
func NewGormLogger(level string) gorm_logger.Interface {
	var gormLevel gorm_logger.LogLevel
	switch strings.ToUpper(level) {
	case "DEBUG":
		gormLevel = gorm_logger.Info
	case "INFO", "WARN":
		gormLevel = gorm_logger.Warn
	case "ERROR":
		gormLevel = gorm_logger.Error
	default:
		gormLevel = gorm_logger.Silent
	}

	return gorm_logger.New(&gormWriter{}, gorm_logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormLevel,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// gormWriter redirects GORM log lines to the application logger. SQL traces
// go to DEBUG, everything else to INFO.
type gormWriter struct{}

func (w *gormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if strings.Contains(msg, "SELECT") || strings.Contains(msg, "INSERT") ||
		strings.Contains(msg, "UPDATE") || strings.Contains(msg, "DELETE") {
		logger.Debugf("[GORM] %s", msg)
		return
	}
	logger.Infof("[GORM] %s", msg)
}
