package database

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/seaward/marketsync/internal/config"
	"github.com/seaward/marketsync/internal/support/logger"
)

// NewDatabase opens the destination store and closes it on shutdown.
func NewDatabase(lc fx.Lifecycle, cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Infof("closing destination store connection")
			return Close(db)
		},
	})
	return db, nil
}

// Module exports the destination store connection for dependency injection.
var Module = fx.Options(
	fx.Provide(NewDatabase),
)
