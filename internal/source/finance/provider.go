package finance

import (
	"context"

	"gorm.io/gorm"

	"github.com/seaward/marketsync/internal/client"
	"github.com/seaward/marketsync/internal/config"
	"github.com/seaward/marketsync/internal/domain/entity"
	"github.com/seaward/marketsync/internal/pipeline/fetch"
	"github.com/seaward/marketsync/internal/pipeline/ratelimit"
	"github.com/seaward/marketsync/internal/pipeline/retry"
	"github.com/seaward/marketsync/internal/pipeline/run"
	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/source"
	"github.com/seaward/marketsync/internal/source/orders"
)

// NewSourceRunner wires the finance source from configuration. The caller is
// responsible for only invoking this when the source is enabled.
func NewSourceRunner(cfg *config.Config, seller *client.SellerClient, db *gorm.DB) run.SourceRunner {
	srcCfg := cfg.Source(SourceName)
	pipeCfg := cfg.Marketsync.Pipeline

	limiter := ratelimit.NewLimiter(srcCfg.Rate, nil)
	pagePolicy := retry.NewPolicy(pipeCfg.PageRetry, "RateLimited")
	writePolicy := retry.NewPolicy(pipeCfg.WriteRetry)
	sleeper := retry.SystemSleeper()

	paginator := fetch.NewPaginator(SourceName, NewFetcher(seller), limiter, pagePolicy, sleeper, srcCfg.PageSize)
	writer := NewWriter(db, pipeCfg.BatchSize, writePolicy, sleeper)
	finalize := NewFinalize(db)

	// New charges change per-order fee totals, so the orders recalculation
	// runs again after linkage.
	recalc := orders.NewRecalc(db)
	post := func(ctx context.Context, full schedule.DateRange) error {
		if err := finalize.Run(ctx, full); err != nil {
			return err
		}
		return recalc.Run(ctx, full)
	}

	return source.NewRunner[entity.OrderFeeItem](SourceName, srcCfg, paginator, NewNormalizer(), writer, post)
}
