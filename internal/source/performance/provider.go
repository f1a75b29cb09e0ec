package performance

import (
	"gorm.io/gorm"

	"github.com/seaward/marketsync/internal/client"
	"github.com/seaward/marketsync/internal/config"
	"github.com/seaward/marketsync/internal/domain/entity"
	"github.com/seaward/marketsync/internal/pipeline/fetch"
	"github.com/seaward/marketsync/internal/pipeline/ratelimit"
	"github.com/seaward/marketsync/internal/pipeline/retry"
	"github.com/seaward/marketsync/internal/pipeline/run"
	"github.com/seaward/marketsync/internal/source"
)

// NewSourceRunner wires the performance source from configuration. The caller
// is responsible for only invoking this when the source is enabled.
func NewSourceRunner(cfg *config.Config, perf *client.PerformanceClient, db *gorm.DB) run.SourceRunner {
	srcCfg := cfg.Source(SourceName)
	pipeCfg := cfg.Marketsync.Pipeline

	limiter := ratelimit.NewLimiter(srcCfg.Rate, nil)
	pagePolicy := retry.NewPolicy(pipeCfg.PageRetry, "RateLimited")
	writePolicy := retry.NewPolicy(pipeCfg.WriteRetry)
	sleeper := retry.SystemSleeper()

	paginator := fetch.NewPaginator(SourceName, NewFetcher(perf), limiter, pagePolicy, sleeper, srcCfg.PageSize)
	writer := NewWriter(db, pipeCfg.BatchSize, writePolicy, sleeper)

	return source.NewRunner[entity.CampaignDaily](SourceName, srcCfg, paginator, NewNormalizer(), writer, nil)
}
