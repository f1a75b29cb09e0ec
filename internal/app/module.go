package app

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/seaward/marketsync/internal/client"
	"github.com/seaward/marketsync/internal/config"
	"github.com/seaward/marketsync/internal/history"
	"github.com/seaward/marketsync/internal/metrics"
	"github.com/seaward/marketsync/internal/pipeline/run"
	"github.com/seaward/marketsync/internal/source/finance"
	"github.com/seaward/marketsync/internal/source/orders"
	"github.com/seaward/marketsync/internal/source/performance"
	"github.com/seaward/marketsync/internal/support/logger"
)

// NewSellerClient builds the seller API client from configuration.
func NewSellerClient(cfg *config.Config) *client.SellerClient {
	return client.NewSellerClient(cfg.Marketsync.SellerAPI)
}

// NewPerformanceClient builds the ads API client from configuration.
func NewPerformanceClient(cfg *config.Config) *client.PerformanceClient {
	return client.NewPerformanceClient(cfg.Marketsync.PerformanceAPI)
}

// NewRunners assembles one SourceRunner per enabled source. A disabled
// source is skipped entirely; it costs no connections and no rate budget.
func NewRunners(cfg *config.Config, seller *client.SellerClient, perf *client.PerformanceClient, db *gorm.DB) []run.SourceRunner {
	var runners []run.SourceRunner

	if cfg.Source(orders.SourceName).Enabled {
		runners = append(runners, orders.NewSourceRunner(cfg, seller, db))
	} else {
		logger.Infof("source %s disabled, skipping", orders.SourceName)
	}

	if cfg.Source(finance.SourceName).Enabled {
		runners = append(runners, finance.NewSourceRunner(cfg, seller, db))
	} else {
		logger.Infof("source %s disabled, skipping", finance.SourceName)
	}

	if cfg.Source(performance.SourceName).Enabled {
		runners = append(runners, performance.NewSourceRunner(cfg, perf, db))
	} else {
		logger.Infof("source %s disabled, skipping", performance.SourceName)
	}

	return runners
}

// NewCoordinator wires the run coordinator from configuration.
func NewCoordinator(cfg *config.Config, runners []run.SourceRunner, recorder metrics.MetricRecorder, store run.SummaryRecorder) *run.Coordinator {
	return run.NewCoordinator(runners, cfg.Marketsync.Pipeline.WorkerPoolSize, recorder, store)
}

// Module assembles the pipeline's application-level components.
var Module = fx.Options(
	fx.Provide(
		NewSellerClient,
		NewPerformanceClient,
		NewRunners,
		NewCoordinator,
	),
	fx.Provide(fx.Annotate(
		history.NewStore,
		fx.As(new(run.SummaryRecorder)),
	)),
)
