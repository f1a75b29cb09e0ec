package app

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/seaward/marketsync/internal/adapter/database"
	"github.com/seaward/marketsync/internal/config"
	"github.com/seaward/marketsync/internal/export"
	"github.com/seaward/marketsync/internal/metrics"
	"github.com/seaward/marketsync/internal/migration"
	"github.com/seaward/marketsync/internal/pipeline/run"
	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/support/exception"
	"github.com/seaward/marketsync/internal/support/logger"
)

// Exit codes reported by the CLI.
const (
	ExitCompleted = 0 // every source loaded every window
	ExitDegraded  = 1 // run finished with failed windows, or aborted mid-run
	ExitUsage     = 2 // bad arguments, invalid range, or broken configuration
)

// Params carries everything main hands to the application.
type Params struct {
	EnvFilePath    string
	EmbeddedConfig config.EmbeddedConfig

	// MigrationsFS holds the embedded migration files; MigrationsPath is the
	// directory inside it that contains the .sql files.
	MigrationsFS   fs.FS
	MigrationsPath string

	// StartArg and EndArg are the raw CLI date arguments. Both empty means
	// the configured lookback window ending today.
	StartArg string
	EndArg   string
}

// RunApplication sets up and runs the pipeline using uber-fx, returning the
// process exit code.
func RunApplication(appCtx context.Context, p Params) int {
	exitCode := ExitDegraded

	app := fx.New(
		fx.Supply(
			p.EmbeddedConfig,
			fx.Annotate(p.EnvFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),
		logger.Module,
		config.Module,
		metrics.Module,
		database.Module,
		Module,

		fx.Invoke(fx.Annotate(func(
			lc fx.Lifecycle,
			shutdowner fx.Shutdowner,
			cfg *config.Config,
			db *gorm.DB,
			coordinator *run.Coordinator,
			appCtx context.Context,
		) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer func() {
							if r := recover(); r != nil {
								logger.Errorf("panic recovered in pipeline run: %v", r)
								exitCode = ExitDegraded
							}
							if err := shutdowner.Shutdown(); err != nil {
								logger.Errorf("failed to shutdown application: %v", err)
							}
						}()
						exitCode = executePipeline(appCtx, p, cfg, db, coordinator)
					}()
					return nil
				},
			})
		}, fx.ParamTags("", "", "", "", "", `name:"appCtx"`))),
	)

	app.Run()

	if err := app.Err(); err != nil {
		logger.Errorf("application failed to start: %v", err)
		return classifyStartupError(err)
	}
	return exitCode
}

// executePipeline runs the end-to-end sequence: migrate, resolve the range,
// load every source, then archive when enabled.
func executePipeline(ctx context.Context, p Params, cfg *config.Config, db *gorm.DB, coordinator *run.Coordinator) int {
	// The range is validated before any database work so a bad invocation
	// fails without side effects.
	full, err := resolveRange(cfg, p.StartArg, p.EndArg)
	if err != nil {
		logger.Errorf("invalid date range: %v", err)
		return ExitUsage
	}

	migrator, err := migration.NewMigrator(db, cfg)
	if err != nil {
		logger.Errorf("migration setup failed: %v", err)
		return ExitDegraded
	}
	if err := migrator.Up(p.MigrationsFS, p.MigrationsPath); err != nil {
		logger.Errorf("schema migration failed: %v", err)
		return ExitDegraded
	}

	summary, err := coordinator.Run(ctx, full)
	if err != nil {
		logger.Errorf("pipeline run aborted: %v", err)
		return ExitDegraded
	}

	code := ExitCompleted
	if summary.State != run.RunCompleted {
		code = ExitDegraded
	}

	if cfg.Marketsync.Archive.Enabled {
		if err := archiveRun(ctx, cfg, db, full); err != nil {
			logger.Errorf("archive export failed: %v", err)
			code = ExitDegraded
		}
	}
	return code
}

func archiveRun(ctx context.Context, cfg *config.Config, db *gorm.DB, full schedule.DateRange) error {
	archiver, err := export.NewArchiver(cfg, db)
	if err != nil {
		return err
	}
	defer func() {
		if err := archiver.Close(); err != nil {
			logger.Warnf("failed to close archive storage: %v", err)
		}
	}()
	return archiver.Export(ctx, full)
}

// resolveRange turns the CLI date arguments into the run's full range. With
// no arguments the range covers the configured lookback window ending today.
func resolveRange(cfg *config.Config, startArg, endArg string) (schedule.DateRange, error) {
	switch {
	case startArg == "" && endArg == "":
		lookback := cfg.Marketsync.Pipeline.LookbackDays
		if lookback <= 0 {
			return schedule.DateRange{}, schedule.NewInvalidRangeError("pipeline.lookback_days must be positive when no dates are given")
		}
		end := time.Now().UTC()
		start := end.AddDate(0, 0, -(lookback - 1))
		return schedule.NewDateRange(start, end)
	case startArg == "" || endArg == "":
		return schedule.DateRange{}, schedule.NewInvalidRangeError("either give both start and end dates or neither")
	default:
		return schedule.ParseDateRange(startArg, endArg)
	}
}

// classifyStartupError maps a failed fx start to an exit code. Configuration
// problems are usage errors; anything else is a degraded run.
func classifyStartupError(err error) int {
	var pe *exception.PipelineError
	if errors.As(err, &pe) && pe.Module == "config" {
		return ExitUsage
	}
	return ExitDegraded
}
