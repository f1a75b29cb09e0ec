// Package source wires concrete data sources into the pipeline. Each source
// package builds a Runner from its page fetcher, normalizer, and writer; the
// coordinator drives the runners without knowing which API sits behind them.
package source

import (
	"context"

	"github.com/seaward/marketsync/internal/config"
	"github.com/seaward/marketsync/internal/pipeline/fetch"
	"github.com/seaward/marketsync/internal/pipeline/normalize"
	"github.com/seaward/marketsync/internal/pipeline/run"
	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/support/logger"
)

// RowsWriter persists a page's canonical rows.
type RowsWriter[T any] interface {
	WriteRows(ctx context.Context, window schedule.DateRange, rows []T) (int64, error)
}

// FinalizeFunc runs once per source after all windows, over the full range.
type FinalizeFunc func(ctx context.Context, full schedule.DateRange) error

// Runner executes fetch, normalize, and write for one source. It implements
// run.SourceRunner.
type Runner[T any] struct {
	name       string
	cfg        config.SourceConfig
	paginator  *fetch.Paginator
	normalizer normalize.Normalizer[T]
	writer     RowsWriter[T]
	finalize   FinalizeFunc
}

// NewRunner assembles a Runner. finalize may be nil when the source needs no
// post-run work.
func NewRunner[T any](
	name string,
	cfg config.SourceConfig,
	paginator *fetch.Paginator,
	normalizer normalize.Normalizer[T],
	writer RowsWriter[T],
	finalize FinalizeFunc,
) *Runner[T] {
	return &Runner[T]{
		name:       name,
		cfg:        cfg,
		paginator:  paginator,
		normalizer: normalizer,
		writer:     writer,
		finalize:   finalize,
	}
}

func (r *Runner[T]) Name() string       { return r.name }
func (r *Runner[T]) Required() bool     { return r.cfg.Required }
func (r *Runner[T]) MaxWindowDays() int { return r.cfg.MaxWindowDays }

// RunWindow walks the window's pages; each page is normalized and written
// before the next page is fetched, so a failure mid-window loses no committed
// work.
func (r *Runner[T]) RunWindow(ctx context.Context, window schedule.DateRange) (run.WindowResult, error) {
	var result run.WindowResult

	pages, err := r.paginator.FetchWindow(ctx, window, func(page fetch.RawPage) error {
		rows, warnings := normalize.Apply[T](r.normalizer, r.name, page.Records)
		for _, w := range warnings {
			logger.Warnf("%s", w)
		}
		result.Skipped += len(warnings)

		written, err := r.writer.WriteRows(ctx, window, rows)
		result.RowsWritten += written
		return err
	})

	result.Pages = pages
	return result, err
}

// Finalize implements run.SourceRunner.
func (r *Runner[T]) Finalize(ctx context.Context, full schedule.DateRange) error {
	if r.finalize == nil {
		return nil
	}
	return r.finalize(ctx, full)
}

var _ run.SourceRunner = (*Runner[struct{}])(nil)
