package finance

import (
	"context"

	"gorm.io/gorm"

	"github.com/seaward/marketsync/internal/domain/entity"
	"github.com/seaward/marketsync/internal/pipeline/retry"
	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/pipeline/write"
)

// Writer persists transaction fee rows. Charges have no natural key, so the
// first page of a window replaces the window's previous rows wholesale and
// later pages append; re-running a window converges instead of duplicating.
//
// A source's windows run sequentially on one worker, so the window tracking
// needs no lock.
type Writer struct {
	fees    *write.Upserter[entity.OrderFeeItem]
	current *schedule.DateRange
}

// NewWriter assembles the Writer over one database handle.
func NewWriter(db *gorm.DB, batchSize int, policy retry.Policy, sleeper retry.Sleeper) *Writer {
	return &Writer{
		fees: write.NewUpserter[entity.OrderFeeItem](db, write.UpsertSpec{
			Table: "order_fee_items",
		}, batchSize, policy, sleeper),
	}
}

// WriteRows persists one page of charges. Rows without an operation date are
// pinned to the window start so the window-scoped delete finds them on the
// next run.
func (w *Writer) WriteRows(ctx context.Context, window schedule.DateRange, rows []entity.OrderFeeItem) (int64, error) {
	for i := range rows {
		if rows[i].OccurredAt == nil {
			start := window.Start
			rows[i].OccurredAt = &start
		}
	}

	if w.current == nil || *w.current != window {
		w.current = &window
		return w.fees.Replace(ctx,
			"source = ? AND occurred_at >= ? AND occurred_at < ?",
			[]interface{}{entity.FeeSourceTransaction, window.Start, window.End.AddDate(0, 0, 1)},
			rows,
		)
	}

	return w.fees.Write(ctx, rows)
}
