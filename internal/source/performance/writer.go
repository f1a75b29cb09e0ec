package performance

import (
	"context"

	"gorm.io/gorm"

	"github.com/seaward/marketsync/internal/domain/entity"
	"github.com/seaward/marketsync/internal/pipeline/retry"
	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/pipeline/write"
)

// Writer upserts daily campaign statistics on their natural key.
type Writer struct {
	daily *write.Upserter[entity.CampaignDaily]
}

// NewWriter assembles the Writer over one database handle.
func NewWriter(db *gorm.DB, batchSize int, policy retry.Policy, sleeper retry.Sleeper) *Writer {
	return &Writer{
		daily: write.NewUpserter[entity.CampaignDaily](db, write.UpsertSpec{
			Table:           "campaign_daily",
			ConflictColumns: []string{"campaign_id", "stat_date"},
			UpdateColumns: []string{
				"campaign_title", "impressions", "clicks",
				"spend", "avg_bid", "orders_cnt", "orders_amount",
			},
		}, batchSize, policy, sleeper),
	}
}

// WriteRows implements source.RowsWriter.
func (w *Writer) WriteRows(ctx context.Context, _ schedule.DateRange, rows []entity.CampaignDaily) (int64, error) {
	return w.daily.Write(ctx, rows)
}
