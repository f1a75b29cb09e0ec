package finance

import (
	"context"

	"gorm.io/gorm"

	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/support/exception"
	"github.com/seaward/marketsync/internal/support/logger"
)

// Finalize links the run's transaction charges to known orders and rebuilds
// the period cost aggregates over the full run range. It runs once per run,
// after every window of this source has been attempted.
type Finalize struct {
	db *gorm.DB
}

// NewFinalize builds the post-run pass over one database handle.
func NewFinalize(db *gorm.DB) *Finalize {
	return &Finalize{db: db}
}

// Run executes the linkage and aggregation statements in order. Each
// statement is idempotent over the same data.
func (f *Finalize) Run(ctx context.Context, full schedule.DateRange) error {
	logger.Infof("finance: linking charges to orders and rebuilding period costs for %s", full)

	rangeStart := full.Start
	rangeEnd := full.End.AddDate(0, 0, 1)

	statements := []struct {
		name string
		sql  string
		args []interface{}
	}{
		{"exact order linkage", linkExactSQL, nil},
		{"prefix order linkage", linkPrefixSQL, nil},
		{"period cost cleanup", deletePeriodCostsSQL, []interface{}{rangeStart, rangeEnd}},
		{"period cost rebuild", insertPeriodCostsSQL, []interface{}{rangeStart, rangeEnd}},
	}

	for _, stmt := range statements {
		if err := f.db.WithContext(ctx).Exec(stmt.sql, stmt.args...).Error; err != nil {
			return exception.NewPipelineError(SourceName, "finalize failed: "+stmt.name, err, false, false)
		}
	}
	return nil
}

// linkExactSQL attaches a charge to the order whose id matches the external
// reference exactly.
const linkExactSQL = `
UPDATE order_fee_items f
SET order_id = o.order_id
FROM orders o
WHERE f.source = 'finance_api'
  AND f.order_id = ''
  AND f.ext_order_id <> ''
  AND o.order_id = f.ext_order_id`

// linkPrefixSQL handles references that carry only the order number prefix:
// the charge binds to the most recent order starting with "<reference>-".
const linkPrefixSQL = `
UPDATE order_fee_items f
SET order_id = m.order_id
FROM (
    SELECT
        f2.id,
        (
            SELECT o.order_id
            FROM orders o
            WHERE o.order_id LIKE f2.ext_order_id || '-%'
            ORDER BY o.order_date DESC NULLS LAST
            LIMIT 1
        ) AS order_id
    FROM order_fee_items f2
    WHERE f2.source = 'finance_api'
      AND f2.order_id = ''
      AND f2.ext_order_id <> ''
) m
WHERE f.id = m.id
  AND m.order_id IS NOT NULL`

const deletePeriodCostsSQL = `
DELETE FROM period_costs
WHERE cost_date >= ? AND cost_date < ?`

// insertPeriodCostsSQL rebuilds the daily aggregates from the charges no
// order claimed.
const insertPeriodCostsSQL = `
INSERT INTO period_costs (cost_date, fee_group, fee_name, amount)
SELECT
    DATE(occurred_at) AS cost_date,
    fee_group,
    fee_name,
    SUM(amount)       AS amount
FROM order_fee_items
WHERE source = 'finance_api'
  AND order_id = ''
  AND occurred_at >= ? AND occurred_at < ?
GROUP BY 1, 2, 3`
