package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/support/exception"
	"github.com/seaward/marketsync/internal/support/logger"
)

// Recalc rebuilds the aggregates derived from orders and fee items. It runs
// once per run, after every window of this source has been attempted, so the
// aggregates reflect whatever actually landed.
type Recalc struct {
	db *gorm.DB
}

// NewRecalc builds the post-run recalculation over one database handle.
func NewRecalc(db *gorm.DB) *Recalc {
	return &Recalc{db: db}
}

// Run executes the recalculation statements in order. Each statement is
// idempotent; re-running the pass converges on the same aggregates.
func (r *Recalc) Run(ctx context.Context, _ schedule.DateRange) error {
	logger.Infof("orders: recalculating customer aggregates and fee breakdowns")

	statements := []struct {
		name string
		sql  string
	}{
		{"customer aggregates", customerAggregatesSQL},
		{"first-order flags", firstOrderFlagsSQL},
		{"order fee breakdown", feeBreakdownSQL},
		{"order payout", payoutSQL},
	}

	for _, stmt := range statements {
		if err := r.db.WithContext(ctx).Exec(stmt.sql).Error; err != nil {
			return exception.NewPipelineError(SourceName, "recalc failed: "+stmt.name, err, false, false)
		}
	}
	return nil
}

const customerAggregatesSQL = `
INSERT INTO customers (customer_id, first_order_date, last_order_date, orders_count, total_revenue)
SELECT
    customer_id,
    MIN(order_date) AS first_order_date,
    MAX(order_date) AS last_order_date,
    COUNT(*)        AS orders_count,
    SUM(revenue)    AS total_revenue
FROM orders
WHERE customer_id IS NOT NULL
GROUP BY customer_id
ON CONFLICT (customer_id) DO UPDATE
SET
    first_order_date = EXCLUDED.first_order_date,
    last_order_date  = EXCLUDED.last_order_date,
    orders_count     = EXCLUDED.orders_count,
    total_revenue    = EXCLUDED.total_revenue`

const firstOrderFlagsSQL = `
UPDATE orders o
SET is_first_order = (o.order_date = f.first_order_date)
FROM (
    SELECT customer_id, MIN(order_date) AS first_order_date
    FROM orders
    WHERE customer_id IS NOT NULL AND order_date IS NOT NULL
    GROUP BY customer_id
) f
WHERE o.customer_id = f.customer_id`

// feeBreakdownSQL distributes fee items into per-group order columns. The
// commission rows from the transaction feed duplicate the posting feed's
// commission, so they are excluded from the totals.
const feeBreakdownSQL = `
UPDATE orders o
SET
    fees_total      = COALESCE(s.fees_total, 0),
    sales_report    = COALESCE(s.sales_report, 0),
    delivery_fee    = COALESCE(s.delivery_fee, 0),
    acquiring_fee   = COALESCE(s.acquiring_fee, 0),
    ads_fee         = COALESCE(s.ads_fee, 0),
    sale_commission = COALESCE(s.sale_commission, 0),
    discount        = COALESCE(s.discount_fee, 0),
    other_fee       = COALESCE(s.other_fee, 0),
    profit          = COALESCE(o.revenue, 0) + COALESCE(s.fees_total, 0)
FROM (
    SELECT
        order_id,
        SUM(amount) AS fees_total,
        SUM(CASE WHEN fee_group = 'sales'      THEN amount ELSE 0 END) AS sales_report,
        SUM(CASE WHEN fee_group = 'delivery'   THEN amount ELSE 0 END) AS delivery_fee,
        SUM(CASE WHEN fee_group = 'acquiring'  THEN amount ELSE 0 END) AS acquiring_fee,
        SUM(CASE WHEN fee_group = 'promotion'  THEN amount ELSE 0 END) AS ads_fee,
        SUM(CASE WHEN fee_group = 'commission' THEN amount ELSE 0 END) AS sale_commission,
        SUM(CASE WHEN fee_group = 'discount'   THEN amount ELSE 0 END) AS discount_fee,
        SUM(CASE WHEN fee_group NOT IN ('sales', 'delivery', 'acquiring', 'promotion', 'commission', 'discount')
                 THEN amount ELSE 0 END) AS other_fee
    FROM order_fee_items
    WHERE order_id IS NOT NULL AND order_id <> ''
      AND NOT (source = 'finance_api' AND fee_group = 'commission')
    GROUP BY order_id
) s
WHERE o.order_id = s.order_id`

const payoutSQL = `
UPDATE orders
SET payout = COALESCE(revenue, 0) + COALESCE(fees_total, 0)`
