package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/seaward/marketsync/internal/domain/entity"
	"github.com/seaward/marketsync/internal/pipeline/retry"
	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/pipeline/write"
)

// Writer persists posting bundles. Orders, customers, and products are
// upserted on their natural keys; order lines and posting fee rows have no
// natural key, so they are replaced per order instead.
type Writer struct {
	customers *write.Upserter[entity.Customer]
	orders    *write.Upserter[entity.Order]
	products  *write.Upserter[entity.Product]
	items     *write.Upserter[entity.OrderItem]
	fees      *write.Upserter[entity.OrderFeeItem]
}

// NewWriter assembles the Writer over one database handle.
func NewWriter(db *gorm.DB, batchSize int, policy retry.Policy, sleeper retry.Sleeper) *Writer {
	return &Writer{
		// A customer row is identity only; aggregates are recalculated later,
		// so conflicts are left untouched.
		customers: write.NewUpserter[entity.Customer](db, write.UpsertSpec{
			Table:           "customers",
			ConflictColumns: []string{"customer_id"},
		}, batchSize, policy, sleeper),
		orders: write.NewUpserter[entity.Order](db, write.UpsertSpec{
			Table:           "orders",
			ConflictColumns: []string{"order_id"},
			// Derived columns (fee breakdown, is_first_order) are owned by the
			// recalculation pass and not overwritten here.
			UpdateColumns: []string{"customer_id", "order_date", "status", "revenue", "fees_total", "payout"},
		}, batchSize, policy, sleeper),
		products: write.NewUpserter[entity.Product](db, write.UpsertSpec{
			Table:           "products",
			ConflictColumns: []string{"sku"},
			UpdateColumns:   []string{"name"},
		}, batchSize, policy, sleeper),
		items: write.NewUpserter[entity.OrderItem](db, write.UpsertSpec{
			Table: "order_items",
		}, batchSize, policy, sleeper),
		fees: write.NewUpserter[entity.OrderFeeItem](db, write.UpsertSpec{
			Table: "order_fee_items",
		}, batchSize, policy, sleeper),
	}
}

// WriteRows persists one page of bundles and returns the number of rows
// handed to the store.
func (w *Writer) WriteRows(ctx context.Context, _ schedule.DateRange, bundles []Bundle) (int64, error) {
	if len(bundles) == 0 {
		return 0, nil
	}

	customers := make([]entity.Customer, 0, len(bundles))
	orders := make([]entity.Order, 0, len(bundles))
	productsBySKU := make(map[int64]entity.Product)
	var items []entity.OrderItem
	var fees []entity.OrderFeeItem
	orderIDs := make([]interface{}, 0, len(bundles))

	seenCustomers := make(map[string]bool)
	for _, b := range bundles {
		if !seenCustomers[b.Customer.CustomerID] {
			seenCustomers[b.Customer.CustomerID] = true
			customers = append(customers, b.Customer)
		}
		orders = append(orders, b.Order)
		orderIDs = append(orderIDs, b.Order.OrderID)
		for _, p := range b.Products {
			productsBySKU[p.SKU] = p
		}
		items = append(items, b.Items...)
		fees = append(fees, b.FeeItems...)
	}

	products := make([]entity.Product, 0, len(productsBySKU))
	for _, p := range productsBySKU {
		products = append(products, p)
	}

	var written int64

	n, err := w.customers.Write(ctx, customers)
	written += n
	if err != nil {
		return written, err
	}

	n, err = w.orders.Write(ctx, orders)
	written += n
	if err != nil {
		return written, err
	}

	n, err = w.products.Write(ctx, products)
	written += n
	if err != nil {
		return written, err
	}

	n, err = w.items.Replace(ctx, "order_id IN ?", []interface{}{orderIDs}, items)
	written += n
	if err != nil {
		return written, err
	}

	n, err = w.fees.Replace(ctx, "order_id IN ? AND source = ?", []interface{}{orderIDs, entity.FeeSourcePosting}, fees)
	written += n
	return written, err
}
