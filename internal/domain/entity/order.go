// Package entity defines the destination-store rows the pipeline writes.
// Every table with a natural key carries it as its primary key so upserts can
// target ON CONFLICT on real identity rather than surrogate ids.
package entity

import "time"

// Customer is an aggregate row derived from orders. CustomerID comes from the
// order number prefix; the remaining columns are recalculated after each run.
type Customer struct {
	CustomerID     string     `gorm:"column:customer_id;primaryKey"`
	FirstOrderDate *time.Time `gorm:"column:first_order_date"`
	LastOrderDate  *time.Time `gorm:"column:last_order_date"`
	OrdersCount    int        `gorm:"column:orders_count"`
	TotalRevenue   float64    `gorm:"column:total_revenue"`
}

func (Customer) TableName() string { return "customers" }

// Order is one marketplace order, keyed by the posting number.
type Order struct {
	OrderID    string     `gorm:"column:order_id;primaryKey"`
	CustomerID string     `gorm:"column:customer_id"`
	OrderDate  *time.Time `gorm:"column:order_date"`
	Status     string     `gorm:"column:status"`
	Revenue    float64    `gorm:"column:revenue"`

	// FeesTotal and Payout are seeded from the posting's financial data and
	// recalculated from fee items once the finance source has loaded.
	FeesTotal float64 `gorm:"column:fees_total"`
	Payout    float64 `gorm:"column:payout"`

	// Fee breakdown columns, filled by the post-run recalculation.
	SalesReport    float64 `gorm:"column:sales_report"`
	DeliveryFee    float64 `gorm:"column:delivery_fee"`
	AcquiringFee   float64 `gorm:"column:acquiring_fee"`
	AdsFee         float64 `gorm:"column:ads_fee"`
	SaleCommission float64 `gorm:"column:sale_commission"`
	Discount       float64 `gorm:"column:discount"`
	OtherFee       float64 `gorm:"column:other_fee"`
	Profit         float64 `gorm:"column:profit"`

	IsFirstOrder *bool `gorm:"column:is_first_order"`
}

func (Order) TableName() string { return "orders" }

// Product is catalog data observed on order lines, keyed by SKU.
type Product struct {
	SKU  int64  `gorm:"column:sku;primaryKey"`
	Name string `gorm:"column:name"`
}

func (Product) TableName() string { return "products" }

// OrderItem is one order line. Lines have no natural key of their own, so the
// writer replaces an order's lines wholesale instead of upserting them.
type OrderItem struct {
	ID       int64   `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID  string  `gorm:"column:order_id"`
	SKU      int64   `gorm:"column:sku"`
	Quantity int     `gorm:"column:quantity"`
	Price    float64 `gorm:"column:price"`
	Revenue  float64 `gorm:"column:revenue"`
}

func (OrderItem) TableName() string { return "order_items" }

// Fee sources distinguish where a fee row came from. Posting rows are
// replaced per order; transaction rows are replaced per run range.
const (
	FeeSourcePosting     = "posting_financial"
	FeeSourceTransaction = "finance_api"
)

// Fee groups classify service charges for reporting.
const (
	FeeGroupCommission = "commission"
	FeeGroupDelivery   = "delivery"
	FeeGroupAcquiring  = "acquiring"
	FeeGroupPromotion  = "promotion"
	FeeGroupDiscount   = "discount"
	FeeGroupSales      = "sales"
	FeeGroupOther      = "other"
)

// OrderFeeItem is one charge or accrual line. OrderID is empty when the
// charge could not be tied to a known order; ExtOrderID then keeps the
// candidate reference from the API.
type OrderFeeItem struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID       string     `gorm:"column:order_id"`
	ExtOrderID    string     `gorm:"column:ext_order_id"`
	FeeGroup      string     `gorm:"column:fee_group"`
	FeeName       string     `gorm:"column:fee_name"`
	Amount        float64    `gorm:"column:amount"`
	Percent       *float64   `gorm:"column:percent"`
	ProductID     *int64     `gorm:"column:product_id"`
	SKU           *int64     `gorm:"column:sku"`
	OperationType string     `gorm:"column:operation_type"`
	OccurredAt    *time.Time `gorm:"column:occurred_at"`
	Source        string     `gorm:"column:source"`
}

func (OrderFeeItem) TableName() string { return "order_fee_items" }
