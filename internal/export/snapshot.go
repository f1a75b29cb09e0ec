package export

import (
	"github.com/seaward/marketsync/internal/domain/entity"
)

// OrderSnapshot is one archived order row with parquet serialization tags.
type OrderSnapshot struct {
	OrderID    string  `parquet:"name=order_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	CustomerID string  `parquet:"name=customer_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	OrderDate  int64   `parquet:"name=order_date,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	Status     string  `parquet:"name=status,type=BYTE_ARRAY,convertedtype=UTF8"`
	Revenue    float64 `parquet:"name=revenue,type=DOUBLE"`
	FeesTotal  float64 `parquet:"name=fees_total,type=DOUBLE"`
	Payout     float64 `parquet:"name=payout,type=DOUBLE"`
}

func newOrderSnapshot(o entity.Order) OrderSnapshot {
	s := OrderSnapshot{
		OrderID:    o.OrderID,
		CustomerID: o.CustomerID,
		Status:     o.Status,
		Revenue:    o.Revenue,
		FeesTotal:  o.FeesTotal,
		Payout:     o.Payout,
	}
	if o.OrderDate != nil {
		s.OrderDate = o.OrderDate.UnixMilli()
	}
	return s
}

// FeeItemSnapshot is one archived charge row.
type FeeItemSnapshot struct {
	OrderID       string  `parquet:"name=order_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	ExtOrderID    string  `parquet:"name=ext_order_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	FeeGroup      string  `parquet:"name=fee_group,type=BYTE_ARRAY,convertedtype=UTF8"`
	FeeName       string  `parquet:"name=fee_name,type=BYTE_ARRAY,convertedtype=UTF8"`
	Amount        float64 `parquet:"name=amount,type=DOUBLE"`
	OperationType string  `parquet:"name=operation_type,type=BYTE_ARRAY,convertedtype=UTF8"`
	OccurredAt    int64   `parquet:"name=occurred_at,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	Source        string  `parquet:"name=source,type=BYTE_ARRAY,convertedtype=UTF8"`
}

func newFeeItemSnapshot(f entity.OrderFeeItem) FeeItemSnapshot {
	s := FeeItemSnapshot{
		OrderID:       f.OrderID,
		ExtOrderID:    f.ExtOrderID,
		FeeGroup:      f.FeeGroup,
		FeeName:       f.FeeName,
		Amount:        f.Amount,
		OperationType: f.OperationType,
		Source:        f.Source,
	}
	if f.OccurredAt != nil {
		s.OccurredAt = f.OccurredAt.UnixMilli()
	}
	return s
}

// CampaignSnapshot is one archived campaign statistics row.
type CampaignSnapshot struct {
	CampaignID    string  `parquet:"name=campaign_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	CampaignTitle string  `parquet:"name=campaign_title,type=BYTE_ARRAY,convertedtype=UTF8"`
	StatDate      int64   `parquet:"name=stat_date,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	Impressions   int64   `parquet:"name=impressions,type=INT64"`
	Clicks        int64   `parquet:"name=clicks,type=INT64"`
	Spend         float64 `parquet:"name=spend,type=DOUBLE"`
	OrdersCount   int64   `parquet:"name=orders_cnt,type=INT64"`
	OrdersAmount  float64 `parquet:"name=orders_amount,type=DOUBLE"`
}

func newCampaignSnapshot(c entity.CampaignDaily) CampaignSnapshot {
	return CampaignSnapshot{
		CampaignID:    c.CampaignID,
		CampaignTitle: c.CampaignTitle,
		StatDate:      c.StatDate.UnixMilli(),
		Impressions:   c.Impressions,
		Clicks:        c.Clicks,
		Spend:         c.Spend,
		OrdersCount:   c.OrdersCount,
		OrdersAmount:  c.OrdersAmount,
	}
}
