package orders

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/seaward/marketsync/internal/domain/entity"
	"github.com/seaward/marketsync/internal/pipeline/normalize"
	"github.com/seaward/marketsync/internal/source"
)

// Bundle is the canonical output of one posting: the order row plus all of
// its dependent rows. The writer persists a bundle atomically per order.
type Bundle struct {
	Customer entity.Customer
	Order    entity.Order
	Products []entity.Product
	Items    []entity.OrderItem
	FeeItems []entity.OrderFeeItem
}

// posting mirrors the subset of the posting payload the pipeline consumes.
type posting struct {
	PostingNumber string  `json:"posting_number"`
	Status        string  `json:"status"`
	InProcessAt   *string `json:"in_process_at"`
	Products      []struct {
		SKU      int64         `json:"sku"`
		Name     string        `json:"name"`
		Quantity int           `json:"quantity"`
		Price    source.Amount `json:"price"`
	} `json:"products"`
	FinancialData struct {
		Products []struct {
			ProductID            int64          `json:"product_id"`
			CommissionAmount     source.Amount  `json:"commission_amount"`
			CommissionPercent    *source.Amount `json:"commission_percent"`
			Payout               source.Amount  `json:"payout"`
			TotalDiscountValue   source.Amount  `json:"total_discount_value"`
			TotalDiscountPercent *source.Amount `json:"total_discount_percent"`
		} `json:"products"`
	} `json:"financial_data"`
}

// NewNormalizer returns the posting normalizer. It is pure: the same raw
// posting always yields the same bundle.
func NewNormalizer() normalize.Normalizer[Bundle] {
	return normalize.Func[Bundle](normalizePosting)
}

func normalizePosting(raw json.RawMessage) ([]Bundle, error) {
	var p posting
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid posting JSON: %w", err)
	}
	if p.PostingNumber == "" {
		return nil, fmt.Errorf("posting has no posting_number")
	}

	customerID := extractCustomerID(p.PostingNumber)

	var orderDate *time.Time
	if p.InProcessAt != nil && *p.InProcessAt != "" {
		if t, err := time.Parse(time.RFC3339, *p.InProcessAt); err == nil {
			utc := t.UTC()
			orderDate = &utc
		} else {
			return nil, fmt.Errorf("posting %s has malformed in_process_at %q", p.PostingNumber, *p.InProcessAt)
		}
	}

	b := Bundle{
		Customer: entity.Customer{CustomerID: customerID},
		Order: entity.Order{
			OrderID:    p.PostingNumber,
			CustomerID: customerID,
			OrderDate:  orderDate,
			Status:     p.Status,
		},
	}

	for _, it := range p.Products {
		lineRevenue := it.Price.Float() * float64(it.Quantity)
		b.Order.Revenue += lineRevenue
		b.Products = append(b.Products, entity.Product{SKU: it.SKU, Name: it.Name})
		b.Items = append(b.Items, entity.OrderItem{
			OrderID:  p.PostingNumber,
			SKU:      it.SKU,
			Quantity: it.Quantity,
			Price:    it.Price.Float(),
			Revenue:  lineRevenue,
		})
	}

	for _, fp := range p.FinancialData.Products {
		b.Order.Payout += fp.Payout.Float()
		b.Order.FeesTotal += fp.CommissionAmount.Float()

		if fp.CommissionAmount != 0 {
			productID := fp.ProductID
			item := entity.OrderFeeItem{
				OrderID:   p.PostingNumber,
				FeeGroup:  entity.FeeGroupCommission,
				FeeName:   "sale commission",
				Amount:    fp.CommissionAmount.Float(),
				ProductID: &productID,
				Source:    entity.FeeSourcePosting,
			}
			if fp.CommissionPercent != nil {
				pct := fp.CommissionPercent.Float()
				item.Percent = &pct
			}
			b.FeeItems = append(b.FeeItems, item)
		}

		if fp.TotalDiscountValue != 0 {
			productID := fp.ProductID
			item := entity.OrderFeeItem{
				OrderID:   p.PostingNumber,
				FeeGroup:  entity.FeeGroupDiscount,
				FeeName:   "discount",
				Amount:    -fp.TotalDiscountValue.Float(),
				ProductID: &productID,
				Source:    entity.FeeSourcePosting,
			}
			if fp.TotalDiscountPercent != nil {
				pct := fp.TotalDiscountPercent.Float()
				item.Percent = &pct
			}
			b.FeeItems = append(b.FeeItems, item)
		}
	}

	return []Bundle{b}, nil
}

// extractCustomerID derives the customer identifier from the posting number
// prefix. Posting numbers look like "<customer>-<seq>" or
// "<customer>_<seq>"; a number with no separator stands for itself.
func extractCustomerID(postingNumber string) string {
	s := strings.TrimSpace(postingNumber)
	if s == "" {
		return "unknown"
	}
	for _, sep := range []string{"-", "_"} {
		if idx := strings.Index(s, sep); idx > 0 {
			return s[:idx]
		}
	}
	return s
}
