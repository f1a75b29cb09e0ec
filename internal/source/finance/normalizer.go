package finance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/seaward/marketsync/internal/domain/entity"
	"github.com/seaward/marketsync/internal/pipeline/normalize"
	"github.com/seaward/marketsync/internal/source"
)

// operation mirrors the subset of a transaction-log entry the pipeline
// consumes. The order reference has moved between fields across API versions,
// so several candidates are read.
type operation struct {
	OperationDate     string        `json:"operation_date"`
	Date              string        `json:"date"`
	OperationType     string        `json:"operation_type"`
	OperationTypeName string        `json:"operation_type_name"`
	Amount            source.Amount `json:"amount"`
	Posting           struct {
		PostingNumber string `json:"posting_number"`
	} `json:"posting"`
	PostingNumber string `json:"posting_number"`
	OrderID       string `json:"order_id"`
	Services      []struct {
		Name   string         `json:"name"`
		Type   string         `json:"type"`
		Price  *source.Amount `json:"price"`
		Amount *source.Amount `json:"amount"`
		SKU    json.Number    `json:"sku"`
	} `json:"services"`
}

// NewNormalizer returns the transaction normalizer. It is pure: order linkage
// happens later in SQL, so the output only carries the external reference.
func NewNormalizer() normalize.Normalizer[entity.OrderFeeItem] {
	return normalize.Func[entity.OrderFeeItem](normalizeOperation)
}

func normalizeOperation(raw json.RawMessage) ([]entity.OrderFeeItem, error) {
	var op operation
	if err := json.Unmarshal(raw, &op); err != nil {
		return nil, fmt.Errorf("invalid transaction JSON: %w", err)
	}

	extOrderID := orderReference(op)
	occurredAt := parseOperationDate(op)
	opType := op.OperationType
	typeName := op.OperationTypeName
	if typeName == "" {
		typeName = opType
	}
	if typeName == "" {
		typeName = "unknown"
	}

	// An operation with no per-service breakdown still carries its total.
	if len(op.Services) == 0 {
		return []entity.OrderFeeItem{{
			ExtOrderID:    extOrderID,
			FeeGroup:      GuessFeeGroup(typeName),
			FeeName:       feeName(typeName),
			Amount:        op.Amount.Float(),
			OperationType: opType,
			OccurredAt:    occurredAt,
			Source:        entity.FeeSourceTransaction,
		}}, nil
	}

	items := make([]entity.OrderFeeItem, 0, len(op.Services))
	for _, svc := range op.Services {
		name := svc.Name
		if name == "" {
			name = svc.Type
		}
		if name == "" {
			name = "unknown"
		}

		amount := 0.0
		switch {
		case svc.Price != nil:
			amount = svc.Price.Float()
		case svc.Amount != nil:
			amount = svc.Amount.Float()
		}

		item := entity.OrderFeeItem{
			ExtOrderID:    extOrderID,
			FeeGroup:      GuessFeeGroup(name),
			FeeName:       feeName(name),
			Amount:        amount,
			OperationType: opType,
			OccurredAt:    occurredAt,
			Source:        entity.FeeSourceTransaction,
		}
		if sku, err := svc.SKU.Int64(); err == nil && sku != 0 {
			item.SKU = &sku
		}
		items = append(items, item)
	}
	return items, nil
}

// orderReference picks the order candidate out of whichever field the API
// populated.
func orderReference(op operation) string {
	for _, candidate := range []string{op.Posting.PostingNumber, op.PostingNumber, op.OrderID} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return ""
}

// operationDateLayouts covers the date forms seen in the transaction log.
var operationDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseOperationDate(op operation) *time.Time {
	value := op.OperationDate
	if value == "" {
		value = op.Date
	}
	if value == "" {
		return nil
	}
	for _, layout := range operationDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// GuessFeeGroup classifies a service or operation name into a fee group by
// keyword. Service type names are the marketplace's CamelCase identifiers, so
// matching runs over the lowercased name.
func GuessFeeGroup(name string) string {
	s := strings.ToLower(name)

	switch {
	case containsAny(s, "commission", "reward"):
		return entity.FeeGroupCommission
	case containsAny(s, "logistic", "deliv", "last mile", "lastmile", "courier"):
		return entity.FeeGroupDelivery
	case containsAny(s, "acquiring", "agent"):
		return entity.FeeGroupAcquiring
	case containsAny(s, "click", "cpc", "cpo", "promo", "advert", "marketing"):
		return entity.FeeGroupPromotion
	default:
		return entity.FeeGroupOther
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// feeNames maps the marketplace's service identifiers to readable labels.
// Unknown identifiers pass through unchanged.
var feeNames = map[string]string{
	"MarketplaceServiceItemDirectFlowLogistic":            "direct flow logistics",
	"MarketplaceServiceItemDeliveryToCustomer":            "delivery to customer",
	"MarketplaceServiceItemRedistributionLastMileCourier": "last mile courier",
	"MarketplaceRedistributionOfAcquiringOperation":       "acquiring",
	"MarketplaceSaleReviewsItem":                          "review promotion",
}

func feeName(name string) string {
	if label, ok := feeNames[name]; ok {
		return label
	}
	return name
}
