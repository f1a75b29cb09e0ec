package finance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaward/marketsync/internal/domain/entity"
)

const sampleOperation = `{
  "operation_date": "2025-01-07 12:00:00",
  "operation_type": "OperationAgentDeliveredToCustomer",
  "operation_type_name": "Delivery and agent services",
  "amount": -120.5,
  "posting": {"posting_number": "555-0001-1"},
  "services": [
    {"name": "MarketplaceServiceItemDirectFlowLogistic", "price": -80.5},
    {"name": "MarketplaceRedistributionOfAcquiringOperation", "amount": "-40,00", "sku": 777}
  ]
}`

func normalizeOp(t *testing.T, raw string) []entity.OrderFeeItem {
	t.Helper()
	items, err := NewNormalizer().Normalize(json.RawMessage(raw))
	require.NoError(t, err)
	return items
}

func TestNormalize_ServicesExplodePerRow(t *testing.T) {
	items := normalizeOp(t, sampleOperation)
	require.Len(t, items, 2)

	logistics := items[0]
	assert.Equal(t, "555-0001-1", logistics.ExtOrderID)
	assert.Empty(t, logistics.OrderID, "linkage happens in finalize, not here")
	assert.Equal(t, entity.FeeGroupDelivery, logistics.FeeGroup)
	assert.Equal(t, "direct flow logistics", logistics.FeeName)
	assert.InDelta(t, -80.5, logistics.Amount, 0.001)
	assert.Equal(t, "OperationAgentDeliveredToCustomer", logistics.OperationType)
	assert.Equal(t, entity.FeeSourceTransaction, logistics.Source)
	require.NotNil(t, logistics.OccurredAt)
	assert.Equal(t, 7, logistics.OccurredAt.Day())

	acquiring := items[1]
	assert.Equal(t, entity.FeeGroupAcquiring, acquiring.FeeGroup)
	// Amount falls back to the "amount" key, localized decimal comma included.
	assert.InDelta(t, -40.0, acquiring.Amount, 0.001)
	require.NotNil(t, acquiring.SKU)
	assert.Equal(t, int64(777), *acquiring.SKU)
}

func TestNormalize_NoServicesWritesOperationTotal(t *testing.T) {
	items := normalizeOp(t, `{
	  "operation_date": "2025-01-03T00:00:00Z",
	  "operation_type": "MarketplaceSellerCompensation",
	  "operation_type_name": "Seller compensation",
	  "amount": 35.0,
	  "posting_number": "556-0002-1",
	  "services": []
	}`)
	require.Len(t, items, 1)

	assert.Equal(t, "556-0002-1", items[0].ExtOrderID)
	assert.Equal(t, "Seller compensation", items[0].FeeName)
	assert.Equal(t, entity.FeeGroupOther, items[0].FeeGroup)
	assert.InDelta(t, 35.0, items[0].Amount, 0.001)
}

func TestNormalize_OrderReferencePrecedence(t *testing.T) {
	items := normalizeOp(t, `{"posting": {"posting_number": "a-1"}, "posting_number": "b-1", "order_id": "c-1", "amount": 1}`)
	require.Len(t, items, 1)
	assert.Equal(t, "a-1", items[0].ExtOrderID)

	items = normalizeOp(t, `{"order_id": "c-1", "amount": 1}`)
	require.Len(t, items, 1)
	assert.Equal(t, "c-1", items[0].ExtOrderID)
}

func TestNormalize_UnknownDateLeftUnset(t *testing.T) {
	items := normalizeOp(t, `{"operation_date": "soon", "amount": 1}`)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].OccurredAt)
}

func TestNormalize_InvalidJSON(t *testing.T) {
	_, err := NewNormalizer().Normalize(json.RawMessage(`{broken`))
	assert.Error(t, err)
}

func TestNormalize_Deterministic(t *testing.T) {
	assert.Equal(t, normalizeOp(t, sampleOperation), normalizeOp(t, sampleOperation))
}

func TestGuessFeeGroup(t *testing.T) {
	cases := map[string]string{
		"MarketplaceServiceItemSaleCommission":                entity.FeeGroupCommission,
		"MarketplaceServiceItemDirectFlowLogistic":            entity.FeeGroupDelivery,
		"MarketplaceServiceItemRedistributionLastMileCourier": entity.FeeGroupDelivery,
		"MarketplaceServiceItemDelivToCustomer":               entity.FeeGroupDelivery,
		"MarketplaceRedistributionOfAcquiringOperation":       entity.FeeGroupAcquiring,
		"MarketplaceServicePremiumPromotion":                  entity.FeeGroupPromotion,
		"ClickAdvertisingCPC":                                 entity.FeeGroupPromotion,
		"SomethingUnrecognized":                               entity.FeeGroupOther,
		"":                                                    entity.FeeGroupOther,
	}
	for name, want := range cases {
		assert.Equal(t, want, GuessFeeGroup(name), "name=%s", name)
	}
}
