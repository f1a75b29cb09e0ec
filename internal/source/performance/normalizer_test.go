package performance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaward/marketsync/internal/domain/entity"
	"github.com/seaward/marketsync/internal/pipeline/normalize"
)

func TestNormalizeRow(t *testing.T) {
	rows, err := NewNormalizer().Normalize(json.RawMessage(`{
	  "id": 42,
	  "title": "  Spring launch  ",
	  "date": "2025-03-02",
	  "views": "1200",
	  "clicks": 37,
	  "moneySpent": "512,40",
	  "avgBid": "13.85",
	  "orders": 4,
	  "ordersMoney": "2 140,00"
	}`))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "42", row.CampaignID)
	assert.Equal(t, "Spring launch", row.CampaignTitle)
	assert.Equal(t, "2025-03-02", row.StatDate.Format("2006-01-02"))
	assert.Equal(t, int64(1200), row.Impressions)
	assert.Equal(t, int64(37), row.Clicks)
	assert.InDelta(t, 512.40, row.Spend, 0.001)
	assert.InDelta(t, 13.85, row.AvgBid, 0.001)
	assert.Equal(t, int64(4), row.OrdersCount)
	assert.InDelta(t, 2140.0, row.OrdersAmount, 0.001)
}

func TestNormalizeRow_MissingCountersDefaultToZero(t *testing.T) {
	rows, err := NewNormalizer().Normalize(json.RawMessage(`{"id": "7", "date": "2025-03-02"}`))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Zero(t, rows[0].Impressions)
	assert.Zero(t, rows[0].Clicks)
	assert.Zero(t, rows[0].Spend)
}

func TestNormalizeRow_Rejections(t *testing.T) {
	n := NewNormalizer()

	for _, raw := range []string{
		`{broken`,
		`{"date": "2025-03-02"}`,
		`{"id": 42, "date": "03/02/2025"}`,
	} {
		_, err := n.Normalize(json.RawMessage(raw))
		assert.Error(t, err, "raw=%s", raw)
	}
}

func TestNormalizeRow_SkipsBadRowsKeepsRest(t *testing.T) {
	records := []json.RawMessage{
		json.RawMessage(`{"id": 1, "date": "2025-03-01", "views": 10}`),
		json.RawMessage(`{"date": "2025-03-01"}`),
		json.RawMessage(`{"id": 2, "date": "2025-03-01", "views": 20}`),
	}

	rows, warnings := normalize.Apply[entity.CampaignDaily](NewNormalizer(), SourceName, records)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].CampaignID)
	assert.Equal(t, "2", rows[1].CampaignID)
	assert.Len(t, warnings, 1)
}
