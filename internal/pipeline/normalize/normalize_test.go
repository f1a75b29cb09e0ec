package normalize

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type row struct {
	ID   string
	Qty  int
	Note string
}

// itemsNormalizer explodes an order payload into one row per item, the same
// shape the real sources use.
var itemsNormalizer = Func[row](func(raw json.RawMessage) ([]row, error) {
	var payload struct {
		ID    string `json:"id"`
		Items []struct {
			Qty int `json:"qty"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("missing required field: id")
	}
	rows := make([]row, 0, len(payload.Items))
	for _, it := range payload.Items {
		rows = append(rows, row{ID: payload.ID, Qty: it.Qty})
	}
	return rows, nil
})

func TestApply_ExplodesRecordsInOrder(t *testing.T) {
	records := []json.RawMessage{
		json.RawMessage(`{"id":"a","items":[{"qty":1},{"qty":2}]}`),
		json.RawMessage(`{"id":"b","items":[{"qty":3}]}`),
	}

	rows, warnings := Apply[row](itemsNormalizer, "orders", records)

	assert.Empty(t, warnings)
	assert.Equal(t, []row{{ID: "a", Qty: 1}, {ID: "a", Qty: 2}, {ID: "b", Qty: 3}}, rows)
}

func TestApply_SkipsMalformedKeepsRest(t *testing.T) {
	records := []json.RawMessage{
		json.RawMessage(`{"id":"a","items":[{"qty":1}]}`),
		json.RawMessage(`{not json`),
		json.RawMessage(`{"items":[{"qty":9}]}`),
		json.RawMessage(`{"id":"c","items":[{"qty":4}]}`),
	}

	rows, warnings := Apply[row](itemsNormalizer, "orders", records)

	assert.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, "c", rows[1].ID)

	assert.Len(t, warnings, 2)
	assert.Equal(t, "orders", warnings[0].Source)
	assert.Contains(t, warnings[0].Reason, "invalid JSON")
	assert.Contains(t, warnings[1].Reason, "missing required field")
	assert.Equal(t, json.RawMessage(`{not json`), warnings[0].Record)
}

func TestApply_Deterministic(t *testing.T) {
	records := []json.RawMessage{
		json.RawMessage(`{"id":"a","items":[{"qty":1},{"qty":2}]}`),
		json.RawMessage(`{"id":"b","items":[]}`),
	}

	first, firstWarnings := Apply[row](itemsNormalizer, "orders", records)
	second, secondWarnings := Apply[row](itemsNormalizer, "orders", records)

	assert.Equal(t, first, second)
	assert.Equal(t, firstWarnings, secondWarnings)
}

func TestApply_EmptyInput(t *testing.T) {
	rows, warnings := Apply[row](itemsNormalizer, "orders", nil)
	assert.Empty(t, rows)
	assert.Empty(t, warnings)
}
