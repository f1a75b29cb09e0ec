package performance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/seaward/marketsync/internal/domain/entity"
	"github.com/seaward/marketsync/internal/pipeline/normalize"
	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/source"
)

// statRow mirrors one row of the daily statistics report. Counters arrive as
// numbers or numeric strings depending on export path, and money columns use
// localized decimals.
type statRow struct {
	ID          json.Number   `json:"id"`
	Title       string        `json:"title"`
	Date        string        `json:"date"`
	Views       json.Number   `json:"views"`
	Clicks      json.Number   `json:"clicks"`
	MoneySpent  source.Amount `json:"moneySpent"`
	AvgBid      source.Amount `json:"avgBid"`
	Orders      json.Number   `json:"orders"`
	OrdersMoney source.Amount `json:"ordersMoney"`
}

// NewNormalizer returns the daily statistics normalizer.
func NewNormalizer() normalize.Normalizer[entity.CampaignDaily] {
	return normalize.Func[entity.CampaignDaily](normalizeRow)
}

func normalizeRow(raw json.RawMessage) ([]entity.CampaignDaily, error) {
	var row statRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("invalid statistics row JSON: %w", err)
	}

	campaignID := strings.TrimSpace(row.ID.String())
	if campaignID == "" || campaignID == "0" {
		return nil, fmt.Errorf("statistics row has no campaign id")
	}

	statDate, err := time.Parse(schedule.DateLayout, row.Date)
	if err != nil {
		return nil, fmt.Errorf("campaign %s has malformed date %q", campaignID, row.Date)
	}

	return []entity.CampaignDaily{{
		CampaignID:    campaignID,
		CampaignTitle: strings.TrimSpace(row.Title),
		StatDate:      statDate.UTC(),
		Impressions:   toInt64(row.Views),
		Clicks:        toInt64(row.Clicks),
		Spend:         row.MoneySpent.Float(),
		AvgBid:        row.AvgBid.Float(),
		OrdersCount:   toInt64(row.Orders),
		OrdersAmount:  row.OrdersMoney.Float(),
	}}, nil
}

func toInt64(n json.Number) int64 {
	if v, err := n.Int64(); err == nil {
		return v
	}
	if f, err := n.Float64(); err == nil {
		return int64(f)
	}
	return 0
}
