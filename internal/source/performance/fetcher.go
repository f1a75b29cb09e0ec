// Package performance loads advertising campaign statistics from the
// performance API into the campaign_daily table.
package performance

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/seaward/marketsync/internal/client"
	"github.com/seaward/marketsync/internal/pipeline/fetch"
	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/support/exception"
)

// SourceName identifies this source in configuration, summaries, and metrics.
const SourceName = "performance"

const dailyStatsPath = "/api/client/statistics/daily/json"

// Fetcher retrieves daily campaign statistics. The endpoint returns a whole
// window at once, so every window is exactly one page.
type Fetcher struct {
	client *client.PerformanceClient
}

// NewFetcher builds a Fetcher over the performance client.
func NewFetcher(c *client.PerformanceClient) *Fetcher {
	return &Fetcher{client: c}
}

// FetchPage implements fetch.PageFetcher.
func (f *Fetcher) FetchPage(ctx context.Context, window schedule.DateRange, _ fetch.Cursor, _ int) (fetch.RawPage, error) {
	params := url.Values{}
	params.Set("dateFrom", window.Start.Format(schedule.DateLayout))
	params.Set("dateTo", window.End.Format(schedule.DateLayout))

	body, err := f.client.Get(ctx, dailyStatsPath, params)
	if err != nil {
		return fetch.RawPage{}, err
	}

	var envelope struct {
		Rows []json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fetch.RawPage{}, exception.NewPipelineError(SourceName, "unexpected daily statistics response shape", err, false, false)
	}

	return fetch.RawPage{Records: envelope.Rows}, nil
}

var _ fetch.PageFetcher = (*Fetcher)(nil)
