// Package orders loads fulfilled-by-operator postings from the seller API
// into the orders, order_items, products, and order_fee_items tables, and
// recalculates the customer and fee aggregates afterwards.
package orders

import (
	"context"
	"encoding/json"

	"github.com/seaward/marketsync/internal/client"
	"github.com/seaward/marketsync/internal/pipeline/fetch"
	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/support/exception"
)

// SourceName identifies this source in configuration, summaries, and metrics.
const SourceName = "orders"

const listPath = "/v2/posting/fbo/list"

// timeLayout is the ISO 8601 form the seller API expects for period filters.
const timeLayout = "2006-01-02T15:04:05Z"

// Fetcher retrieves posting pages with offset pagination.
type Fetcher struct {
	client *client.SellerClient
}

// NewFetcher builds a Fetcher over the seller client.
func NewFetcher(c *client.SellerClient) *Fetcher {
	return &Fetcher{client: c}
}

// listRequest is the posting list payload. The window is inclusive of its end
// date, so the filter runs to the end of the last day.
type listRequest struct {
	Filter struct {
		Since string `json:"since"`
		To    string `json:"to"`
	} `json:"filter"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	With   struct {
		AnalyticsData bool `json:"analytics_data"`
		FinancialData bool `json:"financial_data"`
	} `json:"with"`
}

// FetchPage implements fetch.PageFetcher. The API has returned the result as
// either a bare array of postings or an object with a postings key, depending
// on version; both shapes are accepted.
func (f *Fetcher) FetchPage(ctx context.Context, window schedule.DateRange, cursor fetch.Cursor, pageSize int) (fetch.RawPage, error) {
	var req listRequest
	req.Filter.Since = window.Start.Format(timeLayout)
	req.Filter.To = window.End.AddDate(0, 0, 1).Format(timeLayout)
	req.Limit = pageSize
	req.Offset = cursor.Offset
	req.With.AnalyticsData = true
	req.With.FinancialData = true

	body, err := f.client.Post(ctx, listPath, req)
	if err != nil {
		return fetch.RawPage{}, err
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Result) == 0 {
		return fetch.RawPage{}, exception.NewPipelineError(SourceName, "unexpected posting list response shape", err, false, false)
	}

	var postings []json.RawMessage
	if err := json.Unmarshal(envelope.Result, &postings); err != nil {
		var wrapped struct {
			Postings []json.RawMessage `json:"postings"`
		}
		if err := json.Unmarshal(envelope.Result, &wrapped); err != nil {
			return fetch.RawPage{}, exception.NewPipelineError(SourceName, "unexpected posting list response shape", err, false, false)
		}
		postings = wrapped.Postings
	}

	page := fetch.RawPage{Records: postings}
	if len(postings) == pageSize {
		page.Next = &fetch.Cursor{Offset: cursor.Offset + pageSize}
	}
	return page, nil
}

var _ fetch.PageFetcher = (*Fetcher)(nil)
