// Package finance loads transaction-log charges from the seller API into
// order_fee_items, links them to known orders, and rebuilds the period cost
// aggregates for charges no order can claim.
package finance

import (
	"context"
	"encoding/json"

	"github.com/seaward/marketsync/internal/client"
	"github.com/seaward/marketsync/internal/pipeline/fetch"
	"github.com/seaward/marketsync/internal/pipeline/schedule"
	"github.com/seaward/marketsync/internal/support/exception"
)

// SourceName identifies this source in configuration, summaries, and metrics.
const SourceName = "finance"

const listPath = "/v3/finance/transaction/list"

const timeLayout = "2006-01-02T15:04:05Z"

// Fetcher retrieves transaction pages with page-number pagination.
type Fetcher struct {
	client *client.SellerClient
}

// NewFetcher builds a Fetcher over the seller client.
func NewFetcher(c *client.SellerClient) *Fetcher {
	return &Fetcher{client: c}
}

type listRequest struct {
	Filter struct {
		Date struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"date"`
	} `json:"filter"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// FetchPage implements fetch.PageFetcher.
func (f *Fetcher) FetchPage(ctx context.Context, window schedule.DateRange, cursor fetch.Cursor, pageSize int) (fetch.RawPage, error) {
	page := cursor.Page
	if page < 1 {
		page = 1
	}

	var req listRequest
	req.Filter.Date.From = window.Start.Format(timeLayout)
	req.Filter.Date.To = window.End.AddDate(0, 0, 1).Format(timeLayout)
	req.Page = page
	req.PageSize = pageSize

	body, err := f.client.Post(ctx, listPath, req)
	if err != nil {
		return fetch.RawPage{}, err
	}

	var envelope struct {
		Result struct {
			Operations []json.RawMessage `json:"operations"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fetch.RawPage{}, exception.NewPipelineError(SourceName, "unexpected transaction list response shape", err, false, false)
	}

	raw := fetch.RawPage{Records: envelope.Result.Operations}
	if len(envelope.Result.Operations) == pageSize {
		raw.Next = &fetch.Cursor{Page: page + 1}
	}
	return raw, nil
}

var _ fetch.PageFetcher = (*Fetcher)(nil)
