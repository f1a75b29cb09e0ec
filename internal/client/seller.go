// Package client implements the HTTP clients for the marketplace APIs: the
// seller API (orders and finance transactions) and the performance API
// (advertising statistics).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/seaward/marketsync/internal/config"
	"github.com/seaward/marketsync/internal/support/exception"
	"github.com/seaward/marketsync/internal/support/logger"
)

const moduleSellerClient = "SellerClient"

// sellerTimeout bounds one seller API call end to end.
const sellerTimeout = 30 * time.Second

// SellerClient calls the seller API. Every endpoint is a JSON POST
// authenticated with Client-Id and Api-Key headers.
type SellerClient struct {
	endpoint string
	clientID string
	apiKey   string
	client   *http.Client
}

// NewSellerClient builds a SellerClient from configuration.
func NewSellerClient(cfg config.SellerAPIConfig) *SellerClient {
	return &SellerClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		clientID: cfg.ClientID,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: sellerTimeout},
	}
}

// Post sends payload as JSON to path and returns the raw response body.
// Response status is mapped onto the error taxonomy: 429 carries the
// rate-limited sentinel, 5xx is retryable, everything else non-2xx is fatal.
func (c *SellerClient) Post(ctx context.Context, path string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, exception.NewPipelineError(moduleSellerClient, "failed to encode request payload", err, false, false)
	}

	url := c.endpoint + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, exception.NewPipelineError(moduleSellerClient, "failed to create API request", err, false, false)
	}
	req.Header.Set("Client-Id", c.clientID)
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, exception.NewPipelineError(moduleSellerClient, fmt.Sprintf("API call to %s failed", path), err, false, true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, exception.NewPipelineError(moduleSellerClient, "failed to read API response", err, false, true)
	}

	if err := classifyStatus(moduleSellerClient, path, resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	logger.Debugf("SellerClient: POST %s -> %d (%d bytes)", path, resp.StatusCode, len(respBody))
	return respBody, nil
}

// classifyStatus maps an HTTP status onto the retry taxonomy shared by both
// clients.
func classifyStatus(module, path string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	bodyString := strings.TrimSpace(string(body))
	msg := fmt.Sprintf("error response from %s: status code %d, body: %s", path, status, bodyString)

	switch {
	case status == http.StatusTooManyRequests:
		return exception.NewPipelineError(module, msg, exception.ErrRateLimited, false, true)
	case status >= 500:
		return exception.NewPipelineError(module, msg, fmt.Errorf("status %d", status), false, true)
	default:
		return exception.NewPipelineError(module, msg, fmt.Errorf("status %d", status), false, false)
	}
}
