package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/seaward/marketsync/internal/config"
	"github.com/seaward/marketsync/internal/support/exception"
	"github.com/seaward/marketsync/internal/support/logger"
)

const modulePerformanceClient = "PerformanceClient"

// tokenSlack is subtracted from the token lifetime so a token is never used
// right at its expiry boundary.
const tokenSlack = 60 * time.Second

// performanceTimeout bounds one statistics API call; report endpoints are
// slower than the seller API.
const performanceTimeout = 60 * time.Second

// PerformanceClient calls the advertising statistics API. It authenticates
// with client credentials and caches the bearer token until shortly before
// expiry.
type PerformanceClient struct {
	endpoint     string
	clientID     string
	clientSecret string
	client       *http.Client
	now          func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewPerformanceClient builds a PerformanceClient from configuration.
func NewPerformanceClient(cfg config.PerformanceAPIConfig) *PerformanceClient {
	return &PerformanceClient{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       &http.Client{Timeout: performanceTimeout},
		now:          time.Now,
	}
}

// Get issues an authenticated GET to path with the given query parameters and
// returns the raw response body.
func (c *PerformanceClient) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, exception.NewPipelineError(modulePerformanceClient, "failed to create API request", err, false, false)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, exception.NewPipelineError(modulePerformanceClient, fmt.Sprintf("API call to %s failed", path), err, false, true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, exception.NewPipelineError(modulePerformanceClient, "failed to read API response", err, false, true)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Token may have been revoked server-side; drop the cache so the next
		// attempt re-authenticates.
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return nil, exception.NewPipelineError(modulePerformanceClient,
			fmt.Sprintf("error response from %s: status code 401", path), fmt.Errorf("status 401"), false, true)
	}

	if err := classifyStatus(modulePerformanceClient, path, resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	logger.Debugf("PerformanceClient: GET %s -> %d (%d bytes)", path, resp.StatusCode, len(respBody))
	return respBody, nil
}

// bearerToken returns the cached token, fetching a fresh one when none is
// held or the cached one is within the expiry slack.
func (c *PerformanceClient) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"grant_type":    "client_credentials",
	})
	if err != nil {
		return "", exception.NewPipelineError(modulePerformanceClient, "failed to encode token request", err, false, false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/client/token", bytes.NewReader(payload))
	if err != nil {
		return "", exception.NewPipelineError(modulePerformanceClient, "failed to create token request", err, false, false)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", exception.NewPipelineError(modulePerformanceClient, "token request failed", err, false, true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", exception.NewPipelineError(modulePerformanceClient, "failed to read token response", err, false, true)
	}
	if err := classifyStatus(modulePerformanceClient, "/api/client/token", resp.StatusCode, respBody); err != nil {
		return "", err
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		return "", exception.NewPipelineError(modulePerformanceClient, "failed to decode token response", err, false, false)
	}
	if tokenResp.AccessToken == "" {
		return "", exception.NewPipelineError(modulePerformanceClient, "token response carried no access_token", nil, false, false)
	}

	lifetime := time.Duration(tokenResp.ExpiresIn) * time.Second
	if lifetime <= tokenSlack {
		lifetime = tokenSlack + time.Second
	}
	c.token = tokenResp.AccessToken
	c.tokenExpiry = c.now().Add(lifetime - tokenSlack)
	logger.Debugf("PerformanceClient: obtained new bearer token, valid until %s", c.tokenExpiry.Format(time.RFC3339))

	return c.token, nil
}
