// Package api implements the typed client for the remote calling service:
// bulk call creation, the concurrency snapshot, agent details and the
// paginated call-results search.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dialcast/internal/logging"
)

// APIError is a non-2xx response from the calling service.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.Status, truncate(e.Body, 200))
}

// IsAuthOrMissing reports whether the error is a 401/403/404 response,
// the class that must never be retried.
func (e *APIError) IsAuthOrMissing() bool {
	return e.Status == http.StatusUnauthorized ||
		e.Status == http.StatusForbidden ||
		e.Status == http.StatusNotFound
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Client talks to the remote calling API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// ClientConfig holds client construction options.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a calling API client. Timeout bounds every request
// so a wedged remote call cannot hang a watch session.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateCalls submits one batch of call requests for the given agent and
// returns the created call records in request order.
func (c *Client) CreateCalls(ctx context.Context, agentID string, calls []CallRequest) ([]CreatedCall, error) {
	logging.APIDebug("CreateCalls: agent=%s count=%d", agentID, len(calls))

	var resp createCallsResponse
	err := c.do(ctx, http.MethodPost, "/calls/bulk", createCallsRequest{
		AgentID: agentID,
		Calls:   calls,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Calls, nil
}

// GetConcurrency fetches the org-wide concurrency snapshot.
func (c *Client) GetConcurrency(ctx context.Context) (*ConcurrencyResponse, error) {
	var resp ConcurrencyResponse
	if err := c.do(ctx, http.MethodGet, "/org/concurrency", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAgent fetches agent details including the weekly open-hours schedule.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*AgentResponse, error) {
	var resp AgentResponse
	if err := c.do(ctx, http.MethodGet, "/agents/"+agentID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchCalls fetches one page of call results.
func (c *Client) SearchCalls(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	logging.APIDebug("SearchCalls: page=%d size=%d agents=%v", req.Page, req.Size, req.AgentIDs)

	var resp SearchResponse
	if err := c.do(ctx, http.MethodPost, "/calls/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do performs one JSON request/response round trip. A context without a
// deadline gets the client timeout applied.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("API key not configured")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.APIError("%s %s failed: %v", method, path, err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.APIError("%s %s: status %d", method, path, resp.StatusCode)
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
