// Package tui implements tokentop, the terminal monitor for a running
// tokentab service. It polls the HTTP API on a tick and renders sessions,
// aggregate totals, budget state, and a token-rate chart, with desktop
// notifications when a threshold or budget trips.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tokentab-io/tokentab/internal/transport/httpapi"
)

const defaultRequestTimeout = 10 * time.Second

// APIError is a non-2xx response decoded from the service error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: %s (%s)", e.Message, e.Code)
}

// Client is a read-only client for the tokentab HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

// NewClient creates a Client. baseURL is the service root, for example
// "http://localhost:8080". apiKey may be empty when the service runs without
// auth; hc may be nil for a default client.
func NewClient(baseURL, apiKey string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		hc:      hc,
	}
}

// BaseURL returns the service root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Usage fetches the service-wide usage report for the given period
// (day, month, or total).
func (c *Client) Usage(ctx context.Context, period string) (httpapi.UsageResponse, error) {
	var out httpapi.UsageResponse
	path := "/api/v1/usage"
	if period != "" {
		path += "?period=" + url.QueryEscape(period)
	}
	err := c.get(ctx, path, &out)
	return out, err
}

// Sessions fetches the session list, oldest first.
func (c *Client) Sessions(ctx context.Context) (httpapi.SessionListResponse, error) {
	var out httpapi.SessionListResponse
	err := c.get(ctx, "/api/v1/sessions", &out)
	return out, err
}

// Report fetches the usage report for one session.
func (c *Client) Report(ctx context.Context, id string) (httpapi.ReportResponse, error) {
	var out httpapi.ReportResponse
	err := c.get(ctx, "/api/v1/sessions/"+url.PathEscape(id)+"/report", &out)
	return out, err
}

// Health fetches component health. A degraded service answers 503 with a
// regular health body, which still counts as a successful probe.
func (c *Client) Health(ctx context.Context) (httpapi.HealthResponse, error) {
	var out httpapi.HealthResponse

	resp, err := c.do(ctx, "/health")
	if err != nil {
		return out, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return out, apiErrorFrom(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode health response: %w", err)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return apiErrorFrom(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", path, err)
	}
	return resp, nil
}

func apiErrorFrom(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var e httpapi.ErrorResponse
		if json.Unmarshal(body, &e) == nil {
			apiErr.Code = e.Code
			apiErr.Message = e.Message
		}
	}
	return apiErr
}
