// Package openai adapts the OpenAI-compatible chat completions API to the
// domain Completer and Streamer contracts.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/tokentab-io/tokentab/internal/domain"
	"github.com/tokentab-io/tokentab/internal/metrics"
)

// Client is a chat provider using the OpenAI-compatible API.
type Client struct {
	client *openai.Client
	model  string
	user   string
	logger *zap.Logger
}

// Config holds the chat provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	User       string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient creates an OpenAI-compatible chat provider.
func NewClient(cfg *Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		user:   cfg.User,
		logger: logger,
	}
}

// Complete implements domain.Completer with transport-level metrics.
func (c *Client) Complete(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	model := c.resolveModel(req)
	apiReq := c.buildRequest(req, model)

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, apiReq)

	duration := time.Since(start)

	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues(model, "error").Inc()
		metrics.ChatErrorsTotal.WithLabelValues(model, "api_error").Inc()
		return domain.ChatResponse{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.ChatRequestsTotal.WithLabelValues(model, "error").Inc()
		metrics.ChatErrorsTotal.WithLabelValues(model, "empty_response").Inc()
		return domain.ChatResponse{}, fmt.Errorf("empty chat response: %w", domain.ErrProviderError)
	}

	metrics.ChatRequestsTotal.WithLabelValues(model, "success").Inc()
	metrics.ChatRequestDuration.WithLabelValues(model).Observe(duration.Seconds())

	choice := resp.Choices[0]
	return domain.ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		ToolCalls:    toolCallsFromAPI(choice.Message.ToolCalls),
		Model:        resp.Model,
		Usage: domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (c *Client) resolveModel(req domain.ChatRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.model
}

func (c *Client) buildRequest(req domain.ChatRequest, model string) openai.ChatCompletionRequest {
	apiReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messagesToAPI(req.Messages),
		Tools:    toolSpecsToAPI(req.Tools),
		User:     c.user,
	}
	if req.Temperature != nil {
		apiReq.Temperature = *req.Temperature
	}
	if req.MaxTokens > 0 {
		apiReq.MaxTokens = req.MaxTokens
	}
	return apiReq
}

// parseAPIError maps API failures onto domain sentinels: 401/403 means bad
// credentials, 429 means rate limit, everything else is a provider error.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		wrap := sentinelForStatus(reqErr.HTTPStatusCode)
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("chat API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		wrap := sentinelForStatus(apiErr.HTTPStatusCode)
		return fmt.Errorf("chat API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("chat request failed: %w", domain.ErrProviderError)
}

func sentinelForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrProviderAuth
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return domain.ErrProviderError
	}
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
