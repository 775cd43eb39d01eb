package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tokentab-io/tokentab/internal/domain"
	"github.com/tokentab-io/tokentab/internal/metrics"
)

// Stream implements domain.Streamer. Deltas are forwarded as they arrive;
// the assembled response with usage is returned after the final chunk
// (IncludeUsage makes the API send usage in the terminating chunk).
func (c *Client) Stream(ctx context.Context, req domain.ChatRequest, onDelta func(domain.StreamDelta) error) (domain.ChatResponse, error) {
	model := c.resolveModel(req)
	apiReq := c.buildRequest(req, model)
	apiReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	start := time.Now()

	stream, err := c.client.CreateChatCompletionStream(ctx, apiReq)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues(model, "error").Inc()
		metrics.ChatErrorsTotal.WithLabelValues(model, "api_error").Inc()
		return domain.ChatResponse{}, parseAPIError(err)
	}
	defer stream.Close()

	var (
		content      strings.Builder
		usage        domain.TokenUsage
		finishReason string
		respModel    string
		firstToken   bool
		toolCalls    []domain.ToolCall
	)

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			metrics.ChatRequestsTotal.WithLabelValues(model, "error").Inc()
			metrics.ChatErrorsTotal.WithLabelValues(model, "stream_error").Inc()
			return domain.ChatResponse{}, parseAPIError(recvErr)
		}

		if chunk.Model != "" {
			respModel = chunk.Model
		}
		if chunk.Usage != nil {
			usage = domain.TokenUsage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			finishReason = string(choice.FinishReason)
		}
		accumulateToolCalls(&toolCalls, choice.Delta.ToolCalls)

		if choice.Delta.Content == "" {
			continue
		}
		if !firstToken {
			firstToken = true
			metrics.ChatFirstTokenDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
		}
		content.WriteString(choice.Delta.Content)

		if err := onDelta(domain.StreamDelta{Content: choice.Delta.Content}); err != nil {
			return domain.ChatResponse{}, fmt.Errorf("deliver delta: %w", err)
		}
	}

	metrics.ChatRequestsTotal.WithLabelValues(model, "success").Inc()
	metrics.ChatRequestDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())

	if respModel == "" {
		respModel = model
	}
	return domain.ChatResponse{
		Content:      content.String(),
		FinishReason: finishReason,
		ToolCalls:    toolCalls,
		Model:        respModel,
		Usage:        usage,
	}, nil
}

// accumulateToolCalls merges incremental tool call fragments by index.
// The API streams the id and name first, then argument text in pieces.
func accumulateToolCalls(calls *[]domain.ToolCall, deltas []openai.ToolCall) {
	for _, d := range deltas {
		idx := len(*calls) - 1
		if d.Index != nil {
			idx = *d.Index
		}
		if idx < 0 {
			continue
		}
		for len(*calls) <= idx {
			*calls = append(*calls, domain.ToolCall{})
		}

		tc := &(*calls)[idx]
		if d.ID != "" {
			tc.ID = d.ID
		}
		if d.Function.Name != "" {
			tc.Name = d.Function.Name
		}
		tc.Arguments += d.Function.Arguments
	}
}
