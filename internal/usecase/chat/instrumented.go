package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tokentab-io/tokentab/internal/domain"
	"github.com/tokentab-io/tokentab/internal/metrics"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedProvider wraps a Provider with budget enforcement and logging.
// Transport metrics (requests, duration, first token) are recorded in
// transport/openai. This layer owns budget tracking and budget gauges only.
type InstrumentedProvider struct {
	inner  Provider
	budget BudgetChecker
	logger *zap.Logger
}

// NewInstrumentedProvider wraps a provider with budget and observability.
func NewInstrumentedProvider(inner Provider, budget BudgetChecker, logger *zap.Logger) *InstrumentedProvider {
	return &InstrumentedProvider{inner: inner, budget: budget, logger: logger}
}

// Complete checks budget, delegates to the inner provider, and records usage.
func (p *InstrumentedProvider) Complete(
	ctx context.Context, req domain.ChatRequest,
) (domain.ChatResponse, error) {
	if err := p.checkBudget(ctx, req.Model); err != nil {
		return domain.ChatResponse{}, err
	}

	start := time.Now()

	resp, err := p.inner.Complete(ctx, req)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Chat request failed",
			zap.String("model", req.Model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.ChatResponse{}, err
	}

	p.recordBudget(resp.Usage)

	p.logger.Debug("Chat request completed",
		zap.String("model", resp.Model),
		zap.Duration("duration", duration),
		zap.String("finish_reason", resp.FinishReason),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return resp, nil
}

// Stream checks budget, delegates to the inner provider, and records the
// usage reported with the final chunk.
func (p *InstrumentedProvider) Stream(
	ctx context.Context, req domain.ChatRequest, onDelta func(domain.StreamDelta) error,
) (domain.ChatResponse, error) {
	if err := p.checkBudget(ctx, req.Model); err != nil {
		return domain.ChatResponse{}, err
	}

	start := time.Now()

	resp, err := p.inner.Stream(ctx, req, onDelta)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Chat stream failed",
			zap.String("model", req.Model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.ChatResponse{}, err
	}

	p.recordBudget(resp.Usage)

	p.logger.Debug("Chat stream completed",
		zap.String("model", resp.Model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return resp, nil
}

func (p *InstrumentedProvider) checkBudget(ctx context.Context, model string) error {
	if p.budget == nil {
		return nil
	}
	if err := p.budget.Check(ctx); err != nil {
		p.logger.Error("Budget exceeded",
			zap.String("model", model),
			zap.Error(err),
		)
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

func (p *InstrumentedProvider) recordBudget(usage domain.TokenUsage) {
	if p.budget == nil || usage.TotalTokens <= 0 {
		return
	}
	p.budget.Record(int64(usage.TotalTokens))
	metrics.BudgetTokensRemaining.WithLabelValues("daily").Set(float64(p.budget.RemainingDaily()))
	metrics.BudgetTokensRemaining.WithLabelValues("monthly").Set(float64(p.budget.RemainingMonthly()))
}
