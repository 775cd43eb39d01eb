package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/tokentab-io/tokentab/internal/domain"
	"github.com/tokentab-io/tokentab/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterChatMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockProvider struct {
	completeFn func(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error)
	streamFn   func(ctx context.Context, req domain.ChatRequest, onDelta func(domain.StreamDelta) error) (domain.ChatResponse, error)
	reqs       []domain.ChatRequest
}

func (m *mockProvider) Complete(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	m.reqs = append(m.reqs, req)
	return m.completeFn(ctx, req)
}

func (m *mockProvider) Stream(
	ctx context.Context, req domain.ChatRequest, onDelta func(domain.StreamDelta) error,
) (domain.ChatResponse, error) {
	m.reqs = append(m.reqs, req)
	return m.streamFn(ctx, req, onDelta)
}

func respondWith(content string, usage domain.TokenUsage) func(context.Context, domain.ChatRequest) (domain.ChatResponse, error) {
	return func(_ context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
		return domain.ChatResponse{
			Content:      content,
			FinishReason: "stop",
			Model:        req.Model,
			Usage:        usage,
		}, nil
	}
}

// --- Complete ---

func TestInstrumentedProvider_Complete_Success(t *testing.T) {
	inner := &mockProvider{completeFn: respondWith("hi", domain.TokenUsage{
		PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15,
	})}
	p := NewInstrumentedProvider(inner, nil, zap.NewNop())

	resp, err := p.Complete(context.Background(), domain.ChatRequest{
		Messages: domain.UserMessage("hello"), Model: "test-model",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hi" {
		t.Errorf("Content = %q, want %q", resp.Content, "hi")
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d, want 15", resp.Usage.TotalTokens)
	}
}

func TestInstrumentedProvider_Complete_InnerError(t *testing.T) {
	inner := &mockProvider{completeFn: func(context.Context, domain.ChatRequest) (domain.ChatResponse, error) {
		return domain.ChatResponse{}, fmt.Errorf("api error")
	}}
	p := NewInstrumentedProvider(inner, nil, zap.NewNop())

	_, err := p.Complete(context.Background(), domain.ChatRequest{Messages: domain.UserMessage("hello")})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestInstrumentedProvider_Complete_BudgetRejection(t *testing.T) {
	budget := NewBudgetTracker("test:", 100, 0, BudgetActionReject, zap.NewNop())
	budget.Record(100)

	inner := &mockProvider{completeFn: respondWith("hi", domain.TokenUsage{TotalTokens: 1})}
	p := NewInstrumentedProvider(inner, budget, zap.NewNop())

	_, err := p.Complete(context.Background(), domain.ChatRequest{Messages: domain.UserMessage("hello")})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if len(inner.reqs) != 0 {
		t.Errorf("inner provider called %d times, want 0", len(inner.reqs))
	}
}

func TestInstrumentedProvider_Complete_RecordsBudget(t *testing.T) {
	budget := NewBudgetTracker("test:", 1_000_000, 10_000_000, BudgetActionReject, zap.NewNop())

	inner := &mockProvider{completeFn: respondWith("hi", domain.TokenUsage{
		PromptTokens: 300, CompletionTokens: 200, TotalTokens: 500,
	})}
	p := NewInstrumentedProvider(inner, budget, zap.NewNop())

	initialDaily := budget.RemainingDaily()
	initialMonthly := budget.RemainingMonthly()

	if _, err := p.Complete(context.Background(), domain.ChatRequest{
		Messages: domain.UserMessage("hello"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := initialDaily - budget.RemainingDaily(); got != 500 {
		t.Errorf("daily budget decrease = %d, want 500", got)
	}
	if got := initialMonthly - budget.RemainingMonthly(); got != 500 {
		t.Errorf("monthly budget decrease = %d, want 500", got)
	}
}

// --- Stream ---

func TestInstrumentedProvider_Stream_Success(t *testing.T) {
	inner := &mockProvider{streamFn: func(
		_ context.Context, req domain.ChatRequest, onDelta func(domain.StreamDelta) error,
	) (domain.ChatResponse, error) {
		for _, chunk := range []string{"he", "llo"} {
			if err := onDelta(domain.StreamDelta{Content: chunk}); err != nil {
				return domain.ChatResponse{}, err
			}
		}
		return domain.ChatResponse{
			Content: "hello", FinishReason: "stop", Model: req.Model,
			Usage: domain.TokenUsage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6},
		}, nil
	}}
	p := NewInstrumentedProvider(inner, nil, zap.NewNop())

	var deltas []string
	resp, err := p.Stream(context.Background(), domain.ChatRequest{
		Messages: domain.UserMessage("hi"), Model: "test-model",
	}, func(d domain.StreamDelta) error {
		deltas = append(deltas, d.Content)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deltas) != 2 {
		t.Errorf("got %d deltas, want 2", len(deltas))
	}
	if resp.Usage.TotalTokens != 6 {
		t.Errorf("TotalTokens = %d, want 6", resp.Usage.TotalTokens)
	}
}

func TestInstrumentedProvider_Stream_BudgetRejection(t *testing.T) {
	budget := NewBudgetTracker("test:", 100, 0, BudgetActionReject, zap.NewNop())
	budget.Record(100)

	inner := &mockProvider{}
	p := NewInstrumentedProvider(inner, budget, zap.NewNop())

	_, err := p.Stream(context.Background(), domain.ChatRequest{
		Messages: domain.UserMessage("hi"),
	}, func(domain.StreamDelta) error { return nil })
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestInstrumentedProvider_Stream_RecordsBudget(t *testing.T) {
	budget := NewBudgetTracker("test:", 1_000_000, 0, BudgetActionReject, zap.NewNop())

	inner := &mockProvider{streamFn: func(
		_ context.Context, _ domain.ChatRequest, _ func(domain.StreamDelta) error,
	) (domain.ChatResponse, error) {
		return domain.ChatResponse{Usage: domain.TokenUsage{TotalTokens: 42}}, nil
	}}
	p := NewInstrumentedProvider(inner, budget, zap.NewNop())

	if _, err := p.Stream(context.Background(), domain.ChatRequest{
		Messages: domain.UserMessage("hi"),
	}, func(domain.StreamDelta) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := budget.DailyUsed(); got != 42 {
		t.Errorf("DailyUsed() = %d, want 42", got)
	}
}
