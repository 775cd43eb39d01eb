package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/tokentab-io/tokentab/internal/domain"
	"github.com/tokentab-io/tokentab/internal/domain/ledger"
	domsession "github.com/tokentab-io/tokentab/internal/domain/session"
	"github.com/tokentab-io/tokentab/internal/usecase/session"
)

// --- Mocks ---

type mockAccountant struct {
	sess        domsession.Session
	describeErr error
	recordErr   error
	led         *ledger.Ledger
	queries     []string
}

func newMockAccountant(warnThreshold int) *mockAccountant {
	pricing := domain.DefaultPricing()
	return &mockAccountant{
		sess: domsession.Reconstruct(
			"01J9ZK3V7R8Q4M2N6P0S1T5XWY", "test", "gpt-4o-mini",
			pricing, warnThreshold, 1700000000000, 0,
		),
		led: ledger.New(pricing, warnThreshold),
	}
}

func (m *mockAccountant) Describe(_ context.Context, _ string) (domsession.Session, error) {
	if m.describeErr != nil {
		return domsession.Session{}, m.describeErr
	}
	return m.sess, nil
}

func (m *mockAccountant) RecordCall(
	_ context.Context, _, query string, usage domain.TokenUsage,
) (session.Outcome, error) {
	if m.recordErr != nil {
		return session.Outcome{}, m.recordErr
	}
	m.queries = append(m.queries, query)
	rec, err := m.led.Record(query, usage)
	if err != nil {
		return session.Outcome{}, err
	}
	return session.Outcome{
		Record:        rec,
		TotalTokens:   m.led.TotalTokens(),
		TotalCost:     m.led.TotalCost(),
		OverThreshold: m.led.OverThreshold(),
	}, nil
}

type mockTools struct {
	specs     []domain.ToolSpec
	executeFn func(ctx context.Context, name string, args json.RawMessage) (string, error)
	executed  []string
}

func (m *mockTools) Specs() []domain.ToolSpec { return m.specs }

func (m *mockTools) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	m.executed = append(m.executed, name)
	return m.executeFn(ctx, name, args)
}

func newTestService(provider *mockProvider, acc *mockAccountant, tools *mockTools) *Service {
	var te ToolExecutor
	if tools != nil {
		te = tools
	}
	return New(provider, acc, te, 0, zap.NewNop())
}

// --- Complete ---

func TestComplete_SingleRound(t *testing.T) {
	provider := &mockProvider{completeFn: respondWith("hi there", domain.TokenUsage{
		PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150,
	})}
	acc := newMockAccountant(10000)
	svc := newTestService(provider, acc, nil)

	res, err := svc.Complete(context.Background(), "s1", Params{
		Messages: domain.UserMessage("hello"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Response.Content != "hi there" {
		t.Errorf("Content = %q, want %q", res.Response.Content, "hi there")
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	if res.Records[0].Number() != 1 {
		t.Errorf("record number = %d, want 1", res.Records[0].Number())
	}
	if res.Usage.TotalTokens != 150 {
		t.Errorf("Usage.TotalTokens = %d, want 150", res.Usage.TotalTokens)
	}
	if res.SessionTokens != 150 {
		t.Errorf("SessionTokens = %d, want 150", res.SessionTokens)
	}
	if res.ThresholdWarning {
		t.Error("unexpected threshold warning")
	}
	if len(acc.queries) != 1 || acc.queries[0] != "hello" {
		t.Errorf("recorded queries = %v, want [hello]", acc.queries)
	}
}

func TestComplete_ModelFromSession(t *testing.T) {
	provider := &mockProvider{completeFn: respondWith("ok", domain.TokenUsage{TotalTokens: 1})}
	acc := newMockAccountant(10000)
	svc := newTestService(provider, acc, nil)

	if _, err := svc.Complete(context.Background(), "s1", Params{
		Messages: domain.UserMessage("hello"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := provider.reqs[0].Model; got != "gpt-4o-mini" {
		t.Errorf("request model = %q, want session model", got)
	}
}

func TestComplete_ExplicitModelWins(t *testing.T) {
	provider := &mockProvider{completeFn: respondWith("ok", domain.TokenUsage{TotalTokens: 1})}
	acc := newMockAccountant(10000)
	svc := newTestService(provider, acc, nil)

	if _, err := svc.Complete(context.Background(), "s1", Params{
		Messages: domain.UserMessage("hello"),
		Model:    "gpt-4o",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := provider.reqs[0].Model; got != "gpt-4o" {
		t.Errorf("request model = %q, want gpt-4o", got)
	}
}

func TestComplete_EmptyRequest(t *testing.T) {
	svc := newTestService(&mockProvider{}, newMockAccountant(10000), nil)

	_, err := svc.Complete(context.Background(), "s1", Params{})
	if !errors.Is(err, domain.ErrEmptyRequest) {
		t.Fatalf("expected ErrEmptyRequest, got %v", err)
	}
}

func TestComplete_SessionNotFound(t *testing.T) {
	acc := newMockAccountant(10000)
	acc.describeErr = domain.ErrSessionNotFound
	svc := newTestService(&mockProvider{}, acc, nil)

	_, err := svc.Complete(context.Background(), "missing", Params{
		Messages: domain.UserMessage("hello"),
	})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestComplete_EndedSession(t *testing.T) {
	provider := &mockProvider{completeFn: respondWith("ok", domain.TokenUsage{TotalTokens: 1})}
	acc := newMockAccountant(10000)
	acc.sess = acc.sess.End(1700000001000)
	svc := newTestService(provider, acc, nil)

	_, err := svc.Complete(context.Background(), "s1", Params{
		Messages: domain.UserMessage("hello"),
	})
	if !errors.Is(err, domain.ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
	if len(provider.reqs) != 0 {
		t.Errorf("provider called %d times, want 0", len(provider.reqs))
	}
}

func TestComplete_ProviderError(t *testing.T) {
	provider := &mockProvider{completeFn: func(context.Context, domain.ChatRequest) (domain.ChatResponse, error) {
		return domain.ChatResponse{}, domain.ErrRateLimited
	}}
	svc := newTestService(provider, newMockAccountant(10000), nil)

	_, err := svc.Complete(context.Background(), "s1", Params{
		Messages: domain.UserMessage("hello"),
	})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestComplete_RecordCallError(t *testing.T) {
	provider := &mockProvider{completeFn: respondWith("ok", domain.TokenUsage{TotalTokens: 1})}
	acc := newMockAccountant(10000)
	acc.recordErr = fmt.Errorf("ledger closed")
	svc := newTestService(provider, acc, nil)

	_, err := svc.Complete(context.Background(), "s1", Params{
		Messages: domain.UserMessage("hello"),
	})
	if err == nil || !strings.Contains(err.Error(), "record call") {
		t.Fatalf("expected record call error, got %v", err)
	}
}

func TestComplete_ThresholdWarning(t *testing.T) {
	provider := &mockProvider{completeFn: respondWith("ok", domain.TokenUsage{
		PromptTokens: 80, CompletionTokens: 40, TotalTokens: 120,
	})}
	acc := newMockAccountant(100)
	svc := newTestService(provider, acc, nil)

	res, err := svc.Complete(context.Background(), "s1", Params{
		Messages: domain.UserMessage("hello"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.ThresholdWarning {
		t.Error("expected threshold warning")
	}
}

func TestComplete_ObservesRequestUsage(t *testing.T) {
	provider := &mockProvider{completeFn: respondWith("ok", domain.TokenUsage{
		PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15,
	})}
	svc := newTestService(provider, newMockAccountant(10000), nil)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	if _, err := svc.Complete(ctx, "s1", Params{
		Messages: domain.UserMessage("hello"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if usage.TotalTokens != 15 {
		t.Errorf("request usage tokens = %d, want 15", usage.TotalTokens)
	}
	if !usage.Used {
		t.Error("request usage not marked used")
	}
}

// --- Tool loop ---

func toolCallResponse(calls ...domain.ToolCall) func(context.Context, domain.ChatRequest) (domain.ChatResponse, error) {
	return func(_ context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
		return domain.ChatResponse{
			FinishReason: "tool_calls",
			ToolCalls:    calls,
			Model:        req.Model,
			Usage:        domain.TokenUsage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30},
		}, nil
	}
}

func calculatorSpecs() []domain.ToolSpec {
	return []domain.ToolSpec{{
		Name:        "calculator",
		Description: "Evaluates arithmetic expressions",
		Parameters:  map[string]any{"type": "object"},
	}}
}

func TestComplete_ToolLoop(t *testing.T) {
	round := 0
	provider := &mockProvider{completeFn: func(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
		round++
		if round == 1 {
			return toolCallResponse(domain.ToolCall{
				ID: "call_1", Name: "calculator", Arguments: `{"expression":"2+2"}`,
			})(ctx, req)
		}
		return respondWith("2+2 is 4", domain.TokenUsage{
			PromptTokens: 40, CompletionTokens: 8, TotalTokens: 48,
		})(ctx, req)
	}}
	acc := newMockAccountant(10000)
	tools := &mockTools{
		specs: calculatorSpecs(),
		executeFn: func(_ context.Context, _ string, args json.RawMessage) (string, error) {
			var in struct {
				Expression string `json:"expression"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}
			if in.Expression != "2+2" {
				return "", fmt.Errorf("unexpected expression %q", in.Expression)
			}
			return "4", nil
		},
	}
	svc := newTestService(provider, acc, tools)

	res, err := svc.Complete(context.Background(), "s1", Params{
		Messages: domain.UserMessage("what is 2+2?"),
		UseTools: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Response.Content != "2+2 is 4" {
		t.Errorf("Content = %q", res.Response.Content)
	}
	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2 (one per provider round)", len(res.Records))
	}
	if res.Usage.TotalTokens != 78 {
		t.Errorf("Usage.TotalTokens = %d, want 78", res.Usage.TotalTokens)
	}
	if len(res.ToolResults) != 1 {
		t.Fatalf("got %d tool results, want 1", len(res.ToolResults))
	}
	if res.ToolResults[0].Output != "4" {
		t.Errorf("tool output = %q, want 4", res.ToolResults[0].Output)
	}
	if len(tools.executed) != 1 || tools.executed[0] != "calculator" {
		t.Errorf("executed tools = %v", tools.executed)
	}

	// First request carries the tool specs.
	if len(provider.reqs[0].Tools) != 1 || provider.reqs[0].Tools[0].Name != "calculator" {
		t.Errorf("first request tools = %+v", provider.reqs[0].Tools)
	}

	// Second request carries the assistant tool-call turn plus the tool reply.
	second := provider.reqs[1].Messages
	if len(second) != 3 {
		t.Fatalf("second request has %d messages, want 3", len(second))
	}
	if second[1].Role != domain.RoleAssistant || len(second[1].ToolCalls) != 1 {
		t.Errorf("second message = %+v, want assistant tool-call turn", second[1])
	}
	if second[2].Role != domain.RoleTool || second[2].Content != "4" || second[2].ToolCallID != "call_1" {
		t.Errorf("tool message = %+v", second[2])
	}
}

func TestComplete_ToolFailureFedBack(t *testing.T) {
	round := 0
	provider := &mockProvider{completeFn: func(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
		round++
		if round == 1 {
			return toolCallResponse(domain.ToolCall{
				ID: "call_1", Name: "calculator", Arguments: `{"expression":"1/0"}`,
			})(ctx, req)
		}
		return respondWith("that division is undefined", domain.TokenUsage{TotalTokens: 10})(ctx, req)
	}}
	tools := &mockTools{
		specs: calculatorSpecs(),
		executeFn: func(context.Context, string, json.RawMessage) (string, error) {
			return "", fmt.Errorf("division by zero")
		},
	}
	svc := newTestService(provider, newMockAccountant(10000), tools)

	res, err := svc.Complete(context.Background(), "s1", Params{
		Messages: domain.UserMessage("what is 1/0?"),
		UseTools: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.ToolResults[0].Err == "" {
		t.Error("expected tool result error to be set")
	}
	toolMsg := provider.reqs[1].Messages[2]
	if !strings.HasPrefix(toolMsg.Content, "error: ") {
		t.Errorf("tool message content = %q, want error text fed back", toolMsg.Content)
	}
}

func TestComplete_ToolRoundLimit(t *testing.T) {
	provider := &mockProvider{completeFn: toolCallResponse(domain.ToolCall{
		ID: "call_1", Name: "calculator", Arguments: `{}`,
	})}
	tools := &mockTools{
		specs: calculatorSpecs(),
		executeFn: func(context.Context, string, json.RawMessage) (string, error) {
			return "4", nil
		},
	}
	acc := newMockAccountant(100000)
	svc := New(provider, acc, tools, 2, zap.NewNop())

	res, err := svc.Complete(context.Background(), "s1", Params{
		Messages: domain.UserMessage("loop forever"),
		UseTools: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Rounds 0 and 1 execute tools; the third response stops the loop.
	if len(provider.reqs) != 3 {
		t.Errorf("provider called %d times, want 3", len(provider.reqs))
	}
	if len(res.ToolResults) != 2 {
		t.Errorf("got %d tool results, want 2", len(res.ToolResults))
	}
	if len(res.Response.ToolCalls) != 1 {
		t.Error("expected final response to surface the unexecuted tool calls")
	}
	if len(res.Records) != 3 {
		t.Errorf("got %d records, want 3", len(res.Records))
	}
}

func TestComplete_ToolsDisabledPassesCallsThrough(t *testing.T) {
	provider := &mockProvider{completeFn: toolCallResponse(domain.ToolCall{
		ID: "call_1", Name: "calculator", Arguments: `{}`,
	})}
	tools := &mockTools{specs: calculatorSpecs()}
	svc := newTestService(provider, newMockAccountant(10000), tools)

	res, err := svc.Complete(context.Background(), "s1", Params{
		Messages: domain.UserMessage("hello"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(provider.reqs) != 1 {
		t.Errorf("provider called %d times, want 1", len(provider.reqs))
	}
	if len(provider.reqs[0].Tools) != 0 {
		t.Errorf("request tools = %+v, want none", provider.reqs[0].Tools)
	}
	if len(res.Response.ToolCalls) != 1 {
		t.Error("expected tool calls passed through unexecuted")
	}
	if len(tools.executed) != 0 {
		t.Errorf("executed tools = %v, want none", tools.executed)
	}
}

func TestComplete_DoesNotMutateCallerMessages(t *testing.T) {
	round := 0
	provider := &mockProvider{completeFn: func(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
		round++
		if round == 1 {
			return toolCallResponse(domain.ToolCall{
				ID: "call_1", Name: "calculator", Arguments: `{}`,
			})(ctx, req)
		}
		return respondWith("done", domain.TokenUsage{TotalTokens: 5})(ctx, req)
	}}
	tools := &mockTools{
		specs: calculatorSpecs(),
		executeFn: func(context.Context, string, json.RawMessage) (string, error) {
			return "4", nil
		},
	}
	svc := newTestService(provider, newMockAccountant(10000), tools)

	history := domain.UserMessage("hello")
	if _, err := svc.Complete(context.Background(), "s1", Params{
		Messages: history,
		UseTools: true,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(history) != 1 {
		t.Errorf("caller history grew to %d messages", len(history))
	}
}

// --- Stream ---

func TestStream_SingleRound(t *testing.T) {
	provider := &mockProvider{streamFn: func(
		_ context.Context, req domain.ChatRequest, onDelta func(domain.StreamDelta) error,
	) (domain.ChatResponse, error) {
		for _, chunk := range []string{"hi ", "there"} {
			if err := onDelta(domain.StreamDelta{Content: chunk}); err != nil {
				return domain.ChatResponse{}, err
			}
		}
		return domain.ChatResponse{
			Content: "hi there", FinishReason: "stop", Model: req.Model,
			Usage: domain.TokenUsage{PromptTokens: 6, CompletionTokens: 3, TotalTokens: 9},
		}, nil
	}}
	acc := newMockAccountant(10000)
	svc := newTestService(provider, acc, nil)

	var streamed strings.Builder
	res, err := svc.Stream(context.Background(), "s1", Params{
		Messages: domain.UserMessage("hello"),
	}, func(d domain.StreamDelta) error {
		streamed.WriteString(d.Content)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if streamed.String() != "hi there" {
		t.Errorf("streamed = %q, want %q", streamed.String(), "hi there")
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	if res.SessionTokens != 9 {
		t.Errorf("SessionTokens = %d, want 9", res.SessionTokens)
	}
}

func TestStream_ToolLoop(t *testing.T) {
	round := 0
	provider := &mockProvider{streamFn: func(
		_ context.Context, req domain.ChatRequest, onDelta func(domain.StreamDelta) error,
	) (domain.ChatResponse, error) {
		round++
		if round == 1 {
			return domain.ChatResponse{
				FinishReason: "tool_calls",
				ToolCalls:    []domain.ToolCall{{ID: "call_1", Name: "calculator", Arguments: `{}`}},
				Model:        req.Model,
				Usage:        domain.TokenUsage{TotalTokens: 12},
			}, nil
		}
		if err := onDelta(domain.StreamDelta{Content: "4"}); err != nil {
			return domain.ChatResponse{}, err
		}
		return domain.ChatResponse{
			Content: "4", FinishReason: "stop", Model: req.Model,
			Usage: domain.TokenUsage{TotalTokens: 8},
		}, nil
	}}
	tools := &mockTools{
		specs: calculatorSpecs(),
		executeFn: func(context.Context, string, json.RawMessage) (string, error) {
			return "4", nil
		},
	}
	svc := newTestService(provider, newMockAccountant(10000), tools)

	var streamed strings.Builder
	res, err := svc.Stream(context.Background(), "s1", Params{
		Messages: domain.UserMessage("what is 2+2?"),
		UseTools: true,
	}, func(d domain.StreamDelta) error {
		streamed.WriteString(d.Content)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if streamed.String() != "4" {
		t.Errorf("streamed = %q, want %q", streamed.String(), "4")
	}
	if len(res.Records) != 2 {
		t.Errorf("got %d records, want 2", len(res.Records))
	}
	if res.SessionTokens != 20 {
		t.Errorf("SessionTokens = %d, want 20", res.SessionTokens)
	}
}

func TestStream_EmptyRequest(t *testing.T) {
	svc := newTestService(&mockProvider{}, newMockAccountant(10000), nil)

	_, err := svc.Stream(context.Background(), "s1", Params{}, func(domain.StreamDelta) error { return nil })
	if !errors.Is(err, domain.ErrEmptyRequest) {
		t.Fatalf("expected ErrEmptyRequest, got %v", err)
	}
}
