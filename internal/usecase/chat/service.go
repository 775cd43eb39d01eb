// Package chat orchestrates chat exchanges: provider calls, the tool loop,
// and per-round booking into the session ledger.
package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/tokentab-io/tokentab/internal/domain"
	"github.com/tokentab-io/tokentab/internal/domain/ledger"
	"github.com/tokentab-io/tokentab/internal/metrics"
)

// DefaultMaxToolRounds bounds tool execution rounds per exchange.
const DefaultMaxToolRounds = 4

// Params carries one chat exchange.
type Params struct {
	Messages    []domain.Message
	Model       string // empty = session model
	Temperature *float32
	MaxTokens   int
	UseTools    bool // expose registered tools and run the tool loop
}

// ToolResult is one executed tool call with its output.
type ToolResult struct {
	CallID    string
	Name      string
	Arguments string
	Output    string
	Err       string // non-empty when execution failed
}

// Result is the outcome of one exchange, including any tool rounds.
type Result struct {
	Response    domain.ChatResponse // final assistant reply
	Records     []ledger.CallRecord // one per provider round, in order
	ToolResults []ToolResult

	// Usage and Cost cover this exchange across all rounds.
	Usage domain.TokenUsage
	Cost  float64

	// SessionTokens and SessionCost are the session cumulative totals after
	// this exchange. ThresholdWarning is set when any round left the session
	// over its warn threshold.
	SessionTokens    int
	SessionCost      float64
	ThresholdWarning bool
}

// Service runs chat exchanges against a provider and books every round.
type Service struct {
	provider      Provider
	sessions      Accountant
	tools         ToolExecutor
	maxToolRounds int
	logger        *zap.Logger
}

// New creates a chat service. tools may be nil (tool requests are then
// returned to the caller unexecuted). maxToolRounds <= 0 selects the default.
func New(
	provider Provider, sessions Accountant, tools ToolExecutor,
	maxToolRounds int, logger *zap.Logger,
) *Service {
	if maxToolRounds <= 0 {
		maxToolRounds = DefaultMaxToolRounds
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider:      provider,
		sessions:      sessions,
		tools:         tools,
		maxToolRounds: maxToolRounds,
		logger:        logger,
	}
}

// Complete runs one blocking exchange. Every provider round (the initial
// call and each tool follow-up) is booked into the session ledger as its
// own call record.
func (s *Service) Complete(ctx context.Context, sessionID string, p Params) (Result, error) {
	req, query, err := s.prepare(ctx, sessionID, p)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for round := 0; ; round++ {
		resp, err := s.provider.Complete(ctx, req)
		if err != nil {
			return Result{}, fmt.Errorf("chat complete: %w", err)
		}

		if err := s.book(ctx, sessionID, query, req.Model, resp, &res); err != nil {
			return Result{}, err
		}

		if !s.toolRoundWanted(p, resp) {
			res.Response = resp
			return res, nil
		}
		if round >= s.maxToolRounds {
			s.logger.Warn("Tool round limit reached",
				zap.String("session_id", sessionID),
				zap.Int("max_tool_rounds", s.maxToolRounds),
			)
			res.Response = resp
			return res, nil
		}

		results := s.runTools(ctx, resp.ToolCalls)
		res.ToolResults = append(res.ToolResults, results...)
		req.Messages = appendToolRound(req.Messages, resp, results)
	}
}

// Stream runs one streaming exchange. Content deltas surface through
// onDelta; tool rounds stream too, though tool-call rounds usually carry no
// content. Usage arrives with each round's final chunk and is booked the
// same way as in Complete.
func (s *Service) Stream(
	ctx context.Context, sessionID string, p Params,
	onDelta func(domain.StreamDelta) error,
) (Result, error) {
	req, query, err := s.prepare(ctx, sessionID, p)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for round := 0; ; round++ {
		resp, err := s.provider.Stream(ctx, req, onDelta)
		if err != nil {
			return Result{}, fmt.Errorf("chat stream: %w", err)
		}

		if err := s.book(ctx, sessionID, query, req.Model, resp, &res); err != nil {
			return Result{}, err
		}

		if !s.toolRoundWanted(p, resp) {
			res.Response = resp
			return res, nil
		}
		if round >= s.maxToolRounds {
			s.logger.Warn("Tool round limit reached",
				zap.String("session_id", sessionID),
				zap.Int("max_tool_rounds", s.maxToolRounds),
			)
			res.Response = resp
			return res, nil
		}

		results := s.runTools(ctx, resp.ToolCalls)
		res.ToolResults = append(res.ToolResults, results...)
		req.Messages = appendToolRound(req.Messages, resp, results)
	}
}

// prepare validates the exchange, resolves the model from the session, and
// builds the provider request. The message slice is copied so tool rounds
// never mutate the caller's history.
func (s *Service) prepare(
	ctx context.Context, sessionID string, p Params,
) (domain.ChatRequest, string, error) {
	if len(p.Messages) == 0 {
		return domain.ChatRequest{}, "", domain.ErrEmptyRequest
	}

	sess, err := s.sessions.Describe(ctx, sessionID)
	if err != nil {
		return domain.ChatRequest{}, "", fmt.Errorf("describe session: %w", err)
	}
	if sess.Ended() {
		return domain.ChatRequest{}, "", domain.ErrSessionEnded
	}

	model := p.Model
	if model == "" {
		model = sess.Model()
	}

	messages := make([]domain.Message, len(p.Messages))
	copy(messages, p.Messages)

	req := domain.ChatRequest{
		Messages:    messages,
		Model:       model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
	if p.UseTools && s.tools != nil {
		req.Tools = s.tools.Specs()
	}

	return req, domain.LastUserContent(p.Messages), nil
}

// book records one provider round in the session ledger and updates
// exchange totals and metrics.
func (s *Service) book(
	ctx context.Context, sessionID, query, reqModel string,
	resp domain.ChatResponse, res *Result,
) error {
	out, err := s.sessions.RecordCall(ctx, sessionID, query, resp.Usage)
	if err != nil {
		return fmt.Errorf("record call: %w", err)
	}

	res.Records = append(res.Records, out.Record)
	res.Usage = res.Usage.Add(out.Record.Usage())
	res.Cost += out.Record.Cost()
	res.SessionTokens = out.TotalTokens
	res.SessionCost = out.TotalCost

	model := resp.Model
	if model == "" {
		model = reqModel
	}
	metrics.TokensTotal.WithLabelValues(model, "prompt").Add(float64(out.Record.Usage().PromptTokens))
	metrics.TokensTotal.WithLabelValues(model, "completion").Add(float64(out.Record.Usage().CompletionTokens))
	metrics.CostUSDTotal.WithLabelValues(model).Add(out.Record.Cost())

	if out.OverThreshold {
		res.ThresholdWarning = true
		metrics.ThresholdExceededTotal.WithLabelValues(model).Inc()
		s.logger.Warn("Session over token threshold",
			zap.String("session_id", sessionID),
			zap.Int("call", out.Record.Number()),
			zap.Int("session_tokens", out.TotalTokens),
		)
	}

	domain.UsageFromContext(ctx).Observe(out.Record.Usage().TotalTokens, out.Record.Cost())
	return nil
}

// toolRoundWanted reports whether the response requests tools we can run.
func (s *Service) toolRoundWanted(p Params, resp domain.ChatResponse) bool {
	return p.UseTools && s.tools != nil && len(resp.ToolCalls) > 0
}

// runTools executes every requested call in order. Execution failures are
// not fatal: the error text is fed back to the model as the tool output.
func (s *Service) runTools(ctx context.Context, calls []domain.ToolCall) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		out, err := s.tools.Execute(ctx, call.Name, json.RawMessage(call.Arguments))
		tr := ToolResult{
			CallID:    call.ID,
			Name:      call.Name,
			Arguments: call.Arguments,
			Output:    out,
		}
		if err != nil {
			tr.Err = err.Error()
			metrics.ToolCallsTotal.WithLabelValues(call.Name, "error").Inc()
			s.logger.Warn("Tool call failed",
				zap.String("tool", call.Name),
				zap.Error(err),
			)
		} else {
			metrics.ToolCallsTotal.WithLabelValues(call.Name, "success").Inc()
			s.logger.Debug("Tool call completed",
				zap.String("tool", call.Name),
			)
		}
		results = append(results, tr)
	}
	return results
}

// appendToolRound extends the conversation with the assistant's tool-call
// message and one tool message per executed call.
func appendToolRound(
	messages []domain.Message, resp domain.ChatResponse, results []ToolResult,
) []domain.Message {
	messages = append(messages, domain.Message{
		Role:      domain.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})
	for _, r := range results {
		content := r.Output
		if r.Err != "" {
			content = "error: " + r.Err
		}
		messages = append(messages, domain.Message{
			Role:       domain.RoleTool,
			Content:    content,
			Name:       r.Name,
			ToolCallID: r.CallID,
		})
	}
	return messages
}
