package httpapi

import (
	"time"

	"github.com/tokentab-io/tokentab/internal/domain"
	"github.com/tokentab-io/tokentab/internal/domain/ledger"
	domsession "github.com/tokentab-io/tokentab/internal/domain/session"
	chatuc "github.com/tokentab-io/tokentab/internal/usecase/chat"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeBadRequest       = "bad_request"
	CodeUnauthorized     = "unauthorized"
	CodeValidationFailed = "validation_failed"
	CodeSessionNotFound  = "session_not_found"
	CodeSessionEnded     = "session_ended"
	CodeToolNotFound     = "tool_not_found"
	CodeToolFailed       = "tool_failed"
	CodeRateLimited      = "rate_limited"
	CodeQuotaExceeded    = "quota_exceeded"
	CodeProviderAuth     = "provider_auth_failed"
	CodeProviderError    = "provider_error"
	CodeNotImplemented   = "not_implemented"
	CodeInternalError    = "internal_error"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PricingBody holds USD rates per million tokens.
type PricingBody struct {
	InputPerMillion  float64 `json:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million"`
}

// CreateSessionRequest creates a tracking session. All fields optional:
// model falls back to the configured default, pricing to the model's rates,
// warn_threshold_tokens to the configured default.
type CreateSessionRequest struct {
	Label               string       `json:"label,omitempty"`
	Model               string       `json:"model,omitempty"`
	Pricing             *PricingBody `json:"pricing,omitempty"`
	WarnThresholdTokens *int         `json:"warn_threshold_tokens,omitempty"`
}

// SessionResponse is a session snapshot.
type SessionResponse struct {
	ID                  string      `json:"id"`
	Label               string      `json:"label,omitempty"`
	Model               string      `json:"model"`
	Pricing             PricingBody `json:"pricing"`
	WarnThresholdTokens int         `json:"warn_threshold_tokens"`
	CreatedAt           time.Time   `json:"created_at"`
	EndedAt             *time.Time  `json:"ended_at,omitempty"`
}

// SessionListResponse lists sessions oldest first.
type SessionListResponse struct {
	Items []SessionResponse `json:"items"`
	Total int               `json:"total"`
}

// MessageBody is one conversation turn.
type MessageBody struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCallBody `json:"tool_calls,omitempty"`
}

// ToolCallBody is a provider-requested tool invocation.
type ToolCallBody struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatRequest runs one exchange on a session.
type ChatRequest struct {
	Messages    []MessageBody `json:"messages"`
	Model       string        `json:"model,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	UseTools    bool          `json:"use_tools,omitempty"`
}

// UsageBody is a token usage triple.
type UsageBody struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CallRecordBody is one ledger entry.
type CallRecordBody struct {
	Call         int     `json:"call"`
	Query        string  `json:"query"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`
}

// ToolResultBody is one executed tool call.
type ToolResultBody struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ChatResponse is the blocking exchange result. Records carries one ledger
// entry per provider round; session_* fields are cumulative totals after
// the exchange.
type ChatResponse struct {
	Content           string           `json:"content"`
	FinishReason      string           `json:"finish_reason"`
	Model             string           `json:"model"`
	ToolCalls         []ToolCallBody   `json:"tool_calls,omitempty"`
	ToolResults       []ToolResultBody `json:"tool_results,omitempty"`
	Usage             UsageBody        `json:"usage"`
	Cost              float64          `json:"cost"`
	Records           []CallRecordBody `json:"records"`
	SessionTokens     int              `json:"session_total_tokens"`
	SessionCost       float64          `json:"session_total_cost"`
	ThresholdWarning  bool             `json:"threshold_warning"`
	WarnThresholdUsed int              `json:"warn_threshold_tokens,omitempty"`
}

// ReportResponse is the per-session usage summary.
type ReportResponse struct {
	SessionID         string           `json:"session_id"`
	Label             string           `json:"label,omitempty"`
	Model             string           `json:"model"`
	Calls             int              `json:"calls"`
	PromptTokens      int              `json:"prompt_tokens"`
	CompletionTokens  int              `json:"completion_tokens"`
	TotalTokens       int              `json:"total_tokens"`
	TotalCost         float64          `json:"total_cost"`
	AvgTokensPerCall  float64          `json:"avg_tokens_per_call"`
	AvgCostPerCall    float64          `json:"avg_cost_per_call"`
	PromptPercent     float64          `json:"prompt_percent"`
	CompletionPercent float64          `json:"completion_percent"`
	Records           []CallRecordBody `json:"records"`
}

// UsageResponse is the service-wide usage report.
type UsageResponse struct {
	Period         string       `json:"period"`
	PeriodStartAt  *time.Time   `json:"period_start_at,omitempty"`
	PeriodEndAt    *time.Time   `json:"period_end_at,omitempty"`
	SessionsActive int          `json:"sessions_active"`
	Totals         TotalsBody   `json:"totals"`
	Budget         BudgetStatus `json:"budget"`
}

// TotalsBody is aggregate consumption across sessions.
type TotalsBody struct {
	Requests         int64   `json:"requests"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// BudgetStatus is the token budget snapshot. tokens_limit 0 means
// unlimited; tokens_remaining is -1 when unlimited.
type BudgetStatus struct {
	TokensLimit     int64      `json:"tokens_limit"`
	TokensRemaining int64      `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// ToolInfo describes one registered tool.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolListResponse lists registered tools in registration order.
type ToolListResponse struct {
	Items []ToolInfo `json:"items"`
	Total int        `json:"total"`
}

// InvokeToolRequest carries direct tool invocation arguments.
type InvokeToolRequest struct {
	Arguments map[string]any `json:"arguments"`
}

// InvokeToolResponse is a direct tool invocation result.
type InvokeToolResponse struct {
	Name   string `json:"name"`
	Output string `json:"output"`
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func sessionToBody(s domsession.Session) SessionResponse {
	resp := SessionResponse{
		ID:    s.ID(),
		Label: s.Label(),
		Model: s.Model(),
		Pricing: PricingBody{
			InputPerMillion:  s.Pricing().InputPerMillion,
			OutputPerMillion: s.Pricing().OutputPerMillion,
		},
		WarnThresholdTokens: s.WarnThreshold(),
		CreatedAt:           time.UnixMilli(s.CreatedAt()).UTC(),
	}
	if s.Ended() {
		endedAt := time.UnixMilli(s.EndedAt()).UTC()
		resp.EndedAt = &endedAt
	}
	return resp
}

func messagesFromBody(msgs []MessageBody) []domain.Message {
	out := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		out[i] = domain.Message{
			Role:       domain.Role(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
			ToolCalls:  toolCallsFromBody(m.ToolCalls),
		}
	}
	return out
}

func toolCallsFromBody(calls []ToolCallBody) []domain.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]domain.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = domain.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return out
}

func toolCallsToBody(calls []domain.ToolCall) []ToolCallBody {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCallBody, len(calls))
	for i, c := range calls {
		out[i] = ToolCallBody{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return out
}

func recordToBody(r ledger.CallRecord) CallRecordBody {
	u := r.Usage()
	return CallRecordBody{
		Call:         r.Number(),
		Query:        r.Query(),
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
		Cost:         r.Cost(),
	}
}

func recordsToBody(records []ledger.CallRecord) []CallRecordBody {
	out := make([]CallRecordBody, len(records))
	for i, r := range records {
		out[i] = recordToBody(r)
	}
	return out
}

func toolResultsToBody(results []chatuc.ToolResult) []ToolResultBody {
	if len(results) == 0 {
		return nil
	}
	out := make([]ToolResultBody, len(results))
	for i, r := range results {
		out[i] = ToolResultBody{
			CallID:    r.CallID,
			Name:      r.Name,
			Arguments: r.Arguments,
			Output:    r.Output,
			Error:     r.Err,
		}
	}
	return out
}

func chatResultToBody(res chatuc.Result) ChatResponse {
	return ChatResponse{
		Content:          res.Response.Content,
		FinishReason:     res.Response.FinishReason,
		Model:            res.Response.Model,
		ToolCalls:        toolCallsToBody(res.Response.ToolCalls),
		ToolResults:      toolResultsToBody(res.ToolResults),
		Usage:            usageToBody(res.Usage),
		Cost:             res.Cost,
		Records:          recordsToBody(res.Records),
		SessionTokens:    res.SessionTokens,
		SessionCost:      res.SessionCost,
		ThresholdWarning: res.ThresholdWarning,
	}
}

func usageToBody(u domain.TokenUsage) UsageBody {
	return UsageBody{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

func reportToBody(s domsession.Session, rep ledger.Report) ReportResponse {
	return ReportResponse{
		SessionID:         s.ID(),
		Label:             s.Label(),
		Model:             s.Model(),
		Calls:             rep.Calls,
		PromptTokens:      rep.PromptTokens,
		CompletionTokens:  rep.CompletionTokens,
		TotalTokens:       rep.TotalTokens,
		TotalCost:         rep.TotalCost,
		AvgTokensPerCall:  rep.AvgTokensPerCall,
		AvgCostPerCall:    rep.AvgCostPerCall,
		PromptPercent:     rep.PromptShare,
		CompletionPercent: rep.CompletionShare,
		Records:           recordsToBody(rep.Records),
	}
}
