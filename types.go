package tokentab

import "time"

// Role identifies the author of a chat message.
type Role string

// Message role constants.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
	// Name and ToolCallID link a RoleTool message to the call it answers.
	Name       string
	ToolCallID string
	// ToolCalls are tool invocations requested by an assistant message.
	ToolCalls []ToolCall
}

// ToolCall is a provider-requested tool invocation.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object
}

// ToolSpec describes a callable tool for the provider.
// Parameters is a JSON Schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatRequest is the invocation contract for custom Provider backends.
type ChatRequest struct {
	Messages    []Message
	Model       string
	Temperature *float32
	MaxTokens   int
	Tools       []ToolSpec
}

// ChatResponse is one provider round: the reply and its token usage.
type ChatResponse struct {
	Content      string
	FinishReason string
	ToolCalls    []ToolCall
	Model        string
	Usage        Usage
}

// Delta is one incremental content chunk of a streamed reply.
type Delta struct {
	Content string
}

// Usage is the token consumption of one model call.
// A zero TotalTokens defaults to prompt plus completion when tracked.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Pricing holds USD rates per million tokens.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// SessionOptions configures a new tracking session.
// Zero values fall back to client defaults. Nil disables the override.
type SessionOptions struct {
	Label         string
	Model         string
	Pricing       *Pricing
	WarnThreshold *int
}

// SessionInfo is a session metadata snapshot. Pricing and threshold are
// captured at creation; later price table changes never affect a session.
type SessionInfo struct {
	ID            string
	Label         string
	Model         string
	Pricing       Pricing
	WarnThreshold int
	CreatedAt     time.Time
	EndedAt       time.Time // zero while the session is active
}

// CallRecord is one tracked model call.
type CallRecord struct {
	Call  int // 1-based sequence number
	Query string
	Usage Usage
	Cost  float64 // USD
}

// TrackResult is the ledger state right after one tracked call.
type TrackResult struct {
	Record           CallRecord
	SessionTokens    int
	SessionCost      float64
	ThresholdWarning bool
}

// ChatOptions configures one chat exchange. Nil means defaults.
type ChatOptions struct {
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

// ChatResult is the outcome of one exchange, including any tool rounds.
type ChatResult struct {
	Content      string
	FinishReason string
	Model        string
	ToolCalls    []ToolCall // unexecuted requests when the tool loop is off
	ToolResults  []ToolResult

	// Usage and Cost cover this exchange across all rounds.
	Usage Usage
	Cost  float64

	// Records holds one entry per provider round, in order.
	Records []CallRecord

	// SessionTokens and SessionCost are the session cumulative totals after
	// this exchange. ThresholdWarning is set when any round left the session
	// over its warn threshold.
	SessionTokens    int
	SessionCost      float64
	ThresholdWarning bool
}

// Report is the aggregate session summary with per-call breakdown.
// Averages and shares are 0 for an empty session.
type Report struct {
	Calls            int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	TotalCost        float64
	AvgTokensPerCall float64
	AvgCostPerCall   float64
	// PromptPercent/CompletionPercent split total tokens in percent.
	PromptPercent     float64
	CompletionPercent float64
	Records           []CallRecord
}

// UsagePeriod is the aggregation granularity for usage reports.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
	PeriodTotal UsagePeriod = "total"
)

// UsageReport contains chat usage statistics for a time period.
type UsageReport struct {
	Period         UsagePeriod
	PeriodStart    time.Time
	PeriodEnd      time.Time
	SessionsActive int
	Totals         Totals
	Budget         BudgetStatus
}

// Totals tracks chat resource consumption across sessions.
type Totals struct {
	Requests         int64
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	CostUSD          float64
}

// BudgetStatus tracks token quota state.
type BudgetStatus struct {
	TokensLimit     int64 // 0 when unlimited
	TokensRemaining int64 // -1 when unlimited
	IsExhausted     bool
	ResetsAt        time.Time
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
	Parameters  map[string]any
}
