package domain

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	// RoleSystem sets model behavior for the conversation.
	RoleSystem Role = "system"
	// RoleUser carries end-user input.
	RoleUser Role = "user"
	// RoleAssistant carries model output.
	RoleAssistant Role = "assistant"
	// RoleTool carries a tool execution result back to the model.
	RoleTool Role = "tool"
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

// ChatRequest is the shared chat invocation contract between layers.
type ChatRequest struct {
	Messages    []Message
	Model       string // empty = configured default
	Temperature *float32
	MaxTokens   int
	Tools       []ToolSpec
}

// ChatResponse carries the model reply and token usage through the decorator chain.
type ChatResponse struct {
	Content      string
	FinishReason string
	ToolCalls    []ToolCall
	Model        string
	Usage        TokenUsage
}

// StreamDelta is one incremental content chunk of a streamed reply.
type StreamDelta struct {
	Content string
}

// Completer is the blocking chat invocation contract.
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Streamer delivers the reply incrementally through onDelta and returns the
// assembled response once the stream ends. Usage arrives with the final chunk.
type Streamer interface {
	Stream(ctx context.Context, req ChatRequest, onDelta func(StreamDelta) error) (ChatResponse, error)
}

// HealthChecker verifies chat provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// UserMessage builds a single-turn user request body.
func UserMessage(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}

// LastUserContent returns the content of the most recent user message,
// or "" when the request has none. Used as the ledger query text.
func LastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
