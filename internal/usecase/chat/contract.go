package chat

import (
	"context"
	"encoding/json"

	"github.com/tokentab-io/tokentab/internal/domain"
	domsession "github.com/tokentab-io/tokentab/internal/domain/session"
	"github.com/tokentab-io/tokentab/internal/usecase/session"
)

// Provider is the chat backend contract, blocking and streaming.
type Provider interface {
	domain.Completer
	domain.Streamer
}

// Accountant books provider rounds into a session ledger.
type Accountant interface {
	Describe(ctx context.Context, id string) (domsession.Session, error)
	RecordCall(ctx context.Context, id, query string, usage domain.TokenUsage) (session.Outcome, error)
}

// ToolExecutor resolves and runs model-requested tools.
type ToolExecutor interface {
	Specs() []domain.ToolSpec
	Execute(ctx context.Context, name string, args json.RawMessage) (string, error)
}
