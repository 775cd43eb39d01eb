package session

import (
	"context"

	"github.com/tokentab-io/tokentab/internal/domain"
	"github.com/tokentab-io/tokentab/internal/domain/ledger"
	domsession "github.com/tokentab-io/tokentab/internal/domain/session"
)

// Repository defines the storage contract for sessions and their records.
type Repository interface {
	SaveSession(ctx context.Context, sess domsession.Session) error
	GetSession(ctx context.Context, id string) (domsession.Session, error)
	ListSessions(ctx context.Context) ([]domsession.Session, error)
	DeleteSession(ctx context.Context, id string) error
	AppendRecord(ctx context.Context, sessionID string, rec ledger.CallRecord) error
	LoadRecords(ctx context.Context, sessionID string) ([]ledger.CallRecord, error)
	CountRecords(ctx context.Context, sessionID string) (int64, error)
}

// Pricer resolves per-model rates for new sessions.
type Pricer interface {
	RatesFor(model string) domain.Pricing
}
