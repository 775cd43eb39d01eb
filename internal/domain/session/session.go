package session

import (
	"fmt"
	"time"

	"github.com/tokentab-io/tokentab/internal/domain"
	"github.com/tokentab-io/tokentab/internal/domain/ledger"
)

// Session is the tracking session aggregate (immutable value object).
// Pricing and warning threshold are captured at creation; later price table
// changes never affect an existing session's ledger.
type Session struct {
	id            string
	label         string
	model         string
	pricing       domain.Pricing
	warnThreshold int
	createdAt     int64
	endedAt       int64
}

// New validates and creates a Session. Label: max 128 chars.
func New(id, label, model string, pricing domain.Pricing, warnThreshold int) (Session, error) {
	if id == "" {
		return Session{}, fmt.Errorf("session id is required")
	}
	if model == "" {
		return Session{}, fmt.Errorf("session model is required")
	}
	if len(label) > 128 {
		return Session{}, fmt.Errorf("session label too long (max 128)")
	}
	if err := pricing.Validate(); err != nil {
		return Session{}, err
	}
	if warnThreshold < 0 {
		warnThreshold = 0
	}
	return Session{
		id:            id,
		label:         label,
		model:         model,
		pricing:       pricing,
		warnThreshold: warnThreshold,
		createdAt:     time.Now().UnixMilli(),
	}, nil
}

// Reconstruct creates a Session without validation (storage hydration).
func Reconstruct(id, label, model string, pricing domain.Pricing, warnThreshold int, createdAt, endedAt int64) Session {
	return Session{
		id:            id,
		label:         label,
		model:         model,
		pricing:       pricing,
		warnThreshold: warnThreshold,
		createdAt:     createdAt,
		endedAt:       endedAt,
	}
}

// ID returns the session id.
func (s Session) ID() string { return s.id }

// Label returns the optional human-readable label.
func (s Session) Label() string { return s.label }

// Model returns the chat model the session tracks.
func (s Session) Model() string { return s.model }

// Pricing returns the rates captured at creation.
func (s Session) Pricing() domain.Pricing { return s.pricing }

// WarnThreshold returns the warning threshold captured at creation.
func (s Session) WarnThreshold() int { return s.warnThreshold }

// CreatedAt returns the creation timestamp (unix millis).
func (s Session) CreatedAt() int64 { return s.createdAt }

// EndedAt returns the end timestamp (unix millis), 0 while active.
func (s Session) EndedAt() int64 { return s.endedAt }

// Ended reports whether the session has been ended.
func (s Session) Ended() bool { return s.endedAt != 0 }

// End returns a copy marked as ended at the given timestamp.
func (s Session) End(endedAt int64) Session {
	s.endedAt = endedAt
	return s
}

// NewLedger creates an empty ledger priced for this session.
func (s Session) NewLedger() *ledger.Ledger {
	return ledger.New(s.pricing, s.warnThreshold)
}
