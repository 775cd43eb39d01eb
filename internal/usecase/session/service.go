// Package session owns tracking session lifecycle and their ledgers.
//
// Ledgers live in memory and are the source of truth for the running
// process. With a repository attached, sessions persist across restarts:
// metadata and records are written through on every change and a session
// not in memory is restored lazily on first access.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/tokentab-io/tokentab/internal/domain"
	"github.com/tokentab-io/tokentab/internal/domain/ledger"
	domsession "github.com/tokentab-io/tokentab/internal/domain/session"
	"github.com/tokentab-io/tokentab/internal/domain/usage/totals"
	"github.com/tokentab-io/tokentab/internal/metrics"
)

// managed pairs a session with its ledger under one lock.
// The lock serializes ledger appends and end-of-session flips.
type managed struct {
	mu     sync.Mutex
	sess   domsession.Session
	ledger *ledger.Ledger
}

// CreateParams are the optional knobs for a new session.
// Zero values fall back to configured defaults.
type CreateParams struct {
	Label         string
	Model         string
	Pricing       *domain.Pricing
	WarnThreshold *int
}

// Outcome is the ledger state right after one recorded call.
type Outcome struct {
	Record        ledger.CallRecord
	TotalTokens   int
	TotalCost     float64
	OverThreshold bool
}

// Service handles session lifecycle and call recording.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*managed

	repo             Repository // nil = memory only
	pricer           Pricer     // nil = static defaults
	defaultModel     string
	defaultThreshold int
	logger           *zap.Logger
}

// New creates a session service. repo and pricer can be nil.
func New(repo Repository, pricer Pricer, defaultModel string, defaultThreshold int, logger *zap.Logger) *Service {
	return &Service{
		sessions:         make(map[string]*managed),
		repo:             repo,
		pricer:           pricer,
		defaultModel:     defaultModel,
		defaultThreshold: defaultThreshold,
		logger:           logger,
	}
}

// Create validates and registers a new session. Pricing resolution order:
// explicit params, then price table lookup by model, then static defaults.
func (s *Service) Create(ctx context.Context, p CreateParams) (domsession.Session, error) {
	model := p.Model
	if model == "" {
		model = s.defaultModel
	}

	var pricing domain.Pricing
	switch {
	case p.Pricing != nil:
		pricing = *p.Pricing
	case s.pricer != nil:
		pricing = s.pricer.RatesFor(model)
	default:
		pricing = domain.DefaultPricing()
	}

	threshold := s.defaultThreshold
	if p.WarnThreshold != nil {
		threshold = *p.WarnThreshold
	}

	sess, err := domsession.New(ulid.Make().String(), p.Label, model, pricing, threshold)
	if err != nil {
		return domsession.Session{}, fmt.Errorf("validate session: %w", err)
	}

	if s.repo != nil {
		if err := s.repo.SaveSession(ctx, sess); err != nil {
			return domsession.Session{}, fmt.Errorf("save session: %w", err)
		}
	}

	s.mu.Lock()
	s.sessions[sess.ID()] = &managed{sess: sess, ledger: sess.NewLedger()}
	s.mu.Unlock()

	metrics.SessionsActive.Inc()
	s.logger.Info("Session created",
		zap.String("session_id", sess.ID()),
		zap.String("model", sess.Model()),
		zap.Float64("input_rate", pricing.InputPerMillion),
		zap.Float64("output_rate", pricing.OutputPerMillion),
		zap.Int("warn_threshold", threshold),
	)
	return sess, nil
}

// Describe returns the session metadata, restoring it from storage if needed.
func (s *Service) Describe(ctx context.Context, id string) (domsession.Session, error) {
	m, err := s.managed(ctx, id)
	if err != nil {
		return domsession.Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess, nil
}

// List returns all known sessions sorted by creation time.
func (s *Service) List(ctx context.Context) ([]domsession.Session, error) {
	if s.repo != nil {
		sessions, err := s.repo.ListSessions(ctx)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		return sessions, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]domsession.Session, 0, len(s.sessions))
	for _, m := range s.sessions {
		m.mu.Lock()
		sessions = append(sessions, m.sess)
		m.mu.Unlock()
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt() < sessions[j].CreatedAt()
	})
	return sessions, nil
}

// RecordCall appends one model call to the session ledger and returns the
// resulting totals. Persistence is write-behind: a storage failure is logged
// but the in-memory record stands, the tokens were already spent.
func (s *Service) RecordCall(ctx context.Context, id, query string, usage domain.TokenUsage) (Outcome, error) {
	m, err := s.managed(ctx, id)
	if err != nil {
		return Outcome{}, err
	}

	m.mu.Lock()
	if m.sess.Ended() {
		m.mu.Unlock()
		return Outcome{}, domain.ErrSessionEnded
	}
	rec, err := m.ledger.Record(query, usage)
	if err != nil {
		m.mu.Unlock()
		return Outcome{}, err
	}
	out := Outcome{
		Record:        rec,
		TotalTokens:   m.ledger.TotalTokens(),
		TotalCost:     m.ledger.TotalCost(),
		OverThreshold: m.ledger.OverThreshold(),
	}
	m.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.AppendRecord(ctx, id, rec); err != nil {
			s.logger.Error("Failed to persist call record",
				zap.String("session_id", id),
				zap.Int("call", rec.Number()),
				zap.Error(err),
			)
		}
	}
	return out, nil
}

// Report summarizes the session ledger.
func (s *Service) Report(ctx context.Context, id string) (domsession.Session, ledger.Report, error) {
	m, err := s.managed(ctx, id)
	if err != nil {
		return domsession.Session{}, ledger.Report{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess, m.ledger.Summarize(), nil
}

// ExportCSV renders the session ledger as CSV.
func (s *Service) ExportCSV(ctx context.Context, id string) (string, error) {
	m, err := s.managed(ctx, id)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.ExportCSV(), nil
}

// End marks a session as finished. Idempotent; reports and exports keep
// working, further calls are rejected with ErrSessionEnded.
func (s *Service) End(ctx context.Context, id string) (domsession.Session, error) {
	m, err := s.managed(ctx, id)
	if err != nil {
		return domsession.Session{}, err
	}

	m.mu.Lock()
	if m.sess.Ended() {
		sess := m.sess
		m.mu.Unlock()
		return sess, nil
	}
	m.sess = m.sess.End(time.Now().UnixMilli())
	sess := m.sess
	m.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.SaveSession(ctx, sess); err != nil {
			return domsession.Session{}, fmt.Errorf("save ended session: %w", err)
		}
	}

	metrics.SessionsActive.Dec()
	s.logger.Info("Session ended",
		zap.String("session_id", id),
		zap.Int("calls", s.callCountLocked(m)),
	)
	return sess, nil
}

// Delete removes a session and its records.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	m, inMemory := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.DeleteSession(ctx, id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	} else if !inMemory {
		return domain.ErrSessionNotFound
	}

	if inMemory {
		m.mu.Lock()
		active := !m.sess.Ended()
		m.mu.Unlock()
		if active {
			metrics.SessionsActive.Dec()
		}
	}
	s.logger.Info("Session deleted", zap.String("session_id", id))
	return nil
}

// CallCount returns the number of recorded calls without hydrating the
// ledger for sessions that live only in storage.
func (s *Service) CallCount(ctx context.Context, id string) (int64, error) {
	s.mu.RLock()
	m, ok := s.sessions[id]
	s.mu.RUnlock()

	if ok {
		m.mu.Lock()
		defer m.mu.Unlock()
		return int64(m.ledger.Len()), nil
	}
	if s.repo != nil {
		n, err := s.repo.CountRecords(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("count records: %w", err)
		}
		return n, nil
	}
	return 0, domain.ErrSessionNotFound
}

// Totals aggregates consumption across sessions loaded in this process.
func (s *Service) Totals() totals.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var requests, prompt, completion, total int64
	var cost float64
	for _, m := range s.sessions {
		m.mu.Lock()
		requests += int64(m.ledger.Len())
		prompt += int64(m.ledger.PromptTokens())
		completion += int64(m.ledger.CompletionTokens())
		total += int64(m.ledger.TotalTokens())
		cost += m.ledger.TotalCost()
		m.mu.Unlock()
	}
	return totals.New(requests, prompt, completion, total, cost)
}

// ActiveCount returns the number of loaded sessions not yet ended.
func (s *Service) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, m := range s.sessions {
		m.mu.Lock()
		if !m.sess.Ended() {
			n++
		}
		m.mu.Unlock()
	}
	return n
}

// managed returns the in-memory entry for a session, restoring it from the
// repository on first access.
func (s *Service) managed(ctx context.Context, id string) (*managed, error) {
	s.mu.RLock()
	m, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}
	if s.repo == nil {
		return nil, domain.ErrSessionNotFound
	}

	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	records, err := s.repo.LoadRecords(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		// Another goroutine restored it first.
		return existing, nil
	}
	m = &managed{
		sess:   sess,
		ledger: ledger.Reconstruct(sess.Pricing(), sess.WarnThreshold(), records),
	}
	s.sessions[id] = m

	s.logger.Debug("Session restored from storage",
		zap.String("session_id", id),
		zap.Int("records", len(records)),
	)
	return m, nil
}

func (s *Service) callCountLocked(m *managed) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Len()
}
