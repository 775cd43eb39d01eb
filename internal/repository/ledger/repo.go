// Package ledger persists tracking sessions and their call records.
//
// Key layout: {prefix}session:{id} holds session metadata as a hash,
// {prefix}records:{id} holds call records as a list of JSON rows.
package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/tokentab-io/tokentab/internal/domain"
	"github.com/tokentab-io/tokentab/internal/domain/ledger"
	"github.com/tokentab-io/tokentab/internal/domain/session"
)

// store is the consumer interface for session persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	RPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)
}

// Repo implements usecase/session.Repository.
type Repo struct {
	store  store
	prefix string
}

// New creates a session repository with the given key prefix.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = "tokentab:"
	}
	return &Repo{store: s, prefix: prefix}
}

// SaveSession writes session metadata. Covers both create and update
// (ending a session rewrites the hash with ended_at set).
func (r *Repo) SaveSession(ctx context.Context, sess session.Session) error {
	if err := r.store.HSet(ctx, r.metaKey(sess.ID()), sessionToHash(sess)); err != nil {
		return fmt.Errorf("hset session %s: %w", sess.ID(), err)
	}
	return nil
}

// GetSession retrieves session metadata by id.
func (r *Repo) GetSession(ctx context.Context, id string) (session.Session, error) {
	m, err := r.store.HGetAll(ctx, r.metaKey(id))
	if err != nil {
		return session.Session{}, fmt.Errorf("hgetall session %s: %w", id, err)
	}
	if len(m) == 0 {
		return session.Session{}, domain.ErrSessionNotFound
	}
	return sessionFromHash(m)
}

// ListSessions returns all sessions sorted by CreatedAt.
func (r *Repo) ListSessions(ctx context.Context) ([]session.Session, error) {
	keys, err := r.store.Scan(ctx, r.metaKey("*"))
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	if len(keys) == 0 {
		return []session.Session{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi sessions: %w", err)
	}

	sessions := make([]session.Session, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		sess, err := sessionFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse session %s: %w", keys[i], err)
		}
		sessions = append(sessions, sess)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt() < sessions[j].CreatedAt()
	})

	return sessions, nil
}

// DeleteSession removes session metadata and its records.
func (r *Repo) DeleteSession(ctx context.Context, id string) error {
	m, err := r.store.HGetAll(ctx, r.metaKey(id))
	if err != nil {
		return fmt.Errorf("hgetall session %s: %w", id, err)
	}
	if len(m) == 0 {
		return domain.ErrSessionNotFound
	}

	if err := r.store.Del(ctx, r.metaKey(id)); err != nil {
		return fmt.Errorf("del session %s: %w", id, err)
	}
	if err := r.store.Del(ctx, r.recordsKey(id)); err != nil {
		return fmt.Errorf("del records %s: %w", id, err)
	}
	return nil
}

// AppendRecord appends one call record to the session's record list.
func (r *Repo) AppendRecord(ctx context.Context, sessionID string, rec ledger.CallRecord) error {
	row, err := recordToJSON(rec)
	if err != nil {
		return err
	}
	if err := r.store.RPush(ctx, r.recordsKey(sessionID), row); err != nil {
		return fmt.Errorf("rpush record %s: %w", sessionID, err)
	}
	return nil
}

// LoadRecords returns all stored call records of a session in call order.
func (r *Repo) LoadRecords(ctx context.Context, sessionID string) ([]ledger.CallRecord, error) {
	rows, err := r.store.LRange(ctx, r.recordsKey(sessionID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("lrange records %s: %w", sessionID, err)
	}

	records := make([]ledger.CallRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := recordFromJSON(row)
		if err != nil {
			return nil, fmt.Errorf("parse record %s[%d]: %w", sessionID, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// CountRecords returns the number of stored call records of a session.
func (r *Repo) CountRecords(ctx context.Context, sessionID string) (int64, error) {
	n, err := r.store.LLen(ctx, r.recordsKey(sessionID))
	if err != nil {
		return 0, fmt.Errorf("llen records %s: %w", sessionID, err)
	}
	return n, nil
}

func (r *Repo) metaKey(id string) string {
	return r.prefix + "session:" + id
}

func (r *Repo) recordsKey(id string) string {
	return r.prefix + "records:" + id
}
