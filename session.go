package tokentab

import (
	"context"
	"fmt"
	"time"

	"github.com/tokentab-io/tokentab/internal/domain"
	chatuc "github.com/tokentab-io/tokentab/internal/usecase/chat"
)

// Session is a handle to one tracking session. Handles are cheap and
// hold no state beyond the id; all data lives in the client.
type Session struct {
	id     string
	client *Client
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Info describes the session.
func (s *Session) Info(ctx context.Context) (info SessionInfo, err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("session_info", start, err) }()

	sess, err := s.client.sessions.Describe(ctx, s.id)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("describe session: %w", err)
	}
	return sessionInfo(sess), nil
}

// Chat runs one chat exchange and books every provider round into the
// session ledger. opts may be nil for the session defaults.
func (s *Session) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (res ChatResult, err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("chat", start, err) }()

	out, err := s.client.chat.Complete(ctx, s.id, chatParams(messages, opts))
	if err != nil {
		return ChatResult{}, fmt.Errorf("chat: %w", err)
	}
	return chatResultFromUC(out), nil
}

// ChatStream runs one streaming chat exchange. Content deltas surface
// through onDelta as they arrive; the returned result carries the same
// accounting as Chat. A nil onDelta discards deltas.
func (s *Session) ChatStream(
	ctx context.Context, messages []Message, opts *ChatOptions,
	onDelta func(Delta) error,
) (res ChatResult, err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("chat_stream", start, err) }()

	cb := func(domain.StreamDelta) error { return nil }
	if onDelta != nil {
		cb = func(d domain.StreamDelta) error {
			return onDelta(Delta{Content: d.Content})
		}
	}

	out, err := s.client.chat.Stream(ctx, s.id, chatParams(messages, opts), cb)
	if err != nil {
		return ChatResult{}, fmt.Errorf("stream: %w", err)
	}
	return chatResultFromUC(out), nil
}

// Track books one externally made call into the ledger. Use it when the
// provider call happens outside tokentab and only the accounting is
// wanted.
func (s *Session) Track(ctx context.Context, query string, usage Usage) (res TrackResult, err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("track", start, err) }()

	out, err := s.client.sessions.RecordCall(ctx, s.id, query, usageToDomain(usage))
	if err != nil {
		return TrackResult{}, fmt.Errorf("track: %w", err)
	}
	return TrackResult{
		Record:           recordFromLedger(out.Record),
		SessionTokens:    out.TotalTokens,
		SessionCost:      out.TotalCost,
		ThresholdWarning: out.OverThreshold,
	}, nil
}

// Report summarizes the session ledger.
func (s *Session) Report(ctx context.Context) (rep Report, err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("report", start, err) }()

	_, lrep, err := s.client.sessions.Report(ctx, s.id)
	if err != nil {
		return Report{}, fmt.Errorf("report: %w", err)
	}
	return reportFromLedger(lrep), nil
}

// ExportCSV renders the session ledger as CSV.
func (s *Session) ExportCSV(ctx context.Context) (csv string, err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("export", start, err) }()

	csv, err = s.client.sessions.ExportCSV(ctx, s.id)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	return csv, nil
}

// End closes the session. Ended sessions keep their ledger and stay
// readable but reject new calls.
func (s *Session) End(ctx context.Context) (info SessionInfo, err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("session_end", start, err) }()

	sess, err := s.client.sessions.End(ctx, s.id)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("end session: %w", err)
	}
	return sessionInfo(sess), nil
}

// Delete removes the session and its ledger.
func (s *Session) Delete(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("session_delete", start, err) }()

	if err = s.client.sessions.Delete(ctx, s.id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func chatParams(messages []Message, opts *ChatOptions) chatuc.Params {
	if opts == nil {
		opts = &ChatOptions{}
	}
	return chatuc.Params{
		Messages:    messagesToDomain(messages),
		Model:       opts.Model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		UseTools:    opts.UseTools,
	}
}
