package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tokentab-io/tokentab/internal/domain"
	"github.com/tokentab-io/tokentab/internal/domain/ledger"
	"github.com/tokentab-io/tokentab/internal/domain/session"
)

// recordRow is the JSON-serializable representation of a call record for RPUSH.
type recordRow struct {
	Number           int     `json:"number"`
	Query            string  `json:"query"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

// recordToJSON converts a domain CallRecord to a JSON list element.
func recordToJSON(rec ledger.CallRecord) (string, error) {
	u := rec.Usage()
	row := recordRow{
		Number:           rec.Number(),
		Query:            rec.Query(),
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		Cost:             rec.Cost(),
	}
	data, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}

// recordFromJSON hydrates a domain CallRecord from a stored list element.
// Stored costs are authoritative and are not recomputed.
func recordFromJSON(data string) (ledger.CallRecord, error) {
	var row recordRow
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		return ledger.CallRecord{}, fmt.Errorf("unmarshal record: %w", err)
	}
	usage := domain.TokenUsage{
		PromptTokens:     row.PromptTokens,
		CompletionTokens: row.CompletionTokens,
		TotalTokens:      row.TotalTokens,
	}
	return ledger.RestoreRecord(row.Number, row.Query, usage, row.Cost), nil
}

// sessionToHash converts a domain Session to a map for HSET.
func sessionToHash(sess session.Session) map[string]string {
	p := sess.Pricing()
	return map[string]string{
		"id":             sess.ID(),
		"label":          sess.Label(),
		"model":          sess.Model(),
		"input_rate":     strconv.FormatFloat(p.InputPerMillion, 'g', -1, 64),
		"output_rate":    strconv.FormatFloat(p.OutputPerMillion, 'g', -1, 64),
		"warn_threshold": strconv.Itoa(sess.WarnThreshold()),
		"created_at":     strconv.FormatInt(sess.CreatedAt(), 10),
		"ended_at":       strconv.FormatInt(sess.EndedAt(), 10),
	}
}

// sessionFromHash hydrates a domain Session from an HGETALL result map.
func sessionFromHash(m map[string]string) (session.Session, error) {
	id := m["id"]
	if id == "" {
		return session.Session{}, fmt.Errorf("missing session id")
	}

	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return session.Session{}, fmt.Errorf("invalid created_at: %w", err)
	}

	inputRate, err := strconv.ParseFloat(m["input_rate"], 64)
	if err != nil {
		return session.Session{}, fmt.Errorf("invalid input_rate: %w", err)
	}
	outputRate, err := strconv.ParseFloat(m["output_rate"], 64)
	if err != nil {
		return session.Session{}, fmt.Errorf("invalid output_rate: %w", err)
	}

	warnThreshold := 0
	if s, ok := m["warn_threshold"]; ok && s != "" {
		if parsed, err := strconv.Atoi(s); err == nil {
			warnThreshold = parsed
		}
	}

	var endedAt int64
	if s, ok := m["ended_at"]; ok && s != "" {
		if parsed, err := strconv.ParseInt(s, 10, 64); err == nil {
			endedAt = parsed
		}
	}

	pricing := domain.Pricing{InputPerMillion: inputRate, OutputPerMillion: outputRate}
	return session.Reconstruct(id, m["label"], m["model"], pricing, warnThreshold, createdAt, endedAt), nil
}
