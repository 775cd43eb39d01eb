// Package ledger implements append-only per-call token usage accounting.
package ledger

import (
	"github.com/tokentab-io/tokentab/internal/domain"
)

// CallRecord is one tracked model call (immutable value object).
type CallRecord struct {
	number int
	query  string
	usage  domain.TokenUsage
	cost   float64
}

// Number returns the 1-based call sequence number.
func (r CallRecord) Number() int { return r.number }

// Query returns the query text the call was tracked under.
func (r CallRecord) Query() string { return r.query }

// Usage returns the normalized token usage of the call.
func (r CallRecord) Usage() domain.TokenUsage { return r.usage }

// Cost returns the computed USD cost of the call.
func (r CallRecord) Cost() float64 { return r.cost }

// Ledger is an append-only sequence of CallRecords with running aggregates.
// Insertion order is call order; records are never removed or rewritten.
// A Ledger is not safe for concurrent use; the owner serializes access.
type Ledger struct {
	pricing       domain.Pricing
	warnThreshold int

	records          []CallRecord
	promptTokens     int
	completionTokens int
	totalTokens      int
	totalCost        float64
}

// New creates an empty ledger with the given rates and warning threshold.
// A zero or negative threshold disables the warning.
func New(pricing domain.Pricing, warnThreshold int) *Ledger {
	return &Ledger{
		pricing:       pricing,
		warnThreshold: warnThreshold,
	}
}

// Reconstruct rebuilds a ledger from stored records (storage hydration).
// Stored costs are authoritative and are not recomputed.
func Reconstruct(pricing domain.Pricing, warnThreshold int, records []CallRecord) *Ledger {
	l := New(pricing, warnThreshold)
	l.records = make([]CallRecord, len(records))
	copy(l.records, records)
	for _, r := range l.records {
		l.promptTokens += r.usage.PromptTokens
		l.completionTokens += r.usage.CompletionTokens
		l.totalTokens += r.usage.TotalTokens
		l.totalCost += r.cost
	}
	return l
}

// RestoreRecord recreates a CallRecord from stored fields without validation.
func RestoreRecord(number int, query string, usage domain.TokenUsage, cost float64) CallRecord {
	return CallRecord{number: number, query: query, usage: usage, cost: cost}
}

// Record validates and normalizes the usage, computes its cost, appends a
// CallRecord with the next sequence number and returns it.
// Negative counts are rejected with domain.ErrNegativeTokens.
func (l *Ledger) Record(query string, usage domain.TokenUsage) (CallRecord, error) {
	if err := usage.Validate(); err != nil {
		return CallRecord{}, err
	}
	usage = usage.Normalize()

	rec := CallRecord{
		number: len(l.records) + 1,
		query:  query,
		usage:  usage,
		cost:   l.pricing.Cost(usage),
	}
	l.records = append(l.records, rec)
	l.promptTokens += usage.PromptTokens
	l.completionTokens += usage.CompletionTokens
	l.totalTokens += usage.TotalTokens
	l.totalCost += rec.cost
	return rec, nil
}

// Len returns the number of recorded calls.
func (l *Ledger) Len() int { return len(l.records) }

// TotalTokens returns the sum of total tokens across all records.
func (l *Ledger) TotalTokens() int { return l.totalTokens }

// PromptTokens returns the sum of prompt tokens across all records.
func (l *Ledger) PromptTokens() int { return l.promptTokens }

// CompletionTokens returns the sum of completion tokens across all records.
func (l *Ledger) CompletionTokens() int { return l.completionTokens }

// TotalCost returns the sum of cost across all records.
func (l *Ledger) TotalCost() float64 { return l.totalCost }

// Pricing returns the rates the ledger was created with.
func (l *Ledger) Pricing() domain.Pricing { return l.pricing }

// WarnThreshold returns the configured warning threshold (0 = disabled).
func (l *Ledger) WarnThreshold() int { return l.warnThreshold }

// OverThreshold reports whether cumulative tokens exceed the warning
// threshold. Checked by callers right after Record; the trigger point is
// cumulative-after-append, never the size of an individual call.
func (l *Ledger) OverThreshold() bool {
	return l.warnThreshold > 0 && l.totalTokens > l.warnThreshold
}

// Records returns a copy of the recorded calls in insertion order.
func (l *Ledger) Records() []CallRecord {
	out := make([]CallRecord, len(l.records))
	copy(out, l.records)
	return out
}
