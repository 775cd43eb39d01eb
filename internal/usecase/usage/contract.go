package usage

import "github.com/tokentab-io/tokentab/internal/domain/usage/totals"

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	DailyLimit() int64
	MonthlyLimit() int64
	DailyUsed() int64
	MonthlyUsed() int64
	RemainingDaily() int64
	RemainingMonthly() int64
}

// SessionAggregator provides consumption accumulated across sessions.
type SessionAggregator interface {
	Totals() totals.Totals
	ActiveCount() int
}
