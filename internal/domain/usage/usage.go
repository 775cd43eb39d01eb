package usage

import (
	"github.com/tokentab-io/tokentab/internal/domain/usage/budget"
	"github.com/tokentab-io/tokentab/internal/domain/usage/totals"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

// IsValid checks if the period is supported.
func (p Period) IsValid() bool {
	return p == PeriodDay || p == PeriodMonth || p == PeriodTotal
}

// Report is a chat API usage report for a time period.
type Report struct {
	period         Period
	periodStart    int64
	periodEnd      int64
	sessionsActive int
	totals         totals.Totals
	budget         budget.Budget
}

// NewReport creates a usage report.
func NewReport(period Period, start, end int64, sessionsActive int, t totals.Totals, b budget.Budget) Report {
	return Report{
		period:         period,
		periodStart:    start,
		periodEnd:      end,
		sessionsActive: sessionsActive,
		totals:         t,
		budget:         b,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// SessionsActive returns the number of live sessions.
func (r *Report) SessionsActive() int { return r.sessionsActive }

// Totals returns the consumption totals.
func (r *Report) Totals() totals.Totals { return r.totals }

// Budget returns the budget status.
func (r *Report) Budget() budget.Budget { return r.budget }
