package usage

import (
	"context"
	"time"

	domusage "github.com/tokentab-io/tokentab/internal/domain/usage"
	"github.com/tokentab-io/tokentab/internal/domain/usage/budget"
	"github.com/tokentab-io/tokentab/internal/domain/usage/totals"
)

// Service handles usage reporting.
type Service struct {
	br BudgetReader
	sa SessionAggregator
}

// New creates a Service. br can be nil (unlimited mode); sa can be nil.
func New(br BudgetReader, sa SessionAggregator) *Service {
	return &Service{br: br, sa: sa}
}

// GetReport builds a usage report for the given period.
// Session totals cover the sessions loaded in this process and are not
// sliced by period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := time.Now().UTC()
	var start, end int64
	b := budget.Unlimited()

	switch period {
	case domusage.PeriodDay:
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		dayEnd := dayStart.Add(24 * time.Hour)
		start = dayStart.UnixMilli()
		end = dayEnd.UnixMilli()
		if s.br != nil {
			b = snapshot(s.br.DailyLimit(), s.br.RemainingDaily(), end)
		}
	case domusage.PeriodMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		monthEnd := monthStart.AddDate(0, 1, 0)
		start = monthStart.UnixMilli()
		end = monthEnd.UnixMilli()
		if s.br != nil {
			b = snapshot(s.br.MonthlyLimit(), s.br.RemainingMonthly(), end)
		}
	default:
		// total has no period boundaries; the monthly budget is the
		// closest active cap
		if s.br != nil {
			b = snapshot(s.br.MonthlyLimit(), s.br.RemainingMonthly(), 0)
		}
	}

	var tot totals.Totals
	var active int
	if s.sa != nil {
		tot = s.sa.Totals()
		active = s.sa.ActiveCount()
	}

	return domusage.NewReport(period, start, end, active, tot, b)
}

func snapshot(limit, remaining, resetsAt int64) budget.Budget {
	if limit <= 0 {
		return budget.Unlimited()
	}
	return budget.New(limit, remaining, remaining <= 0, resetsAt)
}
