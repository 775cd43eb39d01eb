package tui

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/tokentab-io/tokentab/internal/transport/httpapi"
)

// maxReportFetches bounds per-session report requests in one poll. The
// newest sessions win; the rest show up only in the truncation count.
const maxReportFetches = 20

// SessionRow is one table line: session metadata joined with its report
// totals.
type SessionRow struct {
	ID            string
	Label         string
	Model         string
	Calls         int
	TotalTokens   int
	TotalCost     float64
	WarnThreshold int
	Ended         bool
	CreatedAt     time.Time
}

// OverThreshold reports whether the session crossed its warning threshold.
func (r SessionRow) OverThreshold() bool {
	return r.WarnThreshold > 0 && r.TotalTokens > r.WarnThreshold
}

// Name returns the label when set, the id otherwise.
func (r SessionRow) Name() string {
	if r.Label != "" {
		return r.Label
	}
	return r.ID
}

// Snapshot is one poll of the running service.
type Snapshot struct {
	Usage     httpapi.UsageResponse
	Sessions  []SessionRow // newest first
	Truncated int          // sessions beyond maxReportFetches
	Health    httpapi.HealthResponse
	TakenAt   time.Time
}

// fetchSnapshot gathers usage, session reports, and health in one pass.
// A health probe failure degrades to status "unreachable" instead of
// failing the snapshot; usage and session list failures fail fast.
func fetchSnapshot(ctx context.Context, c *Client, period string) (Snapshot, error) {
	snap := Snapshot{TakenAt: time.Now()}

	usage, err := c.Usage(ctx, period)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Usage = usage

	list, err := c.Sessions(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	items := list.Items
	if len(items) > maxReportFetches {
		snap.Truncated = len(items) - maxReportFetches
		items = items[len(items)-maxReportFetches:]
	}

	rows := make([]SessionRow, 0, len(items))
	for _, s := range items {
		row := SessionRow{
			ID:            s.ID,
			Label:         s.Label,
			Model:         s.Model,
			WarnThreshold: s.WarnThresholdTokens,
			Ended:         s.EndedAt != nil,
			CreatedAt:     s.CreatedAt,
		}
		rep, err := c.Report(ctx, s.ID)
		switch {
		case err == nil:
			row.Calls = rep.Calls
			row.TotalTokens = rep.TotalTokens
			row.TotalCost = rep.TotalCost
		case isNotFound(err):
			// Deleted between the list call and the report call.
			continue
		}
		rows = append(rows, row)
	}
	slices.Reverse(rows)
	snap.Sessions = rows

	health, err := c.Health(ctx)
	if err != nil {
		health = httpapi.HealthResponse{Status: "unreachable"}
	}
	snap.Health = health

	return snap, nil
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
