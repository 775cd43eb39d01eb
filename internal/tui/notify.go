package tui

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gen2brain/beeep"
)

// Notifier sends desktop notifications on state transitions. Every alert is
// edge-triggered: it fires when its condition becomes true, not on every
// poll while the condition holds.
type Notifier struct {
	send func(title, body string) error

	budgetExhausted bool
	overThreshold   map[string]bool
}

// NewNotifier creates a Notifier backed by desktop notifications.
func NewNotifier() *Notifier {
	return &Notifier{
		send: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
		overThreshold: make(map[string]bool),
	}
}

// Observe inspects a snapshot and fires notifications for newly tripped
// conditions.
func (n *Notifier) Observe(snap Snapshot) {
	n.observeBudget(snap)
	n.observeSessions(snap.Sessions)
}

func (n *Notifier) observeBudget(snap Snapshot) {
	b := snap.Usage.Budget
	exhausted := b.TokensLimit > 0 && b.IsExhausted
	if exhausted && !n.budgetExhausted {
		_ = n.send(
			"tokentab: budget exhausted",
			fmt.Sprintf("The %s token budget of %s is used up.",
				snap.Usage.Period, humanize.Comma(b.TokensLimit)),
		)
	}
	n.budgetExhausted = exhausted
}

func (n *Notifier) observeSessions(rows []SessionRow) {
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		seen[row.ID] = true
		over := row.OverThreshold()
		if over && !n.overThreshold[row.ID] {
			_ = n.send(
				"tokentab: session over threshold",
				fmt.Sprintf("%s used %s tokens (threshold %s).",
					row.Name(),
					humanize.Comma(int64(row.TotalTokens)),
					humanize.Comma(int64(row.WarnThreshold))),
			)
		}
		n.overThreshold[row.ID] = over
	}
	// Drop sessions no longer listed.
	for id := range n.overThreshold {
		if !seen[id] {
			delete(n.overThreshold, id)
		}
	}
}
