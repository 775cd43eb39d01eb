package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"
)

const maxNameWidth = 20

// View renders the monitor screen.
func (m *Model) View() string {
	if !m.ready {
		return "\n  starting tokentop..."
	}

	sections := make([]string, 0, 12)
	sections = append(sections, m.renderHeader())

	if m.fetchErr != nil {
		sections = append(sections,
			"  "+m.styles.Error.Render("poll failed: "+m.fetchErr.Error()))
	}

	if !m.haveSnap {
		sections = append(sections, "",
			"  "+m.spinner.View()+" "+m.styles.Subtle.Render("waiting for first poll"))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	sections = append(sections, "", m.renderTotals(), "", m.renderBudget())
	if chart := m.renderRate(); chart != "" {
		sections = append(sections, "", chart)
	}
	sections = append(sections, "", m.renderSessions())

	if m.showHelp {
		sections = append(sections, "", m.renderHelp())
	} else {
		sections = append(sections, "", m.renderFooter())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	parts := []string{m.styles.Title.Render("tokentop")}
	if m.client != nil {
		parts = append(parts, m.styles.Subtle.Render(m.client.BaseURL()))
	}
	parts = append(parts, m.renderHealthBadge())
	parts = append(parts, m.styles.Subtle.Render("period ")+m.styles.Highlight.Render(m.period))
	if m.haveSnap {
		parts = append(parts,
			m.styles.Subtle.Render("updated "+m.snap.TakenAt.Format("15:04:05")))
	}
	if m.loading {
		parts = append(parts, m.spinner.View())
	}
	sep := m.styles.Subtle.Render("  ·  ")
	return "  " + strings.Join(parts, sep)
}

func (m *Model) renderHealthBadge() string {
	status := m.snap.Health.Status
	if status == "" {
		status = "unknown"
	}
	switch status {
	case "ok":
		return m.styles.Success.Render("● " + status)
	case "degraded":
		return m.styles.Warning.Render("● " + status)
	default:
		return m.styles.Error.Render("● " + status)
	}
}

func (m *Model) renderTotals() string {
	t := m.snap.Usage.Totals

	var b strings.Builder
	b.WriteString(m.styles.CardTitle.Render("Totals"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "requests %s   tokens %s   cost $%s\n",
		m.styles.Highlight.Render(humanize.Comma(t.Requests)),
		m.styles.Highlight.Render(humanize.Comma(t.TotalTokens)),
		m.styles.Highlight.Render(fmt.Sprintf("%.4f", t.CostUSD)),
	)
	fmt.Fprintf(&b, "prompt %s   completion %s   sessions active %d",
		humanize.Comma(t.PromptTokens),
		humanize.Comma(t.CompletionTokens),
		m.snap.Usage.SessionsActive,
	)

	return m.styles.Card.Width(m.contentWidth()).Render(b.String())
}

func (m *Model) renderBudget() string {
	b := m.snap.Usage.Budget
	if b.TokensLimit <= 0 {
		return "  " + m.styles.Subtle.Render("budget: unlimited")
	}

	used := b.TokensLimit - b.TokensRemaining
	if used < 0 {
		used = 0
	}
	ratio := float64(used) / float64(b.TokensLimit)
	if ratio > 1 {
		ratio = 1
	}

	label := fmt.Sprintf("%s / %s tokens",
		humanize.Comma(used), humanize.Comma(b.TokensLimit))
	if b.IsExhausted {
		label += "  " + m.styles.Error.Render("EXHAUSTED")
	}
	if b.ResetsAt != nil {
		label += "  " + m.styles.Subtle.Render("resets "+b.ResetsAt.Format("Jan 2 15:04"))
	}

	return fmt.Sprintf("  %s %s %s",
		m.styles.Subtle.Render("budget"), m.budget.ViewAs(ratio), label)
}

func (m *Model) renderRate() string {
	if len(m.history) < 2 {
		return ""
	}

	width := m.contentWidth() - 12
	if width < 20 {
		width = 20
	}
	graph := asciigraph.Plot(m.history,
		asciigraph.Height(4),
		asciigraph.Width(width),
		asciigraph.Caption(fmt.Sprintf("tokens per %s poll", m.interval)),
	)
	return m.styles.Card.Width(m.contentWidth()).Render(graph)
}

func (m *Model) renderSessions() string {
	rows := m.snap.Sessions

	var b strings.Builder
	b.WriteString(m.styles.CardTitle.Render("Sessions"))
	b.WriteString("\n")

	if len(rows) == 0 {
		b.WriteString(m.styles.Subtle.Render("no sessions yet"))
		return m.styles.Card.Width(m.contentWidth()).Render(b.String())
	}

	head := fmt.Sprintf("  %-*s %-14s %6s %10s %10s  %s",
		maxNameWidth, "SESSION", "MODEL", "CALLS", "TOKENS", "COST", "STATUS")
	b.WriteString(m.styles.TableHead.Render(head))
	b.WriteString("\n")

	for i, row := range rows {
		b.WriteString(m.renderSessionRow(row, i == m.selected))
		if i < len(rows)-1 {
			b.WriteString("\n")
		}
	}
	if m.snap.Truncated > 0 {
		b.WriteString("\n")
		b.WriteString(m.styles.Subtle.Render(
			fmt.Sprintf("  … %d older sessions not shown", m.snap.Truncated)))
	}

	return m.styles.Card.Width(m.contentWidth()).Render(b.String())
}

func (m *Model) renderSessionRow(row SessionRow, selected bool) string {
	prefix := "  "
	if selected {
		prefix = m.styles.Selected.Render("▸ ")
	}

	name := fmt.Sprintf("%-*s", maxNameWidth, truncate(row.Name(), maxNameWidth))
	if selected {
		name = m.styles.Selected.Render(name)
	}

	tokens := fmt.Sprintf("%10s", humanize.Comma(int64(row.TotalTokens)))
	if row.OverThreshold() {
		tokens = m.styles.Warning.Render(tokens)
	}

	status := m.styles.Success.Render("active")
	switch {
	case row.Ended:
		status = m.styles.Subtle.Render("ended")
	case row.OverThreshold():
		status = m.styles.Warning.Render("over threshold")
	}

	return fmt.Sprintf("%s%s %-14s %6d %s %10s  %s",
		prefix,
		name,
		truncate(row.Model, 14),
		row.Calls,
		tokens,
		"$"+fmt.Sprintf("%.4f", row.TotalCost),
		status,
	)
}

func (m *Model) renderHelp() string {
	bindings := []struct {
		key  string
		desc string
	}{
		{m.keymap.Quit.Help().Key, m.keymap.Quit.Help().Desc},
		{m.keymap.Refresh.Help().Key, m.keymap.Refresh.Help().Desc},
		{m.keymap.Period.Help().Key, m.keymap.Period.Help().Desc},
		{m.keymap.Up.Help().Key, m.keymap.Up.Help().Desc},
		{m.keymap.Down.Help().Key, m.keymap.Down.Help().Desc},
		{m.keymap.Help.Help().Key, m.keymap.Help.Help().Desc},
	}

	var lines []string
	lines = append(lines, m.styles.CardTitle.Render("Keys"))
	for _, b := range bindings {
		lines = append(lines, fmt.Sprintf("  %-8s %s", b.key, b.desc))
	}
	return m.styles.Card.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderFooter() string {
	return "  " + m.styles.Help.Render("q quit · r refresh · p period · ↑/↓ select · ? help")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
