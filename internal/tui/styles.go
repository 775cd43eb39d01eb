package tui

import "github.com/charmbracelet/lipgloss"

// Styles defines the monitor color scheme and layout styles.
type Styles struct {
	Title     lipgloss.Style
	Subtle    lipgloss.Style
	Highlight lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style

	Card      lipgloss.Style
	CardTitle lipgloss.Style
	TableHead lipgloss.Style
	Selected  lipgloss.Style
	Help      lipgloss.Style
}

// DefaultStyles returns the default monitor styles.
func DefaultStyles() Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	success := lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warning := lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#FF8C00"}
	errColor := lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"}

	s := Styles{}
	s.Title = lipgloss.NewStyle().Bold(true).Foreground(highlight)
	s.Subtle = lipgloss.NewStyle().Foreground(subtle)
	s.Highlight = lipgloss.NewStyle().Foreground(highlight)
	s.Success = lipgloss.NewStyle().Foreground(success)
	s.Warning = lipgloss.NewStyle().Foreground(warning)
	s.Error = lipgloss.NewStyle().Foreground(errColor)

	s.Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(subtle).
		Padding(0, 1)
	s.CardTitle = lipgloss.NewStyle().Bold(true).Foreground(highlight)
	s.TableHead = lipgloss.NewStyle().Bold(true).Foreground(subtle)
	s.Selected = lipgloss.NewStyle().Bold(true).Foreground(highlight)
	s.Help = lipgloss.NewStyle().Foreground(subtle)

	return s
}
