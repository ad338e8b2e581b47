package tui

import "github.com/charmbracelet/lipgloss"

var (
	accentColor  = lipgloss.Color("#8BC34A")
	mutedColor   = lipgloss.Color("#6b7280")
	borderColor  = lipgloss.Color("#2a3850")
	warningColor = lipgloss.Color("#FFC107")
	errorColor   = lipgloss.Color("#e53935")
	selectColor  = lipgloss.Color("#1e3a5f")
)

// Styles groups the lipgloss styles of the three panes.
type Styles struct {
	Pane        lipgloss.Style
	FocusedPane lipgloss.Style
	Title       lipgloss.Style
	Muted       lipgloss.Style
	Selected    lipgloss.Style
	Cursor      lipgloss.Style
	Marked      lipgloss.Style
	Chip        lipgloss.Style
	User        lipgloss.Style
	Assistant   lipgloss.Style
	Citation    lipgloss.Style
	Status      lipgloss.Style
	Error       lipgloss.Style
	Affordance  lipgloss.Style
}

// DefaultStyles returns the dark palette.
func DefaultStyles() Styles {
	pane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1)
	return Styles{
		Pane:        pane,
		FocusedPane: pane.BorderForeground(accentColor),
		Title:       lipgloss.NewStyle().Bold(true).Foreground(accentColor),
		Muted:       lipgloss.NewStyle().Foreground(mutedColor),
		Selected:    lipgloss.NewStyle().Bold(true).Foreground(accentColor),
		Cursor:      lipgloss.NewStyle().Reverse(true),
		Marked:      lipgloss.NewStyle().Background(selectColor),
		Chip:        lipgloss.NewStyle().Foreground(warningColor),
		User:        lipgloss.NewStyle().Bold(true),
		Assistant:   lipgloss.NewStyle().Foreground(accentColor),
		Citation:    lipgloss.NewStyle().Foreground(mutedColor).Italic(true),
		Status:      lipgloss.NewStyle().Foreground(mutedColor),
		Error:       lipgloss.NewStyle().Foreground(errorColor),
		Affordance:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#101F38")).Background(accentColor).Padding(0, 1),
	}
}
