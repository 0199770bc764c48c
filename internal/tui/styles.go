package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/momoosa/stride/internal/goals"
)

// Styles holds the lipgloss styles for the watch view, derived from a goal
// theme so the active goal's colors lead the screen.
type Styles struct {
	Title    lipgloss.Style
	Selected lipgloss.Style
	Dimmed   lipgloss.Style
	Elapsed  lipgloss.Style
	Target   lipgloss.Style
	Badge    lipgloss.Style
	Help     lipgloss.Style
}

// NewStyles builds styles from a theme.
func NewStyles(theme goals.Theme) Styles {
	primary := lipgloss.Color(theme.Primary)
	secondary := lipgloss.Color(theme.Secondary)
	accent := lipgloss.Color(theme.Accent)
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(primary),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(secondary),
		Dimmed:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Elapsed:  lipgloss.NewStyle().Foreground(secondary),
		Target:   lipgloss.NewStyle().Foreground(accent),
		Badge:    lipgloss.NewStyle().Foreground(accent).Bold(true),
		Help:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true),
	}
}
