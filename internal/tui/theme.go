package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual style for the TUI.
type Theme struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Normal      lipgloss.Style
	Bold        lipgloss.Style
	Muted       lipgloss.Style
	Selected    lipgloss.Style
	Box         lipgloss.Style
	Success     lipgloss.Style
	Warning     lipgloss.Style
	Error       lipgloss.Style
	ProgressBar lipgloss.Style
}

// DefaultTheme returns the default theme.
func DefaultTheme() Theme {
	return Theme{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#fafafa")).
			MarginBottom(1),
		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a3a3a3")),
		Normal: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fafafa")),
		Bold: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#fafafa")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#737373")),
		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color("#5b8def")).
			Foreground(lipgloss.Color("#fafafa")).
			Bold(true),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#404040")).
			Padding(1, 2),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10b981")),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f59e0b")),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ef4444")),
		ProgressBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5b8def")),
	}
}
