package tui

import "github.com/charmbracelet/lipgloss"

var (
	// TitleStyle styles view headings.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// HeaderStyle styles table header rows.
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	// FaintStyle dims secondary text.
	FaintStyle = lipgloss.NewStyle().Faint(true)

	statusStyles = map[string]lipgloss.Style{
		// Terminal states
		"done":     lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"complete": lipgloss.NewStyle().Foreground(lipgloss.Color("2")),

		// Active states
		"scanning":     lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"selecting":    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"merging":      lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"encoding":     lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"watermarking": lipgloss.NewStyle().Foreground(lipgloss.Color("4")),

		// Early stop / warning
		"stopping": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"stopped":  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"skipped":  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),

		// Error
		"error":  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		"failed": lipgloss.NewStyle().Foreground(lipgloss.Color("1")),

		// Pending
		"pending": lipgloss.NewStyle().Faint(true),
	}
)

// StatusStyle returns the lipgloss style for the given status label.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
