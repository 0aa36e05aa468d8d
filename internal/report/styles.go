package report

import "github.com/charmbracelet/lipgloss"

// Palette holds the colors used for terminal output.
type Palette struct {
	Primary   string `json:"primary"`
	Success   string `json:"success"`
	Warning   string `json:"warning"`
	Error     string `json:"error"`
	TextMuted string `json:"textMuted"`
}

// DefaultPalette is the dark palette.
var DefaultPalette = Palette{
	Primary:   "#7C3AED", // Purple
	Success:   "#10B981", // Green
	Warning:   "#F59E0B", // Amber
	Error:     "#EF4444", // Red
	TextMuted: "#6B7280",
}

// Styles are the lipgloss styles derived from a Palette.
type Styles struct {
	Title   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Label   lipgloss.Style
}

// NewStyles builds styles from p. With plain set every style renders text
// unchanged.
func NewStyles(p Palette, plain bool) Styles {
	if plain {
		s := lipgloss.NewStyle()
		return Styles{Title: s, Success: s, Warning: s, Error: s, Muted: s, Label: s}
	}
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.Primary)),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Success)).
			Bold(true),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Warning)).
			Bold(true),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Error)).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.TextMuted)),
		Label: lipgloss.NewStyle().
			Width(10),
	}
}
