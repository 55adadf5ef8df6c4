// Package status renders the top bar: newsletter, stream modes and transport.
package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/GChainey/substackToKindle/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Subdomain    string
	Transport    string
	CatalogMode  string
	JobMode      string
	PollFailures int
	Layout       string
	Width        int
}

// New creates a status bar model.
func New(transport string) Model {
	return Model{Transport: transport, CatalogMode: "idle", JobMode: "idle"}
}

// View renders the status bar.
func (m Model) View() string {
	width := max(m.Width, 40)
	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")

	brand := theme.StyleHeader.Render("stk")
	sub := theme.StyleDimmed.Render("no newsletter")
	if m.Subdomain != "" {
		sub = lipgloss.NewStyle().Foreground(theme.ColorBright).Render(m.Subdomain + ".substack.com")
	}

	content := brand + sep + sub +
		sep + modeLabel("catalog", m.CatalogMode) +
		sep + modeLabel("job", m.JobMode)
	if m.PollFailures > 0 {
		content += " " + theme.StyleWarning.Render(fmt.Sprintf("(%d poll failures)", m.PollFailures))
	}
	content += sep + theme.StyleDimmed.Render("via "+m.Transport)
	if m.Layout != "" {
		content += sep + theme.StyleDimmed.Render(m.Layout)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func modeLabel(name, mode string) string {
	glyph := "○"
	switch mode {
	case "streaming", "polling", "connecting":
		glyph = "●"
	case "finished":
		glyph = "✓"
	case "failed":
		glyph = "✗"
	}
	return lipgloss.NewStyle().Foreground(theme.ModeColor(mode)).Render(fmt.Sprintf("%s %s %s", glyph, name, mode))
}
