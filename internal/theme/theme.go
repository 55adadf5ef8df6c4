// Package theme provides the Lip Gloss color palette and reusable styles
// for the stk TUI. It is a leaf package with no internal imports to avoid
// import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Job status colors.
var (
	ColorPending   = lipgloss.Color("#7c3aed")
	ColorRunning   = lipgloss.Color("#2563eb")
	ColorCompleted = lipgloss.Color("#16a34a")
	ColorFailed    = lipgloss.Color("#dc2626")
)

// Watcher mode colors.
var (
	ColorStreaming  = lipgloss.Color("#22c55e")
	ColorPolling    = lipgloss.Color("#d97706")
	ColorConnecting = lipgloss.Color("#06b6d4")
	ColorIdle       = lipgloss.Color("#4b5563")
)

// Post badges.
var (
	ColorPaid     = lipgloss.Color("#f59e0b")
	ColorSelected = lipgloss.Color("#a855f7")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// StatusColor returns the color for a job status label.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "pending":
		return ColorPending
	case "running":
		return ColorRunning
	case "completed":
		return ColorCompleted
	case "failed":
		return ColorFailed
	default:
		return ColorDefault
	}
}

// ModeColor returns the color for a watcher mode label.
func ModeColor(mode string) lipgloss.Color {
	switch mode {
	case "connecting":
		return ColorConnecting
	case "streaming":
		return ColorStreaming
	case "polling":
		return ColorPolling
	case "finished":
		return ColorHealthy
	case "failed":
		return ColorDanger
	default:
		return ColorIdle
	}
}

// StatusGlyph returns a Unicode glyph for a job status.
func StatusGlyph(status string) string {
	switch status {
	case "pending":
		return "◎"
	case "running":
		return "●>"
	case "completed":
		return "✓"
	case "failed":
		return "✗"
	default:
		return "·"
	}
}

// PaidBadge marks subscriber-only posts.
func PaidBadge() string {
	return lipgloss.NewStyle().Foreground(ColorPaid).Render("[$]")
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)

	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorWarning)
)

// Truncate shortens s to max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
