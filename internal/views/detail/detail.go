// Package detail renders the post info flyout overlay.
package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/GChainey/substackToKindle/internal/client"
	"github.com/GChainey/substackToKindle/internal/theme"
)

const (
	panelWidth   = 64
	labelWidth   = 12
	wordsPerMin  = 238
	defaultStyle = "dark"
)

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(labelWidth)

	styleValue = lipgloss.NewStyle().
			Foreground(theme.ColorBright)

	styleFooter = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)
)

// Model holds the state for the detail overlay.
type Model struct {
	Subdomain string
	Post      *client.Post
	Selected  bool

	body string
}

// New creates a detail model for p and renders its summary with glamour
// using the named standard style ("dark", "light", "notty", ...).
func New(subdomain string, p client.Post, selected bool, style string) Model {
	m := Model{Subdomain: subdomain, Post: &p, Selected: selected}
	m.body = render(Markdown(subdomain, p), style)
	return m
}

// View renders the detail panel. Returns an empty string if no post is set.
func (m Model) View() string {
	if m.Post == nil {
		return ""
	}
	p := m.Post

	var b strings.Builder
	b.WriteString(m.body)
	b.WriteString("\n")
	writeRow(&b, "Slug", theme.Truncate(p.Slug, panelWidth-labelWidth-4))
	if p.Paid() {
		writeRow(&b, "Audience", theme.PaidBadge()+" paid subscribers")
	}
	sel := "no"
	if m.Selected {
		sel = lipgloss.NewStyle().Foreground(theme.ColorSelected).Render("yes")
	}
	writeRow(&b, "Selected", sel)
	b.WriteString("\n")
	b.WriteString(styleFooter.Render("[space] toggle  [esc] close"))

	return stylePanel.Width(panelWidth).Render(b.String())
}

// Markdown is the summary rendered in the overlay.
func Markdown(subdomain string, p client.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Title)
	if p.Subtitle != "" {
		fmt.Fprintf(&b, "*%s*\n\n", p.Subtitle)
	}
	if p.Date != "" {
		fmt.Fprintf(&b, "- **Published:** %s\n", FormatDate(p.Date))
	}
	if p.WordCount > 0 {
		fmt.Fprintf(&b, "- **Length:** %d words, about %d min read\n", p.WordCount, ReadingMinutes(p.WordCount))
	}
	if p.Paid() {
		b.WriteString("- **Audience:** paid subscribers only\n")
	}
	if subdomain != "" && p.Slug != "" {
		fmt.Fprintf(&b, "\nhttps://%s.substack.com/p/%s\n", subdomain, p.Slug)
	}
	return b.String()
}

// ReadingMinutes estimates reading time, rounding up.
func ReadingMinutes(words int) int {
	if words <= 0 {
		return 0
	}
	return (words + wordsPerMin - 1) / wordsPerMin
}

// FormatDate shows RFC 3339 timestamps as "2 Jan 2006"; anything else is
// returned unchanged.
func FormatDate(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Format("2 Jan 2006")
}

func render(md, style string) string {
	if style == "" {
		style = defaultStyle
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(panelWidth-4),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(styleLabel.Render(label+":") + styleValue.Render(value) + "\n")
}
