// Package posts implements the scrollable archive list: one line per post
// with a selection checkbox, a paid badge, date and length.
package posts

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/GChainey/substackToKindle/internal/catalog"
	"github.com/GChainey/substackToKindle/internal/client"
	"github.com/GChainey/substackToKindle/internal/theme"
	"github.com/GChainey/substackToKindle/internal/views/detail"
)

const (
	dateWidth  = 12
	wordsWidth = 8
	minHeight  = 3
)

// Model holds the list view state.
type Model struct {
	all     []client.Post
	visible []client.Post
	query   string

	// Navigation state.
	SelectedIdx int

	// Layout dimensions.
	Width  int
	Height int
}

// New creates an empty list.
func New() Model {
	return Model{}
}

// SetPosts replaces the list. The cursor stays on the same post when it is
// still visible.
func (m *Model) SetPosts(posts []client.Post) {
	cur, ok := m.Current()
	m.all = posts
	m.refilter()
	if ok {
		m.focus(cur.Slug)
	}
	m.clampSelection()
}

// SetQuery filters the list by title or subtitle.
func (m *Model) SetQuery(q string) {
	if q == m.query {
		return
	}
	m.query = q
	m.refilter()
	m.SelectedIdx = 0
}

func (m Model) Query() string { return m.query }

// Visible returns the posts passing the current filter.
func (m Model) Visible() []client.Post { return m.visible }

// Total is the unfiltered post count.
func (m Model) Total() int { return len(m.all) }

// MoveDown advances the cursor, wrapping at the end.
func (m *Model) MoveDown() {
	if n := len(m.visible); n > 0 {
		m.SelectedIdx = (m.SelectedIdx + 1) % n
	}
}

// MoveUp moves the cursor back, wrapping at the start.
func (m *Model) MoveUp() {
	if n := len(m.visible); n > 0 {
		m.SelectedIdx = (m.SelectedIdx - 1 + n) % n
	}
}

// PageDown jumps a screen forward without wrapping.
func (m *Model) PageDown() {
	m.SelectedIdx += m.rows()
	m.clampSelection()
}

// PageUp jumps a screen back without wrapping.
func (m *Model) PageUp() {
	m.SelectedIdx = max(m.SelectedIdx-m.rows(), 0)
}

// Current returns the post under the cursor, if any.
func (m Model) Current() (client.Post, bool) {
	if m.SelectedIdx >= 0 && m.SelectedIdx < len(m.visible) {
		return m.visible[m.SelectedIdx], true
	}
	return client.Post{}, false
}

// View renders the visible window of the list. sel marks checkboxes;
// footer is shown below the rows (loading spinner or outcome).
func (m Model) View(sel *catalog.Selection, footer string) string {
	width := max(m.Width, 60)
	titleWidth := max(width-dateWidth-wordsWidth-14, 16)

	header := fmt.Sprintf("═══ POSTS %d", len(m.all))
	if m.query != "" {
		header += fmt.Sprintf("  (filter %q: %d shown)", m.query, len(m.visible))
	}
	header += " " + strings.Repeat("═", max(width-lipgloss.Width(header)-3, 4))
	lines := []string{theme.StyleHeader.Render(header)}

	if len(m.visible) == 0 {
		empty := "  No posts yet"
		if m.query != "" && len(m.all) > 0 {
			empty = "  No posts match the filter"
		}
		lines = append(lines, theme.StyleDimmed.Render(empty))
	}

	start, end := m.window()
	if start > 0 {
		lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("  ↑ %d more", start)))
	}
	for i := start; i < end; i++ {
		p := m.visible[i]
		lines = append(lines, renderLine(p, i == m.SelectedIdx, sel != nil && sel.Has(p.Slug), titleWidth))
	}
	if end < len(m.visible) {
		lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("  ↓ %d more", len(m.visible)-end)))
	}
	if footer != "" {
		lines = append(lines, footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderLine(p client.Post, cursor, selected bool, titleWidth int) string {
	prefix := "  "
	if cursor {
		prefix = "> "
	}
	box := "[ ]"
	if selected {
		box = lipgloss.NewStyle().Foreground(theme.ColorSelected).Render("[x]")
	}
	badge := "   "
	if p.Paid() {
		badge = theme.PaidBadge()
	}

	titleStyle := lipgloss.NewStyle().Foreground(theme.ColorDefault)
	if cursor {
		titleStyle = theme.StyleSelected
	}
	title := titleStyle.Width(titleWidth).Render(theme.Truncate(p.Title, titleWidth))
	date := theme.StyleDimmed.Width(dateWidth).Render(detail.FormatDate(p.Date))
	words := ""
	if p.WordCount > 0 {
		words = fmt.Sprintf("%dm", detail.ReadingMinutes(p.WordCount))
	}
	length := theme.StyleDimmed.Width(wordsWidth).Align(lipgloss.Right).Render(words)

	return prefix + box + " " + badge + " " + title + " " + date + length
}

// window returns the [start, end) range of rows that fit, keeping the
// cursor on screen.
func (m Model) window() (int, int) {
	n := len(m.visible)
	rows := m.rows()
	if n <= rows {
		return 0, n
	}
	start := max(m.SelectedIdx-rows/2, 0)
	end := min(start+rows, n)
	start = max(end-rows, 0)
	return start, end
}

func (m Model) rows() int {
	// Header, two scroll hints and the footer.
	return max(m.Height-4, minHeight)
}

func (m *Model) refilter() {
	m.visible = catalog.Filter(m.all, m.query)
}

func (m *Model) focus(slug string) {
	for i, p := range m.visible {
		if p.Slug == slug {
			m.SelectedIdx = i
			return
		}
	}
}

func (m *Model) clampSelection() {
	n := len(m.visible)
	if n == 0 {
		m.SelectedIdx = 0
	} else if m.SelectedIdx >= n {
		m.SelectedIdx = n - 1
	}
}
