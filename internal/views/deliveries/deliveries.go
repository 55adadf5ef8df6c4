// Package deliveries provides the delivery history overlay: past downloads
// and Kindle sends, newest first, optionally limited to one newsletter.
package deliveries

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/GChainey/substackToKindle/internal/history"
	"github.com/GChainey/substackToKindle/internal/theme"
)

const visibleRows = 12

// LoadedMsg is returned after reading the history file.
type LoadedMsg struct {
	Records []history.Record
	Err     error
}

// ClearedMsg is returned after the history file was emptied.
type ClearedMsg struct {
	Err error
}

// KeyMap holds the overlay's key bindings.
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Filter  key.Binding
	Clear   key.Binding
	Confirm key.Binding
}

// DefaultKeyMap returns the default history key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next"),
		),
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "this newsletter / all"),
		),
		Clear: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "clear history"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "confirm"),
		),
	}
}

// Model is the history overlay model.
type Model struct {
	log  *history.Log
	keys KeyMap

	records   []history.Record
	subdomain string
	onlyThis  bool
	idx       int
	loading   bool
	confirm   bool
	statusMsg string
}

// New creates the overlay backed by log.
func New(log *history.Log) Model {
	return Model{log: log, keys: DefaultKeyMap()}
}

// Open resets the overlay for subdomain and starts loading. With a
// subdomain the list starts filtered to it.
func (m Model) Open(subdomain string) (Model, tea.Cmd) {
	m.subdomain = subdomain
	m.onlyThis = subdomain != ""
	m.idx = 0
	m.confirm = false
	m.statusMsg = ""
	m.loading = true
	return m, m.load()
}

func (m Model) load() tea.Cmd {
	log, filter := m.log, ""
	if m.onlyThis {
		filter = m.subdomain
	}
	return func() tea.Msg {
		recs, err := log.Records(filter)
		return LoadedMsg{Records: recs, Err: err}
	}
}

// Records returns what is currently listed.
func (m Model) Records() []history.Record { return m.records }

// Update handles messages for the overlay.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.statusMsg = "Error: " + msg.Err.Error()
			return m, nil
		}
		m.records = msg.Records
		m.idx = min(m.idx, max(len(m.records)-1, 0))
		return m, nil

	case ClearedMsg:
		if msg.Err != nil {
			m.statusMsg = "Error: " + msg.Err.Error()
			return m, nil
		}
		m.records = nil
		m.idx = 0
		m.statusMsg = "History cleared"
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.confirm {
		m.confirm = false
		if key.Matches(msg, m.keys.Confirm) {
			log := m.log
			return m, func() tea.Msg { return ClearedMsg{Err: log.Clear()} }
		}
		m.statusMsg = ""
		return m, nil
	}
	m.statusMsg = ""

	switch {
	case key.Matches(msg, m.keys.Down):
		if n := len(m.records); n > 0 {
			m.idx = (m.idx + 1) % n
		}
	case key.Matches(msg, m.keys.Up):
		if n := len(m.records); n > 0 {
			m.idx = (m.idx - 1 + n) % n
		}
	case key.Matches(msg, m.keys.Filter):
		if m.subdomain == "" {
			break
		}
		m.onlyThis = !m.onlyThis
		m.loading = true
		return m, m.load()
	case key.Matches(msg, m.keys.Clear):
		if len(m.records) > 0 {
			m.confirm = true
			m.statusMsg = "Clear all delivery history? [y/N]"
		}
	}
	return m, nil
}

// View renders the overlay.
func (m Model) View() string {
	if m.loading {
		return theme.StyleBorder.Padding(1, 2).Render("Loading history...")
	}

	scope := "all newsletters"
	if m.onlyThis {
		scope = m.subdomain
	}
	header := theme.StyleHeader.Render(fmt.Sprintf("  DELIVERIES  (%s, %d)", scope, len(m.records)))

	var rows []string
	if len(m.records) == 0 {
		rows = append(rows, theme.StyleDimmed.Render("  Nothing delivered yet."))
	}
	start := max(0, min(m.idx-visibleRows/2, len(m.records)-visibleRows))
	end := min(start+visibleRows, len(m.records))
	for i := start; i < end; i++ {
		rows = append(rows, renderRecord(m.records[i], i == m.idx))
	}
	if len(m.records) > 0 {
		rows = append(rows, "", renderTitles(m.records[m.idx]))
	}

	help := theme.StyleDimmed.Render("  j/k: move  f: scope  X: clear  esc: close")
	sections := []string{header, ""}
	sections = append(sections, rows...)
	sections = append(sections, "", help)
	if m.statusMsg != "" {
		sections = append(sections, theme.StyleWarning.Render("  "+m.statusMsg))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Padding(0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func renderRecord(r history.Record, selected bool) string {
	prefix := "  "
	if selected {
		prefix = "> "
	}
	method := "download"
	if r.Method == history.MethodKindle {
		method = "kindle → " + r.KindleEmail
	}
	line := fmt.Sprintf("%s%s  %-16s %3d posts  %s",
		prefix,
		r.Timestamp.Local().Format("2006-01-02 15:04"),
		theme.Truncate(r.Subdomain, 16),
		r.PostCount,
		method)
	if selected {
		return theme.StyleSelected.Render(line)
	}
	return line
}

func renderTitles(r history.Record) string {
	const shown = 5
	titles := r.PostTitles
	more := 0
	if len(titles) > shown {
		more = len(titles) - shown
		titles = titles[:shown]
	}
	var b strings.Builder
	for _, t := range titles {
		b.WriteString(theme.StyleDimmed.Render("    • "+theme.Truncate(t, 56)) + "\n")
	}
	if more > 0 {
		b.WriteString(theme.StyleDimmed.Render(fmt.Sprintf("    … and %d more", more)))
	}
	return strings.TrimRight(b.String(), "\n")
}
