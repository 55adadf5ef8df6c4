// Package debug provides a scrollable overlay of stream and poll activity.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/GChainey/substackToKindle/internal/theme"
)

const capacity = 200

// Entry kinds.
const (
	KindOpen  = "open"
	KindEvent = "evt"
	KindDrop  = "drop"
	KindPoll  = "poll"
	KindError = "err"
	KindInfo  = "info"
)

var tallied = []string{KindEvent, KindDrop, KindPoll, KindError}

// Entry is one line of stream activity. Stream is empty for app-level lines.
type Entry struct {
	Time    time.Time
	Stream  string
	Kind    string
	Message string
}

// Model is the activity log: a capped buffer viewed from the bottom, with
// an optional stream filter.
type Model struct {
	Entries []Entry

	// Offset counts visible lines hidden below the viewport.
	Offset int
	// Streams lists the filter values CycleStream walks; "" shows all.
	Streams []string

	filter int
	now    func() time.Time
}

// New returns an empty log whose filter cycles through all, then each of
// streams.
func New(streams ...string) Model {
	return Model{Streams: append([]string{""}, streams...), now: time.Now}
}

// Add records one line and snaps the view back to the newest entry.
func (m *Model) Add(stream, kind, message string) {
	at := time.Now()
	if m.now != nil {
		at = m.now()
	}
	m.Entries = append(m.Entries, Entry{Time: at, Stream: stream, Kind: kind, Message: message})
	if over := len(m.Entries) - capacity; over > 0 {
		m.Entries = append(m.Entries[:0:0], m.Entries[over:]...)
	}
	m.Offset = 0
}

// Addf is Add with a format string.
func (m *Model) Addf(stream, kind, format string, args ...any) {
	m.Add(stream, kind, fmt.Sprintf(format, args...))
}

// Count returns how many buffered entries match stream and kind. An empty
// stream matches every stream.
func (m Model) Count(stream, kind string) int {
	n := 0
	for _, e := range m.Entries {
		if e.Kind == kind && (stream == "" || e.Stream == stream) {
			n++
		}
	}
	return n
}

// Stream is the active filter, "" when showing everything.
func (m Model) Stream() string {
	if len(m.Streams) == 0 {
		return ""
	}
	return m.Streams[m.filter%len(m.Streams)]
}

// CycleStream moves to the next filter value.
func (m *Model) CycleStream() {
	if len(m.Streams) > 0 {
		m.filter = (m.filter + 1) % len(m.Streams)
	}
	m.Offset = 0
}

func (m Model) visible() []Entry {
	want := m.Stream()
	if want == "" {
		return m.Entries
	}
	var out []Entry
	for _, e := range m.Entries {
		if e.Stream == want || e.Stream == "" {
			out = append(out, e)
		}
	}
	return out
}

// ScrollUp reveals older entries.
func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.visible())-1, 0))
}

// ScrollDown moves back toward the newest entry.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// View renders the log panel at the given outer size.
func (m Model) View(width, height int) string {
	inner := max(width-4, 20)
	rows := max(height-7, 3)

	scope := "all streams"
	if s := m.Stream(); s != "" {
		scope = s + " stream"
	}
	header := theme.StyleHeader.Render(" EVENT LOG ") + theme.StyleDimmed.Render("  "+scope)

	entries := m.visible()
	var body string
	if len(entries) == 0 {
		body = theme.StyleDimmed.Render("\n  Nothing recorded yet.\n")
	} else {
		end := max(len(entries)-m.Offset, 0)
		lines := make([]string, 0, rows)
		for _, e := range entries[max(end-rows, 0):end] {
			lines = append(lines, renderEntry(e, inner))
		}
		body = strings.Join(lines, "\n")
	}

	footer := m.tally()
	if m.Offset > 0 {
		footer += theme.StyleDimmed.Render(fmt.Sprintf("   ↓ %d newer", m.Offset))
	}

	return lipgloss.NewStyle().
		Width(inner).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, body, "", footer))
}

func (m Model) tally() string {
	parts := make([]string, 0, len(tallied))
	for _, kind := range tallied {
		parts = append(parts, lipgloss.NewStyle().Foreground(kindColor(kind)).
			Render(fmt.Sprintf("%s %d", kind, m.Count(m.Stream(), kind))))
	}
	return strings.Join(parts, theme.StyleDimmed.Render(" · "))
}

func renderEntry(e Entry, width int) string {
	stream := e.Stream
	if stream == "" {
		stream = "app"
	}
	prefix := fmt.Sprintf("%s %-7s ", e.Time.Format("15:04:05.000"), stream)
	kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(5).Render(e.Kind)
	room := width - len(prefix) - 6
	return theme.StyleDimmed.Render(prefix) + kind + " " + theme.Truncate(e.Message, max(room, 8))
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case KindOpen:
		return theme.ColorConnecting
	case KindEvent:
		return theme.ColorStreaming
	case KindPoll:
		return theme.ColorPolling
	case KindDrop:
		return theme.ColorWarning
	case KindError:
		return theme.ColorDanger
	default:
		return theme.ColorDimmed
	}
}
