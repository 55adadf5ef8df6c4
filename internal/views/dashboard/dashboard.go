// Package dashboard renders a running conversion job: a spring-animated
// progress bar, a stats row, the finished posts and, once the job ends, a
// markdown summary.
package dashboard

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/GChainey/substackToKindle/internal/job"
	"github.com/GChainey/substackToKindle/internal/theme"
)

const (
	fps          = 60
	maxListed    = 8
	settleEpsilon = 0.001
)

// FrameMsg advances the progress animation by one frame.
type FrameMsg struct{}

// Model holds the dashboard state.
type Model struct {
	Width int

	state job.State
	mode  string
	title string

	bar     progress.Model
	spring  harmonica.Spring
	shown   float64
	vel     float64
	target  float64
	playing bool

	style   string
	summary string
}

// New creates a dashboard that renders its summary with the named glamour
// standard style.
func New(style string) Model {
	return Model{
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.9),
		style:  style,
		mode:   "idle",
	}
}

// Reset clears everything shown for the previous job.
func (m *Model) Reset(title string) {
	*m = Model{
		Width:  m.Width,
		bar:    m.bar,
		spring: m.spring,
		style:  m.style,
		title:  title,
		mode:   "connecting",
		state:  job.NewState(),
	}
}

// SetState replaces the displayed state and starts the bar animation when
// the target moved.
func (m *Model) SetState(st job.State, mode string) tea.Cmd {
	m.state = st
	m.mode = mode
	if st.Status.Terminal() && m.summary == "" {
		m.summary = render(Summary(m.title, st), m.style, max(m.Width-4, 40))
	}
	target := st.Percent()
	if st.Status == job.Completed {
		target = 1
	}
	if target == m.target {
		return nil
	}
	m.target = target
	if m.playing {
		return nil
	}
	m.playing = true
	return frame()
}

// Shown is the percentage currently drawn, trailing the target while the
// spring settles.
func (m Model) Shown() float64 { return m.shown }

// Animating reports whether frames are still being scheduled.
func (m Model) Animating() bool { return m.playing }

// Update handles animation frames.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(FrameMsg); !ok || !m.playing {
		return m, nil
	}
	m.shown, m.vel = m.spring.Update(m.shown, m.vel, m.target)
	if math.Abs(m.shown-m.target) < settleEpsilon && math.Abs(m.vel) < settleEpsilon {
		m.shown, m.vel = m.target, 0
		m.playing = false
		return m, nil
	}
	return m, frame()
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{} })
}

// View renders the dashboard.
func (m Model) View() string {
	width := max(m.Width, 40)
	st := m.state

	m.bar.Width = max(width-12, 10)
	pct := lipgloss.NewStyle().Foreground(theme.StatusColor(string(st.Status))).
		Render(fmt.Sprintf(" %3.0f%%", math.Min(m.shown, 1)*100))

	sections := []string{
		m.renderStatsRow(width),
		"  " + m.bar.ViewAs(clamp01(m.shown)) + pct,
	}
	if st.CurrentItem != "" && !st.Status.Terminal() {
		sections = append(sections, theme.StyleDimmed.Render("  converting: ")+theme.Truncate(st.CurrentItem, width-16))
	}
	if st.Error != "" {
		sections = append(sections, theme.StyleError.Render("  error: "+st.Error))
	}
	sections = append(sections, m.renderCompleted(width))
	if len(st.Warnings) > 0 {
		sections = append(sections, m.renderWarnings(width))
	}
	if m.summary != "" {
		sections = append(sections, m.summary)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderStatsRow(width int) string {
	st := m.state
	statStyle := lipgloss.NewStyle().Padding(0, 1)
	total := "?"
	if st.Total > 0 {
		total = fmt.Sprintf("%d", st.Total)
	}

	stats := []string{
		statStyle.Foreground(theme.StatusColor(string(st.Status))).
			Render(theme.StatusGlyph(string(st.Status)) + " " + string(st.Status)),
		statStyle.Foreground(theme.ColorBright).
			Render(fmt.Sprintf("Progress: %d/%s", st.Progress, total)),
		statStyle.Foreground(theme.ColorCompleted).
			Render(fmt.Sprintf("EPUBs: %d", len(st.Completed))),
		statStyle.Foreground(theme.ColorWarning).
			Render(fmt.Sprintf("Warnings: %d", len(st.Warnings))),
		statStyle.Foreground(theme.ModeColor(m.mode)).
			Render("via " + m.mode),
	}
	content := strings.Join(stats, lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | "))

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func (m Model) renderCompleted(width int) string {
	header := theme.StyleHeader.Render("  Finished posts")
	items := m.state.Completed
	if len(items) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render("  None yet"))
	}

	colTitle := max(width-20, 20)
	dim := lipgloss.NewStyle().Foreground(theme.ColorDimmed)
	lines := []string{
		header,
		dim.Render(fmt.Sprintf("  %-4s %-*s %6s", "#", colTitle, "Title", "Images")),
	}
	start := max(len(items)-maxListed, 0)
	if start > 0 {
		lines = append(lines, dim.Render(fmt.Sprintf("  … %d earlier", start)))
	}
	for i := start; i < len(items); i++ {
		it := items[i]
		label := it.Label
		if label == "" {
			label = it.ID
		}
		lines = append(lines, fmt.Sprintf("  %-4d %s %6d",
			i+1,
			lipgloss.NewStyle().Width(colTitle).Render(theme.Truncate(label, colTitle)),
			it.Metric))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderWarnings(width int) string {
	lines := []string{theme.StyleWarning.Render(fmt.Sprintf("  Warnings (%d)", len(m.state.Warnings)))}
	for _, w := range m.state.Warnings {
		lines = append(lines, theme.StyleDimmed.Render("  • "+theme.Truncate(w, width-6)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Summary is the markdown shown once a job ends.
func Summary(title string, st job.State) string {
	var b strings.Builder
	switch st.Status {
	case job.Completed:
		fmt.Fprintf(&b, "## %s ready\n\n", plural(len(st.Completed), "EPUB"))
	case job.Failed:
		b.WriteString("## Conversion failed\n\n")
		if st.Error != "" {
			fmt.Fprintf(&b, "> %s\n\n", st.Error)
		}
	default:
		return ""
	}
	if title != "" {
		fmt.Fprintf(&b, "From **%s**.\n\n", title)
	}
	if len(st.Warnings) > 0 {
		fmt.Fprintf(&b, "%s raised along the way.\n\n", plural(len(st.Warnings), "warning"))
	}
	if st.Status == job.Completed {
		b.WriteString("Press `D` to download the zip or `K` to send it to your Kindle.\n")
	}
	return b.String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func render(md, style string, wrap int) string {
	if md == "" {
		return ""
	}
	if style == "" {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle(style), glamour.WithWordWrap(wrap))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}
