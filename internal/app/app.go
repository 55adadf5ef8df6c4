package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"pkt.systems/pslog"

	"github.com/GChainey/substackToKindle/internal/catalog"
	"github.com/GChainey/substackToKindle/internal/client"
	"github.com/GChainey/substackToKindle/internal/deliver"
	"github.com/GChainey/substackToKindle/internal/history"
	"github.com/GChainey/substackToKindle/internal/job"
	"github.com/GChainey/substackToKindle/internal/logx"
	"github.com/GChainey/substackToKindle/internal/poller"
	"github.com/GChainey/substackToKindle/internal/prefs"
	"github.com/GChainey/substackToKindle/internal/stream"
	"github.com/GChainey/substackToKindle/internal/theme"
	"github.com/GChainey/substackToKindle/internal/views/dashboard"
	"github.com/GChainey/substackToKindle/internal/views/debug"
	"github.com/GChainey/substackToKindle/internal/views/deliveries"
	"github.com/GChainey/substackToKindle/internal/views/detail"
	"github.com/GChainey/substackToKindle/internal/views/posts"
	"github.com/GChainey/substackToKindle/internal/views/status"
	"github.com/GChainey/substackToKindle/internal/watch"
)

// Screen is the main view being shown.
type Screen int

const (
	ScreenInput Screen = iota
	ScreenCatalog
	ScreenJob
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDetail
	OverlayHistory
	OverlayDebug
)

type prompt int

const (
	promptNone prompt = iota
	promptFilter
	promptCookie
	promptEmail
)

const checkoutWidth = 34

var (
	loadHelp    = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "load"))
	confirmHelp = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm"))
	streamHelp  = key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "stream"))
)

// API is everything the TUI asks of the backend.
type API interface {
	watch.JobAPI
	watch.CatalogAPI
	CheckSubdomain(ctx context.Context, subdomain string) (*client.CheckResponse, error)
	CreateJob(ctx context.Context, subdomain string, slugs []string, sessionCookie string) (string, error)
	EmailStatus(ctx context.Context) (*client.EmailStatus, error)
	SendToKindle(ctx context.Context, jobID, kindleEmail string) (*client.SendToKindleResponse, error)
	Download(ctx context.Context, jobID string, w io.Writer) (int64, error)
}

// Options wires the model to its collaborators. Preferences are read from
// the context passed to New (see prefs.WithContext).
type Options struct {
	API          API
	Transport    stream.Transport
	PollInterval time.Duration
	Prefs        *prefs.Store
	History      *history.Log
	DownloadDir  string
	// GlamourStyle is the standard glamour style for markdown panels.
	GlamourStyle string
	// Subdomain, when set, is checked and loaded on start.
	Subdomain string
}

// --- messages ---

type checkedMsg struct {
	subdomain string
	resp      *client.CheckResponse
	err       error
}

type emailStatusMsg struct {
	configured bool
	err        error
}

type jobCreatedMsg struct {
	subdomain string
	titles    []string
	id        string
	err       error
}

type downloadedMsg struct {
	path  string
	bytes int64
	err   error
}

type sentMsg struct {
	email   string
	message string
	err     error
}

type recordedMsg struct {
	record history.Record
	err    error
}

type prefsSavedMsg struct {
	prefs prefs.Prefs
	err   error
}

// Model is the root Bubble Tea model.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    pslog.Logger

	api         API
	prefsStore  *prefs.Store
	history     *history.Log
	downloadDir string
	style       string

	keys   KeyMap
	width  int
	height int

	screen  Screen
	overlay Overlay
	prompt  prompt

	// Input screen.
	input    textinput.Model
	inputErr string
	checking bool

	// Catalog screen.
	subdomain   string
	catalog     *watch.Catalog
	selection   *catalog.Selection
	cookie      string
	promptInput textinput.Model
	queryBefore string

	// Job screen.
	job             *watch.Job
	jobSubdomain    string
	jobTitles       []string
	emailConfigured bool
	busy            bool

	notice    string
	noticeErr bool

	// Sub-views.
	statusBar  status.Model
	list       posts.Model
	dash       dashboard.Model
	detail     detail.Model
	deliveries deliveries.Model
	events     debug.Model
	spinner    spinner.Model
}

// New creates the root model. ctx carries the logger and the preferences.
func New(ctx context.Context, opts Options) Model {
	ctx, cancel := context.WithCancel(ctx)
	if opts.Transport == nil {
		opts.Transport = &stream.SSE{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = poller.DefaultInterval
	}
	if opts.History == nil {
		opts.History = history.New("", 0)
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = "."
	}

	in := textinput.New()
	in.Prompt = "substack › "
	in.Placeholder = "newsletter name or https://name.substack.com"
	in.CharLimit = 200
	in.Width = 48
	in.SetValue(opts.Subdomain)
	in.Focus()

	pi := textinput.New()
	pi.CharLimit = 4096

	return Model{
		ctx:         ctx,
		cancel:      cancel,
		log:         logx.Ctx(ctx),
		api:         opts.API,
		prefsStore:  opts.Prefs,
		history:     opts.History,
		downloadDir: opts.DownloadDir,
		style:       opts.GlamourStyle,
		keys:        DefaultKeyMap(),
		input:       in,
		promptInput: pi,
		catalog:     watch.NewCatalog(ctx, opts.API, opts.Transport),
		job:         watch.NewJob(ctx, opts.API, opts.Transport, opts.PollInterval),
		selection:   &catalog.Selection{},
		statusBar:   status.New(opts.Transport.Name()),
		list:        posts.New(),
		dash:        dashboard.New(opts.GlamourStyle),
		deliveries:  deliveries.New(opts.History),
		events:      debug.New(watch.JobStream, watch.CatalogStream),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

// Init asks whether Kindle delivery is available and, when a newsletter
// was given on the command line, checks it.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.fetchEmailStatus()}
	if sub, ok := client.ParseSubdomain(m.input.Value()); ok {
		cmds = append(cmds, m.check(sub), m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// Screen returns the main view being shown.
func (m Model) Screen() Screen { return m.screen }

// Overlay returns the active modal.
func (m Model) Overlay() Overlay { return m.overlay }

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case checkedMsg:
		return m.handleChecked(msg)

	case emailStatusMsg:
		if msg.err != nil {
			m.log.Warn("email status unavailable", "err", msg.err)
			return m, nil
		}
		m.emailConfigured = msg.configured
		return m, nil

	case stream.OpenedMsg, stream.EventMsg, stream.DroppedMsg,
		poller.TickMsg, poller.ResultMsg[client.JobStatusResponse]:
		return m.handleStream(msg)

	case jobCreatedMsg:
		return m.handleJobCreated(msg)

	case downloadedMsg:
		m.busy = false
		if msg.err != nil {
			m.log.Error("download failed", "job", m.job.JobID(), "err", msg.err)
			m.setNotice("Download failed: "+msg.err.Error(), true)
			return m, nil
		}
		m.log.Info("download saved", "job", m.job.JobID(), "path", msg.path, "bytes", msg.bytes)
		m.setNotice(fmt.Sprintf("Saved %s (%d bytes)", msg.path, msg.bytes), false)
		return m, m.record(history.MethodDownload, "")

	case sentMsg:
		m.busy = false
		if msg.err != nil {
			m.log.Error("send to kindle failed", "job", m.job.JobID(), "err", msg.err)
			m.setNotice("Send failed: "+msg.err.Error(), true)
			return m, nil
		}
		m.log.Info("sent to kindle", "job", m.job.JobID(), "email", msg.email)
		m.setNotice(msg.message, false)
		email := msg.email
		return m, tea.Batch(
			m.record(history.MethodKindle, email),
			m.savePrefs(func(p *prefs.Prefs) { p.KindleEmail = email }),
		)

	case recordedMsg:
		if msg.err != nil {
			m.log.Warn("history not saved", "err", msg.err)
			return m, nil
		}
		m.events.Addf("", debug.KindInfo, "recorded %s delivery of %d posts", msg.record.Method, msg.record.PostCount)
		return m, nil

	case prefsSavedMsg:
		if msg.err != nil {
			m.log.Warn("preferences not saved", "err", msg.err)
			m.setNotice("Could not save preferences: "+msg.err.Error(), true)
			return m, nil
		}
		m.ctx = prefs.WithContext(m.ctx, msg.prefs)
		m.syncStatus()
		m.resize(m.width, m.height)
		return m, nil

	case spinner.TickMsg:
		if !m.catalog.Mode().Active() && !m.checking && !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case dashboard.FrameMsg:
		var cmd tea.Cmd
		m.dash, cmd = m.dash.Update(msg)
		return m, cmd

	case deliveries.LoadedMsg, deliveries.ClearedMsg:
		var cmd tea.Cmd
		m.deliveries, cmd = m.deliveries.Update(msg)
		return m, cmd
	}

	return m.updateInputs(msg)
}

// updateInputs forwards cursor blinks to whichever text input has focus.
func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.prompt != promptNone:
		m.promptInput, cmd = m.promptInput.Update(msg)
	case m.screen == ScreenInput:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	m.statusBar.Width = w
	m.dash.Width = w
	m.input.Width = max(min(w-20, 60), 20)
	m.promptInput.Width = max(w-24, 20)

	listWidth := w
	if prefs.FromContext(m.ctx).Layout == prefs.LayoutCheckout {
		listWidth = w - checkoutWidth - 2
	}
	m.list.Width = listWidth
	// Status bar (3), help and notice lines, sticky bar (2).
	m.list.Height = max(h-9, 3)
}

func (m *Model) setNotice(s string, isErr bool) {
	m.notice, m.noticeErr = s, isErr
}

func (m *Model) syncStatus() {
	m.statusBar.Subdomain = m.subdomain
	m.statusBar.CatalogMode = m.catalog.Mode().String()
	m.statusBar.JobMode = m.job.Mode().String()
	m.statusBar.PollFailures = m.job.PollFailures()
	m.statusBar.Layout = string(prefs.FromContext(m.ctx).Layout)
}

// --- stream plumbing ---

// handleStream hands transport and poll messages to both watchers; each
// ignores what it does not own.
func (m Model) handleStream(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.trace(msg)
	wasActive := m.catalog.Mode().Active()
	cmds := []tea.Cmd{m.catalog.Update(msg), m.job.Update(msg)}

	m.list.SetPosts(m.catalog.State().Items)
	if wasActive && !m.catalog.Mode().Active() {
		st := m.catalog.State()
		if st.Error != "" {
			m.setNotice(st.Error, true)
		}
	}
	if m.job.JobID() != "" {
		cmds = append(cmds, m.dash.SetState(m.job.State(), m.job.Mode().String()))
	}
	m.syncStatus()
	return m, tea.Batch(cmds...)
}

// trace records stream and poll activity in the event log.
func (m *Model) trace(msg tea.Msg) {
	switch msg := msg.(type) {
	case stream.OpenedMsg:
		m.events.Addf(msg.Stream, debug.KindOpen, "connected (gen %d)", msg.Gen)
	case stream.EventMsg:
		m.events.Add(msg.Stream, debug.KindEvent, msg.Type)
	case stream.DroppedMsg:
		reason := "stream ended"
		if msg.Err != nil {
			reason = msg.Err.Error()
		}
		m.events.Addf(msg.Stream, debug.KindDrop, "%s after %d events", reason, msg.Delivered)
	case poller.ResultMsg[client.JobStatusResponse]:
		if msg.Err != nil {
			m.events.Add(msg.Name, debug.KindError, "poll: "+msg.Err.Error())
			return
		}
		m.events.Addf(msg.Name, debug.KindPoll, "status %s %d/%d", msg.Value.Status, msg.Value.Progress, msg.Value.Total)
	}
}

// --- commands ---

func (m Model) check(sub string) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		resp, err := api.CheckSubdomain(ctx, sub)
		return checkedMsg{subdomain: sub, resp: resp, err: err}
	}
}

func (m Model) fetchEmailStatus() tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		st, err := api.EmailStatus(ctx)
		if err != nil {
			return emailStatusMsg{err: err}
		}
		return emailStatusMsg{configured: st.Configured}
	}
}

func (m Model) createJob() tea.Cmd {
	api, ctx := m.api, m.ctx
	sub, cookie := m.subdomain, m.cookie
	slugs := m.selection.Slugs()
	st := m.catalog.State()
	titles := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		if p, ok := st.Find(slug); ok {
			titles = append(titles, p.Title)
		} else {
			titles = append(titles, slug)
		}
	}
	return func() tea.Msg {
		id, err := api.CreateJob(ctx, sub, slugs, cookie)
		return jobCreatedMsg{subdomain: sub, titles: titles, id: id, err: err}
	}
}

func (m Model) download() tea.Cmd {
	api, ctx, id := m.api, m.ctx, m.job.JobID()
	path := filepath.Join(m.downloadDir, deliver.FileName(m.jobSubdomain, id))
	return func() tea.Msg {
		n, err := deliver.SaveZip(ctx, api, id, path)
		return downloadedMsg{path: path, bytes: n, err: err}
	}
}

func (m Model) send(email string) tea.Cmd {
	api, ctx, id := m.api, m.ctx, m.job.JobID()
	return func() tea.Msg {
		msg, err := deliver.Send(ctx, api, id, email)
		return sentMsg{email: strings.TrimSpace(email), message: msg, err: err}
	}
}

func (m Model) record(method history.Method, email string) tea.Cmd {
	log := m.history
	rec := history.Record{
		Subdomain:   m.jobSubdomain,
		PostTitles:  m.jobTitles,
		Method:      method,
		KindleEmail: email,
		JobID:       m.job.JobID(),
	}
	return func() tea.Msg {
		r, err := log.Add(rec)
		return recordedMsg{record: r, err: err}
	}
}

// savePrefs persists a preference change. Without a store the change only
// lives for this run.
func (m Model) savePrefs(fn func(*prefs.Prefs)) tea.Cmd {
	store := m.prefsStore
	if store == nil {
		p := prefs.FromContext(m.ctx)
		fn(&p)
		return func() tea.Msg { return prefsSavedMsg{prefs: p} }
	}
	return func() tea.Msg {
		p, err := store.Update(fn)
		return prefsSavedMsg{prefs: p, err: err}
	}
}

// --- results ---

func (m Model) handleChecked(msg checkedMsg) (tea.Model, tea.Cmd) {
	m.checking = false
	if msg.err != nil {
		m.inputErr = msg.err.Error()
		m.log.Warn("newsletter check failed", "subdomain", msg.subdomain, "err", msg.err)
		return m, nil
	}
	if msg.resp == nil || !msg.resp.Exists {
		m.inputErr = fmt.Sprintf("Newsletter '%s' not found", msg.subdomain)
		return m, nil
	}

	if msg.subdomain != m.subdomain {
		m.selection.Clear()
		m.cookie = ""
		m.list = posts.New()
		m.resize(m.width, m.height)
	}
	m.subdomain = msg.subdomain
	m.inputErr = ""
	m.screen = ScreenCatalog
	m.input.Blur()
	m.setNotice("", false)
	m.events.Add("", debug.KindInfo, "loading "+msg.subdomain)

	cmd := m.catalog.Load(msg.subdomain)
	m.syncStatus()
	if cmd == nil {
		return m, nil
	}
	return m, tea.Batch(cmd, m.spinner.Tick)
}

func (m Model) handleJobCreated(msg jobCreatedMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.log.Error("create job failed", "subdomain", msg.subdomain, "err", msg.err)
		m.setNotice("Could not start conversion: "+msg.err.Error(), true)
		return m, nil
	}
	m.log.Info("job created", "job", msg.id, "subdomain", msg.subdomain, "posts", len(msg.titles))
	m.events.Add(watch.JobStream, debug.KindInfo, "created job "+msg.id)
	m.jobSubdomain = msg.subdomain
	m.jobTitles = msg.titles
	m.screen = ScreenJob
	m.setNotice("", false)
	m.dash.Reset(msg.subdomain)
	cmd := m.job.Start(msg.id)
	m.syncStatus()
	return m, cmd
}

// --- keys ---

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.catalog.Stop()
	m.job.Stop()
	m.cancel()
	return m, tea.Quit
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m.quit()
	}
	if m.prompt != promptNone {
		return m.handlePromptKey(msg)
	}
	if m.overlay != OverlayNone {
		return m.handleOverlayKey(msg)
	}

	switch m.screen {
	case ScreenInput:
		return m.handleInputKey(msg)
	case ScreenCatalog:
		return m.handleCatalogKey(msg)
	default:
		return m.handleJobKey(msg)
	}
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		sub, ok := client.ParseSubdomain(m.input.Value())
		if !ok {
			m.inputErr = "Enter a newsletter name or a substack.com URL"
			return m, nil
		}
		m.inputErr = ""
		m.checking = true
		return m, tea.Batch(m.check(sub), m.spinner.Tick)

	case key.Matches(msg, m.keys.Escape):
		if m.subdomain != "" {
			m.screen = ScreenCatalog
			m.input.Blur()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleGlobalKey handles keys shared by the catalog and job screens.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		model, cmd := m.quit()
		return model, cmd, true
	case key.Matches(msg, m.keys.History):
		var cmd tea.Cmd
		m.deliveries, cmd = m.deliveries.Open(m.subdomain)
		m.overlay = OverlayHistory
		return m, cmd, true
	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil, true
	case key.Matches(msg, m.keys.Layout):
		return m, m.savePrefs(func(p *prefs.Prefs) { p.Layout = p.Layout.Next() }), true
	}
	return m, nil, false
}

func (m Model) handleCatalogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if model, cmd, ok := m.handleGlobalKey(msg); ok {
		return model, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Escape):
		if m.list.Query() != "" {
			m.list.SetQuery("")
			return m, nil
		}
		m.catalog.Stop()
		m.screen = ScreenInput
		m.syncStatus()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Down):
		m.list.MoveDown()
	case key.Matches(msg, m.keys.Up):
		m.list.MoveUp()
	case key.Matches(msg, m.keys.PageDown):
		m.list.PageDown()
	case key.Matches(msg, m.keys.PageUp):
		m.list.PageUp()

	case key.Matches(msg, m.keys.Enter):
		if p, ok := m.list.Current(); ok {
			m.detail = detail.New(m.subdomain, p, m.selection.Has(p.Slug), m.style)
			m.overlay = OverlayDetail
		}

	case key.Matches(msg, m.keys.Toggle):
		if p, ok := m.list.Current(); ok {
			m.selection.Toggle(p.Slug)
		}

	case key.Matches(msg, m.keys.SelectAll):
		m.selection.SelectAll(m.list.Visible())

	case key.Matches(msg, m.keys.Filter):
		m.queryBefore = m.list.Query()
		return m, m.openPrompt(promptFilter, "filter › ", m.list.Query(), false)

	case key.Matches(msg, m.keys.Cookie):
		return m, m.openPrompt(promptCookie, "substack.sid › ", m.cookie, true)

	case key.Matches(msg, m.keys.Reload):
		m.setNotice("", false)
		cmd := m.catalog.Reload(m.subdomain)
		m.list.SetPosts(nil)
		m.syncStatus()
		return m, tea.Batch(cmd, m.spinner.Tick)

	case key.Matches(msg, m.keys.Convert):
		if m.busy {
			return m, nil
		}
		if m.selection.Len() == 0 {
			m.setNotice("Select at least one post first", true)
			return m, nil
		}
		m.busy = true
		m.setNotice(fmt.Sprintf("Starting conversion of %d posts...", m.selection.Len()), false)
		return m, m.createJob()
	}
	return m, nil
}

func (m Model) handleJobKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if model, cmd, ok := m.handleGlobalKey(msg); ok {
		return model, cmd
	}
	completed := m.job.State().Status == job.Completed

	switch {
	case key.Matches(msg, m.keys.Download):
		if !completed || m.busy {
			return m, nil
		}
		m.busy = true
		m.setNotice("Downloading...", false)
		return m, tea.Batch(m.download(), m.spinner.Tick)

	case key.Matches(msg, m.keys.Kindle):
		if !completed || m.busy {
			return m, nil
		}
		if !m.emailConfigured {
			m.setNotice("Kindle delivery is not configured on the server", true)
			return m, nil
		}
		return m, m.openPrompt(promptEmail, "kindle email › ", prefs.FromContext(m.ctx).KindleEmail, false)

	case key.Matches(msg, m.keys.StartOver):
		m.job.Stop()
		m.selection.Clear()
		m.dash.Reset("")
		m.busy = false
		m.screen = ScreenCatalog
		m.setNotice("", false)
		m.syncStatus()

	case key.Matches(msg, m.keys.Escape):
		if !m.job.Done() {
			m.setNotice("Conversion in progress; press n to start over", true)
			return m, nil
		}
		m.screen = ScreenCatalog
		m.setNotice("", false)
	}
	return m, nil
}

func (m Model) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Escape) {
		m.overlay = OverlayNone
		return m, nil
	}

	switch m.overlay {
	case OverlayDetail:
		if key.Matches(msg, m.keys.Toggle) && m.detail.Post != nil {
			m.detail.Selected = m.selection.Toggle(m.detail.Post.Slug)
		}
	case OverlayHistory:
		if key.Matches(msg, m.keys.History) {
			m.overlay = OverlayNone
			return m, nil
		}
		var cmd tea.Cmd
		m.deliveries, cmd = m.deliveries.Update(msg)
		return m, cmd
	case OverlayDebug:
		switch {
		case key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.events.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.events.ScrollDown(1)
		case key.Matches(msg, m.keys.Filter):
			m.events.CycleStream()
		}
	}
	return m, nil
}

func (m *Model) openPrompt(p prompt, label, value string, secret bool) tea.Cmd {
	m.prompt = p
	m.promptInput.Reset()
	m.promptInput.Prompt = label
	m.promptInput.EchoMode = textinput.EchoNormal
	if secret {
		m.promptInput.EchoMode = textinput.EchoPassword
		m.promptInput.EchoCharacter = '•'
	}
	m.promptInput.SetValue(value)
	return m.promptInput.Focus()
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		if m.prompt == promptFilter {
			m.list.SetQuery(m.queryBefore)
		}
		m.closePrompt()
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		value := strings.TrimSpace(m.promptInput.Value())
		p := m.prompt
		m.closePrompt()
		switch p {
		case promptFilter:
			m.list.SetQuery(value)
		case promptCookie:
			m.cookie = value
			if value == "" {
				m.setNotice("Session cookie cleared", false)
			} else {
				m.setNotice("Session cookie set for paid posts", false)
			}
		case promptEmail:
			if _, err := deliver.ValidEmail(value); err != nil {
				m.setNotice(err.Error(), true)
				return m, nil
			}
			m.busy = true
			m.setNotice("Sending to "+value+"...", false)
			return m, tea.Batch(m.send(value), m.spinner.Tick)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.promptInput, cmd = m.promptInput.Update(msg)
	if m.prompt == promptFilter {
		m.list.SetQuery(strings.TrimSpace(m.promptInput.Value()))
	}
	return m, cmd
}

func (m *Model) closePrompt() {
	m.prompt = promptNone
	m.promptInput.Blur()
}

// --- view ---

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	switch m.screen {
	case ScreenInput:
		body = m.renderInput()
	case ScreenCatalog:
		body = m.renderCatalog()
	default:
		body = m.renderJob()
	}
	if m.overlay != OverlayNone {
		body = lipgloss.Place(m.width, max(m.height-5, 10), lipgloss.Center, lipgloss.Center, m.renderOverlay())
	}

	sections := []string{m.statusBar.View(), body}
	if m.prompt != promptNone {
		sections = append(sections, "  "+m.promptInput.View())
	}
	if m.notice != "" {
		style := theme.StyleDimmed
		if m.noticeErr {
			style = theme.StyleError
		}
		sections = append(sections, style.Render("  "+m.notice))
	}
	sections = append(sections, theme.StyleDimmed.Render(m.help()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderOverlay() string {
	switch m.overlay {
	case OverlayDetail:
		return m.detail.View()
	case OverlayHistory:
		return m.deliveries.View()
	case OverlayDebug:
		return m.events.View(min(m.width-4, 100), max(m.height-8, 8))
	}
	return ""
}

func (m Model) renderInput() string {
	lines := []string{
		"",
		theme.StyleHeader.Render("  Substack → Kindle"),
		theme.StyleDimmed.Render("  Turn a newsletter archive into EPUBs for your e-reader."),
		"",
		"  " + m.input.View(),
	}
	switch {
	case m.checking:
		lines = append(lines, "  "+m.spinner.View()+" Checking newsletter...")
	case m.inputErr != "":
		lines = append(lines, theme.StyleError.Render("  "+m.inputErr))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderCatalog() string {
	list := m.list.View(m.selection, m.catalogFooter())
	if prefs.FromContext(m.ctx).Layout == prefs.LayoutSticky {
		return lipgloss.JoinVertical(lipgloss.Left, list, m.renderStickyBar())
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, list, "  ", m.renderCheckout())
}

func (m Model) catalogFooter() string {
	st := m.catalog.State()
	switch {
	case m.catalog.Mode().Active():
		return "  " + m.spinner.View() + fmt.Sprintf(" Loading posts... %d so far", len(st.Items))
	case st.Error != "":
		return theme.StyleError.Render("  " + st.Error)
	case m.catalog.Mode() == watch.Finished:
		return theme.StyleDimmed.Render(fmt.Sprintf("  All %d posts loaded", len(st.Items)))
	}
	return ""
}

func (m Model) paidWarning() string {
	n := m.selection.PaidWithoutCookie(m.catalog.State().Items, m.cookie)
	if n == 0 {
		return ""
	}
	if n == 1 {
		return "1 paid post selected without a session cookie; only its preview will convert"
	}
	return fmt.Sprintf("%d paid posts selected without a session cookie; only their previews will convert", n)
}

func (m Model) cookieLabel() string {
	if m.cookie == "" {
		return theme.StyleDimmed.Render("not set")
	}
	return lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("set")
}

func (m Model) renderCheckout() string {
	lines := []string{
		theme.StyleHeader.Render("CHECKOUT"),
		"",
		fmt.Sprintf("%d selected", m.selection.Len()),
		"cookie: " + m.cookieLabel(),
	}
	if w := m.paidWarning(); w != "" {
		lines = append(lines, "", lipgloss.NewStyle().Width(checkoutWidth-4).Foreground(theme.ColorWarning).Render(w))
	}
	lines = append(lines, "")
	if m.selection.Len() > 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.ColorSelected).Bold(true).Render("[x] Convert to EPUB"))
	} else {
		lines = append(lines, theme.StyleDimmed.Render("space to pick posts"))
	}
	return theme.StyleBorder.Width(checkoutWidth).Padding(0, 1).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderStickyBar() string {
	bar := fmt.Sprintf("  %d selected  ·  cookie %s  ·  x: convert", m.selection.Len(), m.cookieLabel())
	lines := []string{lipgloss.NewStyle().Foreground(theme.ColorBright).Render(bar)}
	if w := m.paidWarning(); w != "" {
		lines = append(lines, theme.StyleWarning.Render("  "+w))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderJob() string {
	lines := []string{m.dash.View()}
	if m.busy {
		lines = append(lines, "  "+m.spinner.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) help() string {
	k := m.keys
	if m.prompt != promptNone {
		return helpLine(confirmHelp, k.Escape)
	}
	switch m.overlay {
	case OverlayDetail:
		return helpLine(k.Toggle, k.Escape)
	case OverlayHistory:
		return helpLine(k.Escape)
	case OverlayDebug:
		return helpLine(k.Up, k.Down, streamHelp, k.Escape)
	}
	switch m.screen {
	case ScreenInput:
		return helpLine(loadHelp, k.ForceQuit)
	case ScreenCatalog:
		return helpLine(k.Down, k.Toggle, k.SelectAll, k.Filter, k.Cookie, k.Convert, k.Enter, k.Reload, k.Layout, k.History, k.Debug, k.Quit)
	default:
		return helpLine(k.Download, k.Kindle, k.StartOver, k.Escape, k.History, k.Debug, k.Quit)
	}
}
