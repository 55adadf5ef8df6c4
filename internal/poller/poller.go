// Package poller issues a request on a fixed interval from inside the
// Bubble Tea loop. Ticks and results carry the generation they were
// scheduled under, so nothing fires after Stop.
package poller

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"pkt.systems/pslog"

	"github.com/GChainey/substackToKindle/internal/stream"
)

// DefaultInterval is the fallback poll period.
const DefaultInterval = 2 * time.Second

// FetchFunc performs one poll request.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// TickMsg asks the owner to issue the next request.
type TickMsg struct {
	Name string
	Gen  uint64
}

// ResultMsg carries one poll outcome.
type ResultMsg[T any] struct {
	Name  string
	Gen   uint64
	Value T
	Err   error
}

// Poller is not safe for concurrent use; it lives on the program loop.
type Poller[T any] struct {
	name     string
	interval time.Duration
	fetch    FetchFunc[T]
	log      pslog.Logger

	gen      uint64
	active   bool
	ctx      context.Context
	cancel   context.CancelFunc
	attempts int
	failures int
}

// New creates a stopped poller.
func New[T any](name string, interval time.Duration, log pslog.Logger) *Poller[T] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	return &Poller[T]{name: name, interval: interval, log: log.With("poller", name)}
}

// Start (re)activates the poller with fetch and schedules the first tick
// one interval from now.
func (p *Poller[T]) Start(ctx context.Context, fetch FetchFunc[T]) tea.Cmd {
	p.Stop()
	p.gen++
	p.active = true
	p.fetch = fetch
	p.attempts, p.failures = 0, 0
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.log.Info("polling started", "gen", p.gen, "interval", p.interval.String())
	return p.Schedule()
}

// Stop deactivates the poller and cancels any in-flight request. Safe to
// call repeatedly.
func (p *Poller[T]) Stop() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.active {
		p.log.Info("polling stopped", "gen", p.gen, "attempts", p.attempts, "failures", p.failures)
	}
	p.active = false
	p.gen++
}

// Active reports whether the poller is running.
func (p *Poller[T]) Active() bool {
	return p.active
}

// Interval returns the poll period.
func (p *Poller[T]) Interval() time.Duration {
	return p.interval
}

// Failures returns the failed attempts since Start.
func (p *Poller[T]) Failures() int {
	return p.failures
}

// Owns reports whether msg was scheduled by this poller's current run.
func (p *Poller[T]) Owns(name string, gen uint64) bool {
	return p.active && name == p.name && gen == p.gen
}

// Schedule arms the next tick.
func (p *Poller[T]) Schedule() tea.Cmd {
	if !p.active {
		return nil
	}
	name, gen := p.name, p.gen
	return tea.Tick(p.interval, func(time.Time) tea.Msg {
		return TickMsg{Name: name, Gen: gen}
	})
}

// HandleTick turns a current tick into a request command.
func (p *Poller[T]) HandleTick(msg TickMsg) tea.Cmd {
	if !p.Owns(msg.Name, msg.Gen) {
		return nil
	}
	p.attempts++
	ctx, fetch, name, gen := p.ctx, p.fetch, p.name, p.gen
	return func() tea.Msg {
		v, err := fetch(ctx)
		return ResultMsg[T]{Name: name, Gen: gen, Value: v, Err: err}
	}
}

// HandleResult reports the value of a current, successful result. Failed
// attempts are logged and swallowed; the caller schedules the next tick
// either way unless it stops the poller.
func (p *Poller[T]) HandleResult(msg ResultMsg[T]) (T, bool) {
	var zero T
	if !p.Owns(msg.Name, msg.Gen) {
		return zero, false
	}
	if msg.Err != nil {
		p.failures++
		fault := stream.Classify(stream.PollFailure, p.name, msg.Err)
		p.log.Warn("poll failed", "attempt", p.attempts, "failures", p.failures, "err", fault)
		return zero, false
	}
	return msg.Value, true
}
