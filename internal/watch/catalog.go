package watch

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"pkt.systems/pslog"

	"github.com/GChainey/substackToKindle/internal/catalog"
	"github.com/GChainey/substackToKindle/internal/logx"
	"github.com/GChainey/substackToKindle/internal/stream"
)

// CatalogAPI is the subset of the HTTP client the catalog watcher needs.
type CatalogAPI interface {
	PostsStreamURL(subdomain string) string
}

// Catalog loads one newsletter archive over a stream. There is no poll
// fallback; a drop keeps what arrived and attaches an error.
type Catalog struct {
	ctx     context.Context
	api     CatalogAPI
	session *stream.Session
	log     pslog.Logger

	state catalog.State
	mode  Mode
	fault *stream.ClassifiedError
}

// NewCatalog creates an idle catalog watcher.
func NewCatalog(ctx context.Context, api CatalogAPI, transport stream.Transport) *Catalog {
	base := logx.Ctx(ctx)
	s := stream.NewSession(CatalogStream, transport, base)
	s.RegisterAll(catalog.Decoders())
	return &Catalog{ctx: ctx, api: api, session: s, log: logx.WithStream(base, CatalogStream)}
}

// Load starts loading subdomain. Loading the target already shown is a
// no-op unless the previous load failed.
func (w *Catalog) Load(subdomain string) tea.Cmd {
	if subdomain == w.state.Target && w.mode != Idle && w.mode != Failed {
		return nil
	}
	return w.Reload(subdomain)
}

// Reload discards the current state and loads subdomain from scratch.
func (w *Catalog) Reload(subdomain string) tea.Cmd {
	w.session.Close()
	w.state = catalog.NewState(subdomain)
	w.fault = nil
	w.mode = Connecting
	w.log = logx.WithSubdomain(logx.WithStream(logx.Ctx(w.ctx), CatalogStream), subdomain)
	w.log.Info("catalog load started")
	return w.session.Open(w.ctx, w.api.PostsStreamURL(subdomain))
}

// Stop releases the subscription. Idempotent.
func (w *Catalog) Stop() {
	w.session.Close()
	if w.mode.Active() {
		w.mode = Idle
	}
}

func (w *Catalog) State() catalog.State { return w.state }
func (w *Catalog) Mode() Mode           { return w.mode }
func (w *Catalog) Transport() string    { return w.session.Transport() }

// Fault returns why the load ended early: a dropped transport or an error
// event from the backend.
func (w *Catalog) Fault() *stream.ClassifiedError { return w.fault }

// Done reports whether the load ended.
func (w *Catalog) Done() bool { return !w.mode.Active() }

// Update applies msg if it belongs to this watcher.
func (w *Catalog) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case stream.OpenedMsg:
		if !w.owns(msg.Stream, msg.Gen) {
			return nil
		}
		w.mode = Streaming
		return w.session.Next()

	case stream.EventMsg:
		if !w.owns(msg.Stream, msg.Gen) {
			return nil
		}
		if ev, ok := msg.Event.(catalog.Event); ok {
			w.state.Apply(ev)
			if f, failed := ev.(catalog.Failure); failed {
				w.fault = stream.Classify(stream.ProducerReportedError, w.session.Name(), errors.New(f.Message))
			}
		}
		if w.state.Terminal {
			w.session.Close()
			w.finish()
			return nil
		}
		return w.session.Next()

	case stream.DroppedMsg:
		if !w.owns(msg.Stream, msg.Gen) {
			return nil
		}
		w.session.Close()
		w.fault = msg.Err
		w.state.Apply(w.state.Disconnect())
		w.finish()
		return nil
	}
	return nil
}

func (w *Catalog) finish() {
	outcome := w.state.Outcome()
	if outcome == catalog.Failed {
		w.mode = Failed
		w.log.Error("catalog load failed", "err", w.state.Error)
		return
	}
	w.mode = Finished
	w.log.Info("catalog load finished", "outcome", outcome.String(), "items", len(w.state.Items), "total", w.state.RunningTotal)
}

func (w *Catalog) owns(name string, gen uint64) bool {
	return name == w.session.Name() && w.session.Current(gen)
}
