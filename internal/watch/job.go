package watch

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"pkt.systems/pslog"

	"github.com/GChainey/substackToKindle/internal/client"
	"github.com/GChainey/substackToKindle/internal/job"
	"github.com/GChainey/substackToKindle/internal/logx"
	"github.com/GChainey/substackToKindle/internal/poller"
	"github.com/GChainey/substackToKindle/internal/stream"
)

// JobAPI is the subset of the HTTP client the job watcher needs.
type JobAPI interface {
	GetJobStatus(ctx context.Context, jobID string) (*client.JobStatusResponse, error)
	JobStreamURL(jobID string) string
}

// Job follows one conversion job: stream first, polling after a degraded
// drop, never both at once.
type Job struct {
	ctx     context.Context
	api     JobAPI
	session *stream.Session
	poller  *poller.Poller[client.JobStatusResponse]
	log     pslog.Logger

	jobID string
	state job.State
	mode  Mode
	fault *stream.ClassifiedError
}

// NewJob creates an idle job watcher.
func NewJob(ctx context.Context, api JobAPI, transport stream.Transport, interval time.Duration) *Job {
	base := logx.Ctx(ctx)
	s := stream.NewSession(JobStream, transport, base)
	s.RegisterAll(job.Decoders())
	return &Job{
		ctx:     ctx,
		api:     api,
		session: s,
		poller:  poller.New[client.JobStatusResponse](JobStream, interval, base),
		log:     logx.WithStream(base, JobStream),
		state:   job.NewState(),
	}
}

// Start resets the state and subscribes to jobID's stream.
func (w *Job) Start(jobID string) tea.Cmd {
	w.Stop()
	w.jobID = jobID
	w.state = job.NewState()
	w.fault = nil
	w.mode = Connecting
	w.log = logx.WithJob(logx.WithStream(logx.Ctx(w.ctx), JobStream), jobID)
	w.log.Info("job watch started")
	return w.session.Open(w.ctx, w.api.JobStreamURL(jobID))
}

// Stop releases the subscription and the poller. Idempotent.
func (w *Job) Stop() {
	w.session.Close()
	w.poller.Stop()
	if w.mode.Active() {
		w.mode = Idle
	}
}

func (w *Job) JobID() string     { return w.jobID }
func (w *Job) State() job.State  { return w.state }
func (w *Job) Mode() Mode        { return w.mode }
func (w *Job) Transport() string { return w.session.Transport() }

// Fault returns the last fault seen: a dropped transport or an error the
// backend reported on the stream.
func (w *Job) Fault() *stream.ClassifiedError { return w.fault }

// PollFailures counts failed poll attempts of the current run.
func (w *Job) PollFailures() int { return w.poller.Failures() }

// Done reports whether no producer is left running.
func (w *Job) Done() bool { return !w.mode.Active() }

// Update applies msg if it belongs to this watcher.
func (w *Job) Update(msg tea.Msg) tea.Cmd {
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
		ev, ok := msg.Event.(job.Event)
		if !ok {
			return w.session.Next()
		}
		w.state.Apply(ev)
		if e, ok := ev.(job.ErrorReported); ok && e.Message != "" {
			w.fault = stream.Classify(stream.ProducerReportedError, w.session.Name(), errors.New(e.Message))
		}
		if _, done := ev.(job.Done); done {
			w.log.Info("job stream finished", "status", string(w.state.Status))
			w.session.Close()
			w.mode = Finished
			return nil
		}
		return w.session.Next()

	case stream.DroppedMsg:
		if !w.owns(msg.Stream, msg.Gen) {
			return nil
		}
		w.session.Close()
		w.fault = msg.Err
		if msg.Err != nil && msg.Err.Kind.Fatal() {
			w.log.Error("job stream failed", "err", msg.Err)
			w.state.Apply(job.ErrorReported{Message: stream.MsgConnectFailed})
			w.mode = Failed
			return nil
		}
		return w.handOff()

	case poller.TickMsg:
		return w.poller.HandleTick(msg)

	case poller.ResultMsg[client.JobStatusResponse]:
		if !w.poller.Owns(msg.Name, msg.Gen) {
			return nil
		}
		if v, ok := w.poller.HandleResult(msg); ok {
			w.state.Apply(job.FromResponse(v))
		}
		if w.state.Status.Terminal() {
			w.poller.Stop()
			w.mode = Finished
			return nil
		}
		return w.poller.Schedule()
	}
	return nil
}

// handOff finishes the watch if the job is terminal and otherwise switches
// to polling. The subscription is already closed.
func (w *Job) handOff() tea.Cmd {
	if w.state.Status.Terminal() {
		w.mode = Finished
		return nil
	}
	w.mode = Polling
	api, id := w.api, w.jobID
	return w.poller.Start(w.ctx, func(ctx context.Context) (client.JobStatusResponse, error) {
		resp, err := api.GetJobStatus(ctx, id)
		if err != nil {
			return client.JobStatusResponse{}, err
		}
		return *resp, nil
	})
}

func (w *Job) owns(name string, gen uint64) bool {
	return name == w.session.Name() && w.session.Current(gen)
}
