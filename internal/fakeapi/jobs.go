package fakeapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"

	"github.com/GChainey/substackToKindle/internal/client"
)

// paidWarning is sent for paid posts converted without a session cookie.
const paidWarning = "Paid post fetched without a session cookie; content may be truncated"

// JobScript shapes how jobs for one newsletter behave.
type JobScript struct {
	// DropAfter cuts each job stream connection after that many events.
	// Zero never cuts.
	DropAfter int
	// FailAt fails the job while converting the n-th post (1-based).
	FailAt int
	// Refuse answers job stream requests with 502.
	Refuse bool
}

type step struct {
	event   string
	payload any
	state   client.JobStatusResponse
}

type frame struct {
	event   string
	payload any
}

type subscriber struct {
	send chan frame
}

// job replays a precomputed script to every subscriber. The script runs
// once, started by the first observer, and keeps running when streams drop
// so polls see it advance.
type job struct {
	id        string
	subdomain string
	posts     []client.Post
	log       pslog.Logger

	mu      sync.Mutex
	steps   []step
	pos     int
	state   client.JobStatusResponse
	started bool
	done    bool
	subs    map[*subscriber]bool
}

func newJob(id, subdomain string, posts []client.Post, cookie bool, script JobScript, log pslog.Logger) *job {
	j := &job{
		id:        id,
		subdomain: subdomain,
		posts:     posts,
		log:       log,
		subs:      make(map[*subscriber]bool),
		state: client.JobStatusResponse{
			JobID:  id,
			Status: client.JobPending,
			Total:  len(posts),
		},
	}
	j.steps = buildSteps(j.state, posts, cookie, script.FailAt)
	return j
}

func buildSteps(st client.JobStatusResponse, posts []client.Post, cookie bool, failAt int) []step {
	var steps []step
	add := func(event string, payload any) {
		steps = append(steps, step{event: event, payload: payload, state: st})
	}

	st.Status = client.JobRunning
	add(client.EventStatus, st)
	for i, p := range posts {
		st.Progress = i
		st.CurrentPost = p.Title
		add(client.EventProgress, client.ProgressPayload{Progress: i, Total: st.Total, CurrentPost: p.Title})
		if failAt == i+1 {
			st.Status = client.JobFailed
			st.Error = "Failed to fetch " + p.Slug
			add(client.EventError, client.ErrorPayload{Message: st.Error})
			add(client.EventStatus, st)
			add(client.EventDone, struct{}{})
			return steps
		}
		if p.Paid() && !cookie {
			add(client.EventWarning, client.WarningPayload{Slug: p.Slug, Message: paidWarning})
		}
		st.Progress = i + 1
		add(client.EventPostComplete, client.PostCompletePayload{Slug: p.Slug, Title: p.Title, Images: p.WordCount % 7})
	}
	st.Status = client.JobCompleted
	st.CurrentPost = ""
	add(client.EventStatus, st)
	add(client.EventDone, struct{}{})
	return steps
}

// Status returns the job's current poll view and starts the script if
// nothing has observed the job yet.
func (j *job) Status(ctx context.Context, delay time.Duration) client.JobStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.startLocked(ctx, delay)
	return j.state
}

// Subscribe registers a subscriber. It first receives a status snapshot;
// when the job already finished it also receives done and a closed channel.
func (j *job) Subscribe(ctx context.Context, delay time.Duration) *subscriber {
	sub := &subscriber{send: make(chan frame, len(j.steps)+2)}

	j.mu.Lock()
	defer j.mu.Unlock()
	sub.send <- frame{event: client.EventStatus, payload: j.state}
	if j.done {
		sub.send <- frame{event: client.EventDone, payload: struct{}{}}
		close(sub.send)
		return sub
	}
	j.subs[sub] = true
	j.startLocked(ctx, delay)
	return sub
}

func (j *job) Unsubscribe(sub *subscriber) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.subs[sub]; ok {
		delete(j.subs, sub)
		close(sub.send)
	}
}

func (j *job) Completed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state.Status == client.JobCompleted
}

func (j *job) startLocked(ctx context.Context, delay time.Duration) {
	if j.started {
		return
	}
	j.started = true
	j.log.Debug("fakeapi job started", "job_id", j.id, "steps", len(j.steps))
	go j.run(ctx, delay)
}

func (j *job) run(ctx context.Context, delay time.Duration) {
	for {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		} else if ctx.Err() != nil {
			return
		}
		if !j.advance() {
			return
		}
	}
}

// advance applies the next step and fans it out. It reports whether more
// steps remain.
func (j *job) advance() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.pos >= len(j.steps) {
		return false
	}
	st := j.steps[j.pos]
	j.pos++
	j.state = st.state

	for sub := range j.subs {
		select {
		case sub.send <- frame{event: st.event, payload: st.payload}:
		default:
			j.log.Warn("fakeapi subscriber too slow, disconnecting", "job_id", j.id)
			delete(j.subs, sub)
			close(sub.send)
		}
	}

	if j.pos < len(j.steps) {
		return true
	}
	j.done = true
	for sub := range j.subs {
		delete(j.subs, sub)
		close(sub.send)
	}
	j.log.Debug("fakeapi job finished", "job_id", j.id, "status", string(j.state.Status))
	return false
}
