// Package job holds the conversion job's progress state machine. Events are
// tagged variants; State.Apply is the only mutation path.
package job

import "github.com/GChainey/substackToKindle/internal/client"

// Status is the lifecycle position of a job.
type Status string

const (
	Pending   Status = "pending"
	Running   Status = "running"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == Completed || s == Failed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return client.JobStatus(s).Valid()
}

func (s Status) rank() int {
	switch s {
	case Running:
		return 1
	case Completed, Failed:
		return 2
	default:
		return 0
	}
}

// CompletedItem is one finished unit of work, in receipt order.
type CompletedItem struct {
	ID     string
	Label  string
	Metric int
}

// State is the exposed job state.
type State struct {
	Status      Status
	Progress    int
	Total       int
	CurrentItem string
	Error       string
	Completed   []CompletedItem
	Warnings    []string

	// SentinelSeen is set once the terminal "done" event arrived.
	SentinelSeen bool
}

// NewState returns the initial pending state.
func NewState() State {
	return State{Status: Pending}
}

// Percent is progress over total, 0 when total is unknown.
func (s State) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	p := float64(s.Progress) / float64(s.Total)
	if p > 1 {
		return 1
	}
	return p
}

// HasItem reports whether an item with id was already recorded.
func (s State) HasItem(id string) bool {
	for _, it := range s.Completed {
		if it.ID == id {
			return true
		}
	}
	return false
}

// Apply runs one transition and reports whether the state changed. Once the
// status is terminal only the sentinel is still recorded.
func (s *State) Apply(ev Event) bool {
	if s.Status == "" {
		s.Status = Pending
	}
	if done, ok := ev.(Done); ok {
		return s.applyDone(done)
	}
	if s.Status.Terminal() {
		return false
	}
	switch e := ev.(type) {
	case StatusSnapshot:
		return s.applySnapshot(e)
	case Progress:
		return s.applyProgress(e)
	case ItemComplete:
		if e.ID == "" || s.HasItem(e.ID) {
			return false
		}
		s.Completed = append(s.Completed, CompletedItem{ID: e.ID, Label: e.Label, Metric: e.Metric})
		return true
	case Warning:
		if n := len(s.Warnings); n > 0 && s.Warnings[n-1] == e.Message {
			return false
		}
		s.Warnings = append(s.Warnings, e.Message)
		return true
	case ErrorReported:
		if e.Message == "" || e.Message == s.Error {
			return false
		}
		s.Error = e.Message
		return true
	}
	return false
}

func (s *State) applyDone(Done) bool {
	if s.SentinelSeen {
		return false
	}
	s.SentinelSeen = true
	return true
}

// applySnapshot sets the counters atomically. A snapshot behind the current
// progress is stale and only allowed to move the status forward. Total only
// shrinks on a terminal snapshot.
func (s *State) applySnapshot(e StatusSnapshot) bool {
	before := s.snapshot()
	stale := e.Progress < s.Progress
	if e.Status.Valid() && e.Status.rank() > s.Status.rank() {
		s.Status = e.Status
	}
	if !stale {
		s.Progress = e.Progress
		if e.Total > s.Total || (e.Total > 0 && e.Status.Terminal()) {
			s.Total = e.Total
		}
		if e.CurrentItem != "" || e.Status.Terminal() {
			s.CurrentItem = e.CurrentItem
		}
	}
	if e.Error != "" {
		s.Error = e.Error
	}
	return before != s.snapshot()
}

// applyProgress never changes status except promoting pending to running,
// and never lowers total.
func (s *State) applyProgress(e Progress) bool {
	if e.Progress < s.Progress {
		return false
	}
	before := s.snapshot()
	if s.Status == Pending {
		s.Status = Running
	}
	s.Progress = e.Progress
	if e.Total > s.Total {
		s.Total = e.Total
	}
	if e.CurrentItem != "" {
		s.CurrentItem = e.CurrentItem
	}
	return before != s.snapshot()
}

type counters struct {
	status   Status
	progress int
	total    int
	current  string
	err      string
}

func (s *State) snapshot() counters {
	return counters{s.Status, s.Progress, s.Total, s.CurrentItem, s.Error}
}
