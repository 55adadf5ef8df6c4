// Package catalog accumulates a newsletter archive delivered in batches.
package catalog

import (
	"github.com/GChainey/substackToKindle/internal/client"
	"github.com/GChainey/substackToKindle/internal/stream"
)

// Error messages exposed when the stream transport fails.
const (
	ErrMsgConnect = stream.MsgConnectFailed
	ErrMsgLost    = "Connection lost while loading posts"
)

// Outcome summarises a load for display.
type Outcome int

const (
	Loading Outcome = iota
	Complete
	Partial
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case Complete:
		return "complete"
	case Partial:
		return "partial"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one input of the accumulator.
type Event interface {
	catalogEvent()
}

// Batch is one page of posts. Seq is the server's batch number.
type Batch struct {
	Posts      []client.Post
	TotalSoFar int
	Seq        int
}

// Done ends the load with the server's final count.
type Done struct {
	Total int
}

// Failure is an explicit backend error or a transport fault.
type Failure struct {
	Message string
}

func (Batch) catalogEvent()   {}
func (Done) catalogEvent()    {}
func (Failure) catalogEvent() {}

// State is the exposed catalog state. Items only ever grow.
type State struct {
	Target       string
	Items        []client.Post
	RunningTotal int
	BatchCount   int
	Terminal     bool
	Error        string

	seen map[int]bool
}

// NewState starts an empty load for target.
func NewState(target string) State {
	return State{Target: target}
}

// Apply runs one event and reports whether the state changed. Nothing is
// applied after a terminal event.
func (s *State) Apply(ev Event) bool {
	if s.Terminal {
		return false
	}
	switch e := ev.(type) {
	case Batch:
		if e.Seq > 0 {
			if s.seen[e.Seq] {
				return false
			}
			if s.seen == nil {
				s.seen = make(map[int]bool)
			}
			s.seen[e.Seq] = true
		}
		s.Items = append(s.Items, e.Posts...)
		s.RunningTotal = e.TotalSoFar
		s.BatchCount++
		return true
	case Done:
		s.Terminal = true
		if e.Total > 0 {
			s.RunningTotal = e.Total
		} else if s.RunningTotal == 0 {
			s.RunningTotal = len(s.Items)
		}
		return true
	case Failure:
		s.Terminal = true
		s.Error = e.Message
		return true
	}
	return false
}

// Disconnect turns a transport fault into a Failure: a generic connection
// failure when nothing arrived, a lost-connection error over partial items
// otherwise.
func (s State) Disconnect() Failure {
	if len(s.Items) == 0 && s.BatchCount == 0 {
		return Failure{Message: ErrMsgConnect}
	}
	return Failure{Message: ErrMsgLost}
}

// Outcome classifies the state.
func (s State) Outcome() Outcome {
	switch {
	case !s.Terminal:
		return Loading
	case s.Error == "":
		return Complete
	case len(s.Items) > 0:
		return Partial
	default:
		return Failed
	}
}

// Find returns the post with slug.
func (s State) Find(slug string) (client.Post, bool) {
	for _, p := range s.Items {
		if p.Slug == slug {
			return p, true
		}
	}
	return client.Post{}, false
}
