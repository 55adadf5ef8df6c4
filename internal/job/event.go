package job

import "github.com/GChainey/substackToKindle/internal/client"

// Event is one input of the state machine.
type Event interface {
	jobEvent()
}

// StatusSnapshot carries the full job state. Sent on connect and returned
// by every poll.
type StatusSnapshot struct {
	Status      Status
	Progress    int
	Total       int
	CurrentItem string
	Error       string
}

// Progress updates counters only.
type Progress struct {
	Progress    int
	Total       int
	CurrentItem string
}

// ItemComplete records one finished item.
type ItemComplete struct {
	ID     string
	Label  string
	Metric int
}

// Warning is a non-fatal notice.
type Warning struct {
	Message string
	Raw     []byte
}

// ErrorReported is an explicit backend error. It never terminates the job
// on its own.
type ErrorReported struct {
	Message string
}

// Done is the terminal sentinel; no events follow it.
type Done struct{}

func (StatusSnapshot) jobEvent() {}
func (Progress) jobEvent()       {}
func (ItemComplete) jobEvent()   {}
func (Warning) jobEvent()        {}
func (ErrorReported) jobEvent()  {}
func (Done) jobEvent()           {}

// FromResponse converts a poll response into a snapshot event.
func FromResponse(r client.JobStatusResponse) StatusSnapshot {
	return StatusSnapshot{
		Status:      Status(r.Status),
		Progress:    r.Progress,
		Total:       r.Total,
		CurrentItem: r.CurrentPost,
		Error:       r.Error,
	}
}
