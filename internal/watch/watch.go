// Package watch owns, per logical stream, the subscription, the fallback
// poller and the exposed state. Watchers are driven by Bubble Tea messages
// and must only be touched from the program loop.
package watch

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Logical stream names.
const (
	JobStream     = "job"
	CatalogStream = "catalog"
)

// Mode is the producer currently feeding a watcher's state.
type Mode int

const (
	Idle Mode = iota
	Connecting
	Streaming
	Polling
	Finished
	Failed
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Polling:
		return "polling"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Active reports whether a producer is still running.
func (m Mode) Active() bool {
	return m == Connecting || m == Streaming || m == Polling
}

// Updater consumes one message and returns the follow-up command.
type Updater interface {
	Update(msg tea.Msg) tea.Cmd
}

// UpdateFunc adapts a function to Updater.
type UpdateFunc func(msg tea.Msg) tea.Cmd

func (f UpdateFunc) Update(msg tea.Msg) tea.Cmd { return f(msg) }

// Drive runs cmd and every follow-up command synchronously, feeding each
// resulting message to u, until no command is left or ctx is done. It is
// the headless stand-in for tea.Program.
func Drive(ctx context.Context, u Updater, cmd tea.Cmd) error {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			queue = append(queue, u.Update(msg))
		}
	}
	return ctx.Err()
}
