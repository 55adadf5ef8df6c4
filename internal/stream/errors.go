package stream

import (
	"errors"
	"fmt"
)

// FaultKind classifies what went wrong on a stream and how it is recovered.
type FaultKind int

const (
	// ConnectFailure means the transport never delivered an event. Fatal.
	ConnectFailure FaultKind = iota
	// DegradedTransport means the stream dropped after at least one event.
	DegradedTransport
	// MalformedEvent means a single frame failed to decode and was dropped.
	MalformedEvent
	// ProducerReportedError is an explicit error event from the backend.
	ProducerReportedError
	// PollFailure is one failed fallback poll attempt.
	PollFailure
)

// String returns the string representation of FaultKind
func (k FaultKind) String() string {
	switch k {
	case ConnectFailure:
		return "connect_failure"
	case DegradedTransport:
		return "degraded_transport"
	case MalformedEvent:
		return "malformed_event"
	case ProducerReportedError:
		return "producer_error"
	case PollFailure:
		return "poll_failure"
	default:
		return "unknown"
	}
}

// Fatal reports whether the fault ends the logical stream without recovery.
func (k FaultKind) Fatal() bool {
	return k == ConnectFailure
}

// MsgConnectFailed is the user-facing text for a ConnectFailure.
const MsgConnectFailed = "Failed to connect to server"

var (
	ErrConnectFailed  = errors.New("failed to connect")
	ErrConnectionLost = errors.New("connection lost")
	ErrMalformedEvent = errors.New("malformed event")
	ErrUnknownEvent   = errors.New("unknown event")
)

// ClassifiedError wraps a stream error with its fault kind.
type ClassifiedError struct {
	Kind   FaultKind
	Stream string
	Err    error
}

func (e *ClassifiedError) Error() string {
	if e.Stream == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s stream %s: %v", e.Stream, e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Classify wraps err as a fault of the given kind. A nil err yields nil.
func Classify(kind FaultKind, stream string, err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Kind: kind, Stream: stream, Err: err}
}
