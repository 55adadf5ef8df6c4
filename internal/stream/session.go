package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"pkt.systems/pslog"
)

// DecodeFunc turns a frame payload into a typed event. Returning a nil
// event with a nil error drops the frame without counting it as data.
type DecodeFunc func(data []byte) (any, error)

// Ignore is a DecodeFunc for keep-alive events such as "ping".
func Ignore([]byte) (any, error) { return nil, nil }

// --- Bubble Tea messages ---

// OpenedMsg is sent when the transport connected.
type OpenedMsg struct {
	Stream string
	Gen    uint64
}

// EventMsg delivers one decoded event.
type EventMsg struct {
	Stream string
	Gen    uint64
	Type   string
	Event  any
}

// DroppedMsg is sent when the transport failed or ended. Delivered is the
// number of events handed out before the drop; Err.Kind is ConnectFailure
// when it is zero and DegradedTransport otherwise.
type DroppedMsg struct {
	Stream    string
	Gen       uint64
	Delivered int
	Err       *ClassifiedError
}

// Session owns at most one live subscription for one logical stream.
// Open, Close and message handling run on the Bubble Tea loop; the mutex
// only guards the transport handle, which a command goroutine reads from.
type Session struct {
	name      string
	transport Transport
	log       pslog.Logger
	decoders  map[string]DecodeFunc

	mu        sync.Mutex
	gen       uint64
	conn      Conn
	cancel    context.CancelFunc
	delivered int
	malformed int
}

// NewSession creates a session for the named logical stream.
func NewSession(name string, transport Transport, log pslog.Logger) *Session {
	if transport == nil {
		transport = &SSE{}
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	return &Session{
		name:      name,
		transport: transport,
		log:       log.With("stream", name, "transport", transport.Name()),
		decoders:  make(map[string]DecodeFunc),
	}
}

// Register binds a decoder for one event type. Frames of unregistered
// types are dropped.
func (s *Session) Register(event string, decode DecodeFunc) {
	s.decoders[event] = decode
}

// RegisterAll binds every decoder in m.
func (s *Session) RegisterAll(m map[string]DecodeFunc) {
	for event, decode := range m {
		s.Register(event, decode)
	}
}

// Name returns the logical stream name.
func (s *Session) Name() string {
	return s.name
}

// Transport returns the transport name ("sse" or "websocket").
func (s *Session) Transport() string {
	return s.transport.Name()
}

// Current reports whether gen belongs to the active subscription.
func (s *Session) Current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != 0 && gen == s.gen
}

// Live reports whether a subscription is dialing or open.
func (s *Session) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Delivered returns how many events the current subscription handed out.
func (s *Session) Delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

// Malformed returns how many frames of the current subscription were
// dropped because they did not decode.
func (s *Session) Malformed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.malformed
}

// Open tears down any previous subscription and dials url. The returned
// command yields OpenedMsg or, if the dial fails, a ConnectFailure DroppedMsg.
func (s *Session) Open(ctx context.Context, url string) tea.Cmd {
	s.mu.Lock()
	s.releaseLocked()
	s.gen++
	gen := s.gen
	s.delivered = 0
	s.malformed = 0
	dialCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	log := s.log.With("gen", gen)
	log.Debug("stream opening", "url", url)
	return func() tea.Msg {
		conn, err := s.transport.Dial(dialCtx, url)
		if err != nil {
			log.Warn("stream dial failed", "err", err)
			return s.drop(gen, err)
		}
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.conn = conn
		s.mu.Unlock()
		log.Info("stream opened")
		return OpenedMsg{Stream: s.name, Gen: gen}
	}
}

// Next reads until one frame decodes and returns it as EventMsg. It must be
// re-armed after each event so events are applied strictly in receipt order.
func (s *Session) Next() tea.Cmd {
	s.mu.Lock()
	conn, gen := s.conn, s.gen
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return func() tea.Msg {
		for {
			frame, err := conn.Next()
			if err != nil {
				if errors.Is(err, ErrMalformedEvent) {
					s.malformedFrame(gen, "", err)
					continue
				}
				return s.drop(gen, err)
			}
			decode, ok := s.decoders[frame.Event]
			if !ok {
				s.log.Debug("stream frame dropped", "err", fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Event))
				continue
			}
			ev, err := decode(frame.Data)
			if err != nil {
				s.malformedFrame(gen, frame.Event, fmt.Errorf("%w: %w", ErrMalformedEvent, err))
				continue
			}
			if ev == nil {
				continue
			}

			s.mu.Lock()
			if s.gen != gen {
				s.mu.Unlock()
				return nil
			}
			s.delivered++
			s.mu.Unlock()
			return EventMsg{Stream: s.name, Gen: gen, Type: frame.Event, Event: ev}
		}
	}
}

// Close releases the subscription. It is idempotent and safe after the
// stream ended on its own; messages still in flight become stale.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.conn != nil {
		s.log.Debug("stream closed", "gen", s.gen, "delivered", s.delivered)
	}
	s.gen++
	s.releaseLocked()
}

func (s *Session) malformedFrame(gen uint64, event string, err error) {
	fault := Classify(MalformedEvent, s.name, err)
	s.mu.Lock()
	if s.gen == gen {
		s.malformed++
	}
	s.mu.Unlock()
	s.log.Debug("stream frame dropped", "event", event, "err", fault)
}

// drop releases a failed subscription and classifies the fault by whether
// any event had been delivered.
func (s *Session) drop(gen uint64, cause error) tea.Msg {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	delivered := s.delivered
	s.releaseLocked()
	s.mu.Unlock()

	kind, sentinel := DegradedTransport, ErrConnectionLost
	if delivered == 0 {
		kind, sentinel = ConnectFailure, ErrConnectFailed
	}
	s.log.Info("stream dropped", "gen", gen, "delivered", delivered, "kind", kind.String(), "err", cause)
	return DroppedMsg{
		Stream:    s.name,
		Gen:       gen,
		Delivered: delivered,
		Err:       Classify(kind, s.name, fmt.Errorf("%w: %w", sentinel, cause)),
	}
}

func (s *Session) releaseLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}
