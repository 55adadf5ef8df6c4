package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkt.systems/pslog"
)

type numberEvent struct{ N int }

func decodeNumber(data []byte) (any, error) {
	var ev numberEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func quietLogger() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true, MinLevel: pslog.ErrorLevel})
}

func newTestSession(transport Transport) *Session {
	s := NewSession("test", transport, quietLogger())
	s.Register("num", decodeNumber)
	s.Register("ping", Ignore)
	return s
}

func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	return cmd()
}

func TestSessionDeliversEventsInOrderAndSkipsBadFrames(t *testing.T) {
	body := "event: num\ndata: {\"N\":1}\n\n" +
		"event: num\ndata: {not json\n\n" +
		"event: mystery\ndata: {}\n\n" +
		"event: ping\ndata: {}\n\n" +
		"event: num\ndata: {\"N\":2}\n\n"
	srv := sseServer(t, body)
	s := newTestSession(&SSE{})

	opened, ok := run(s.Open(context.Background(), srv.URL)).(OpenedMsg)
	require.True(t, ok, "expected OpenedMsg")
	assert.True(t, s.Current(opened.Gen))

	var got []int
	for i := 0; i < 2; i++ {
		msg, ok := run(s.Next()).(EventMsg)
		require.True(t, ok, "event %d", i)
		assert.Equal(t, opened.Gen, msg.Gen)
		got = append(got, msg.Event.(numberEvent).N)
	}
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 1, s.Malformed(), "only the undecodable num frame counts as malformed")

	dropped, ok := run(s.Next()).(DroppedMsg)
	require.True(t, ok, "expected DroppedMsg at end of stream")
	assert.Equal(t, 2, dropped.Delivered)
	assert.Equal(t, DegradedTransport, dropped.Err.Kind)
	assert.True(t, errors.Is(dropped.Err, ErrConnectionLost))
	assert.False(t, s.Live(), "dropped session must release its transport")
}

func TestSessionZeroEventsIsConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	s := newTestSession(&SSE{})

	dropped, ok := run(s.Open(context.Background(), srv.URL)).(DroppedMsg)
	require.True(t, ok, "expected DroppedMsg")
	assert.Equal(t, 0, dropped.Delivered)
	assert.Equal(t, ConnectFailure, dropped.Err.Kind)
	assert.True(t, dropped.Err.Kind.Fatal())
	assert.True(t, errors.Is(dropped.Err, ErrConnectFailed))
	var ce *ClassifiedError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", dropped.Err), &ce))
	assert.Equal(t, ConnectFailure, ce.Kind)
}

func TestSessionOnlyPingsIsConnectFailure(t *testing.T) {
	srv := sseServer(t, "event: ping\ndata: {}\n\n")
	s := newTestSession(&SSE{})
	_, ok := run(s.Open(context.Background(), srv.URL)).(OpenedMsg)
	require.True(t, ok)

	dropped, ok := run(s.Next()).(DroppedMsg)
	require.True(t, ok)
	assert.Equal(t, ConnectFailure, dropped.Err.Kind)
}

func TestSessionRejectsNonEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, "{}")
	}))
	t.Cleanup(srv.Close)
	s := newTestSession(&SSE{})

	_, ok := run(s.Open(context.Background(), srv.URL)).(DroppedMsg)
	assert.True(t, ok, "non event-stream response must fail the dial")
}

func TestSessionCloseIsIdempotentAndStalesMessages(t *testing.T) {
	srv := sseServer(t, "event: num\ndata: {\"N\":1}\n\n")
	s := newTestSession(&SSE{})
	opened, ok := run(s.Open(context.Background(), srv.URL)).(OpenedMsg)
	require.True(t, ok)

	s.Close()
	s.Close()
	assert.False(t, s.Current(opened.Gen))
	assert.False(t, s.Live())
	assert.Nil(t, s.Next(), "closed session has nothing to read")

	// Closing before natural termination and then again after is still a no-op.
	s.Close()
}

func TestSessionOpenReplacesPreviousSubscription(t *testing.T) {
	srv := sseServer(t, "event: num\ndata: {\"N\":1}\n\n")
	s := newTestSession(&SSE{})
	first, ok := run(s.Open(context.Background(), srv.URL)).(OpenedMsg)
	require.True(t, ok)

	staleDial := s.Open(context.Background(), srv.URL)
	second := s.Open(context.Background(), srv.URL)
	assert.False(t, s.Current(first.Gen))
	assert.Nil(t, run(staleDial), "superseded dial must be a no-op")

	opened, ok := run(second).(OpenedMsg)
	require.True(t, ok)
	assert.True(t, s.Current(opened.Gen))
	s.Close()
}

func TestSessionWebSocketTransport(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"num","data":{"N":1}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not an envelope`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"num","data":{"N":2}}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	t.Cleanup(srv.Close)

	s := newTestSession(&WebSocket{})
	_, ok := run(s.Open(context.Background(), srv.URL)).(OpenedMsg)
	require.True(t, ok)

	for want := 1; want <= 2; want++ {
		msg, ok := run(s.Next()).(EventMsg)
		require.True(t, ok, "event %d", want)
		assert.Equal(t, want, msg.Event.(numberEvent).N)
	}
	dropped, ok := run(s.Next()).(DroppedMsg)
	require.True(t, ok)
	assert.Equal(t, DegradedTransport, dropped.Err.Kind)
	assert.True(t, errors.Is(dropped.Err, io.EOF))
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"http://localhost:8000/api/jobs/1/stream", "ws://localhost:8000/api/jobs/1/stream"},
		{"https://example.com/x", "wss://example.com/x"},
		{"ws://already", "ws://already"},
	}
	for _, tt := range tests {
		if got := WebSocketURL(tt.in); got != tt.want {
			t.Errorf("WebSocketURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestForName(t *testing.T) {
	assert.Equal(t, "websocket", ForName("websocket").Name())
	assert.Equal(t, "sse", ForName("sse").Name())
	assert.Equal(t, "sse", ForName("").Name())
}
