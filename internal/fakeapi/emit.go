package fakeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GChainey/substackToKindle/internal/stream"
)

const writeTimeout = 10 * time.Second

// emitter writes named events to one subscriber in either framing.
type emitter interface {
	Emit(event string, payload any) error
	// Gone is closed when the subscriber disconnects.
	Gone() <-chan struct{}
	// Finish ends the stream cleanly after a terminal event.
	Finish()
	// Cut ends the stream abruptly, as a dying proxy would.
	Cut()
	Framing() string
}

// openEmitter upgrades WebSocket requests and answers everything else as
// text/event-stream.
func (s *Server) openEmitter(w http.ResponseWriter, r *http.Request) (emitter, error) {
	if websocket.IsWebSocketUpgrade(r) {
		upgrader := websocket.Upgrader{CheckOrigin: checkOrigin}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return nil, err
		}
		return newWSEmitter(conn), nil
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming unsupported")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseEmitter{w: w, flusher: flusher, gone: r.Context().Done()}, nil
}

type sseEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	gone    <-chan struct{}
}

func (e *sseEmitter) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

func (e *sseEmitter) Gone() <-chan struct{} { return e.gone }
func (e *sseEmitter) Finish()               {}
func (e *sseEmitter) Cut()                  {}
func (e *sseEmitter) Framing() string       { return "sse" }

type wsEmitter struct {
	conn *websocket.Conn
	gone chan struct{}
}

func newWSEmitter(conn *websocket.Conn) *wsEmitter {
	e := &wsEmitter{conn: conn, gone: make(chan struct{})}
	// Reads keep control frames flowing and notice the client leaving.
	go func() {
		defer close(e.gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return e
}

func (e *wsEmitter) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_ = e.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return e.conn.WriteJSON(stream.Envelope{Event: event, Data: data})
}

func (e *wsEmitter) Gone() <-chan struct{} { return e.gone }

func (e *wsEmitter) Finish() {
	_ = e.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = e.conn.Close()
}

// Cut closes the socket without a close frame.
func (e *wsEmitter) Cut() { _ = e.conn.Close() }

func (e *wsEmitter) Framing() string { return "websocket" }

// checkOrigin accepts same-host and loopback origins, plus clients that
// send none.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Host == r.Host {
		return true
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'")
		next.ServeHTTP(w, r)
	})
}
