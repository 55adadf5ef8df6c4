package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Envelope is the JSON frame used on WebSocket streams.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WebSocket reads JSON envelopes from a WebSocket. http(s) URLs are
// rewritten to ws(s).
type WebSocket struct {
	Dialer       *websocket.Dialer
	Header       http.Header
	PingInterval time.Duration
}

func (t *WebSocket) Name() string { return "websocket" }

func (t *WebSocket) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	target := WebSocketURL(url)
	conn, resp, err := dialer.DialContext(ctx, target, t.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %d: %w", target, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))

	interval := t.PingInterval
	if interval <= 0 {
		interval = pingInterval
	}
	c := &wsConn{conn: conn, done: make(chan struct{})}
	go c.pingLoop(interval)
	return c, nil
}

// WebSocketURL converts http://host/path → ws://host/path.
func WebSocketURL(url string) string {
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex // serialises ping and close writes
	done    chan struct{}
	once    sync.Once
}

func (c *wsConn) Next() (Frame, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return Frame{}, io.EOF
		}
		return Frame{}, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Event == "" {
		return Frame{}, fmt.Errorf("%w: envelope without event name", ErrMalformedEvent)
	}
	return Frame{Event: env.Event, Data: env.Data}, nil
}

// pingLoop sends periodic pings until the connection is closed.
func (c *wsConn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
