// Package stream manages push subscriptions: it dials a transport, reads
// framed events, decodes them through registered decoders and reports
// transport faults classified by how much data was delivered.
package stream

import "context"

// Frame is one named event read off a transport, still undecoded.
type Frame struct {
	Event string
	Data  []byte
	ID    string
}

// Conn is an open subscription. Next blocks until a frame arrives or the
// transport fails; io.EOF means the server closed the stream. Close must
// unblock a pending Next.
type Conn interface {
	Next() (Frame, error)
	Close() error
}

// Transport opens subscriptions to a stream URL.
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
	Name() string
}

// ForName returns the transport registered under name ("sse" or
// "websocket"); unknown names fall back to SSE.
func ForName(name string) Transport {
	if name == "websocket" || name == "ws" {
		return &WebSocket{}
	}
	return &SSE{}
}
