package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// DefaultEvent is the event name of SSE frames that carry no "event:" field.
const DefaultEvent = "message"

// SSE reads text/event-stream responses.
type SSE struct {
	// Client defaults to a client without timeout; streams are long lived.
	Client *http.Client
	Header http.Header
}

func (t *SSE) Name() string { return "sse" }

func (t *SSE) Dial(ctx context.Context, url string) (Conn, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range t.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %d %s", url, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/event-stream" {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected content type %q", url, mediaType)
	}
	return &sseConn{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

type sseConn struct {
	body   io.ReadCloser
	reader *bufio.Reader
}

// Next reads lines until a blank line terminates a frame. Comment lines
// (":" prefix, used for keep-alives) and "retry:" are skipped.
func (c *sseConn) Next() (Frame, error) {
	var (
		frame Frame
		data  []string
		seen  bool
	)
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return Frame{}, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if !seen {
				continue
			}
			if frame.Event == "" {
				frame.Event = DefaultEvent
			}
			frame.Data = []byte(strings.Join(data, "\n"))
			return frame, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			frame.Event = value
			seen = true
		case "data":
			data = append(data, value)
			seen = true
		case "id":
			frame.ID = value
			seen = true
		}
	}
}

func (c *sseConn) Close() error {
	return c.body.Close()
}
