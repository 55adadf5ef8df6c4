package job

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/GChainey/substackToKindle/internal/client"
	"github.com/GChainey/substackToKindle/internal/stream"
)

// Decoders returns the job stream's event decoders keyed by event name.
func Decoders() map[string]stream.DecodeFunc {
	return map[string]stream.DecodeFunc{
		client.EventStatus:       decodeStatus,
		client.EventProgress:     decodeProgress,
		client.EventPostComplete: decodePostComplete,
		client.EventWarning:      decodeWarning,
		client.EventError:        decodeError,
		client.EventDone:         decodeDone,
		client.EventPing:         stream.Ignore,
	}
}

func decodeStatus(data []byte) (any, error) {
	var p client.JobStatusResponse
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if !p.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q", p.Status)
	}
	return FromResponse(p), nil
}

func decodeProgress(data []byte) (any, error) {
	var p client.ProgressPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return Progress{Progress: p.Progress, Total: p.Total, CurrentItem: p.CurrentPost}, nil
}

func decodePostComplete(data []byte) (any, error) {
	var p client.PostCompletePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.Slug == "" {
		return nil, fmt.Errorf("post_complete without slug")
	}
	return ItemComplete{ID: p.Slug, Label: p.Title, Metric: p.Images}, nil
}

// decodeWarning keeps the raw payload; any JSON value is accepted.
func decodeWarning(data []byte) (any, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid json")
	}
	var p client.WarningPayload
	_ = json.Unmarshal(data, &p)
	msg := strings.TrimSpace(p.Message)
	if msg == "" {
		msg = string(data)
	}
	if p.Slug != "" && p.Message != "" {
		msg = p.Slug + ": " + msg
	}
	return Warning{Message: msg, Raw: append([]byte(nil), data...)}, nil
}

func decodeError(data []byte) (any, error) {
	var p client.ErrorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.Message == "" {
		p.Message = "Unknown error"
	}
	return ErrorReported{Message: p.Message}, nil
}

// decodeDone accepts any body, including an empty one.
func decodeDone([]byte) (any, error) {
	return Done{}, nil
}
