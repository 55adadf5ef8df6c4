package catalog

import (
	"encoding/json"

	"github.com/GChainey/substackToKindle/internal/client"
	"github.com/GChainey/substackToKindle/internal/stream"
)

// Decoders returns the catalog stream's event decoders keyed by event name.
func Decoders() map[string]stream.DecodeFunc {
	return map[string]stream.DecodeFunc{
		client.EventBatch: decodeBatch,
		client.EventDone:  decodeDone,
		client.EventError: decodeError,
		client.EventPing:  stream.Ignore,
	}
}

func decodeBatch(data []byte) (any, error) {
	var p client.BatchPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return Batch{Posts: p.Posts, TotalSoFar: p.TotalSoFar, Seq: p.Batch}, nil
}

func decodeDone(data []byte) (any, error) {
	var p client.CatalogDonePayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
	}
	return Done{Total: p.Total}, nil
}

func decodeError(data []byte) (any, error) {
	var p client.ErrorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.Message == "" {
		p.Message = "Unknown error"
	}
	return Failure{Message: p.Message}, nil
}
