// Package history keeps a capped, newest-first log of deliveries.
package history

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GChainey/substackToKindle/internal/store"
)

const (
	fileName = "history.json"

	// DefaultLimit caps the log when no limit is configured.
	DefaultLimit = 100
)

// Method is how a job's EPUBs reached the reader.
type Method string

const (
	MethodDownload Method = "download"
	MethodKindle   Method = "kindle"
)

// Record is one delivery.
type Record struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Subdomain   string    `json:"subdomain"`
	PostCount   int       `json:"postCount"`
	PostTitles  []string  `json:"postTitles"`
	Method      Method    `json:"method"`
	KindleEmail string    `json:"kindleEmail,omitempty"`
	JobID       string    `json:"jobId"`
}

// Log is the persisted delivery history.
type Log struct {
	file  *store.File[[]Record]
	limit int
	now   func() time.Time
}

// New keeps the history in dir; empty means the default state directory.
// limit <= 0 uses DefaultLimit.
func New(dir string, limit int) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log{
		file:  store.NewFile[[]Record](dir, fileName, func() []Record { return nil }),
		limit: limit,
		now:   time.Now,
	}
}

// Path returns the history file path.
func (l *Log) Path() string {
	return l.file.Path()
}

// Records returns deliveries newest first, only those for subdomain when it
// is non-empty. A corrupt file reads as empty.
func (l *Log) Records(subdomain string) ([]Record, error) {
	all, err := l.file.Load()
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return nil, nil
		}
		return nil, err
	}
	if subdomain == "" {
		return all, nil
	}
	var out []Record
	for _, r := range all {
		if strings.EqualFold(r.Subdomain, subdomain) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Add stamps r with a fresh id and time, prepends it and trims the log.
func (l *Log) Add(r Record) (Record, error) {
	r.ID = uuid.NewString()
	r.Timestamp = l.now().UTC()
	if r.PostCount == 0 {
		r.PostCount = len(r.PostTitles)
	}
	_, err := l.file.Update(func(all *[]Record) error {
		next := append([]Record{r}, *all...)
		if len(next) > l.limit {
			next = next[:l.limit]
		}
		*all = next
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return r, nil
}

// Clear removes every record.
func (l *Log) Clear() error {
	return l.file.Save([]Record{})
}
