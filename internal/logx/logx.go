// Package logx wires pslog for the stk binaries and annotates loggers per stream.
package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/pslog"
)

// Options selects the sink and verbosity of a logger built by New.
type Options struct {
	Level   string
	Console bool
	NoColor bool
}

// New returns a logger writing to w. Unknown levels fall back to info.
func New(w io.Writer, opts Options) pslog.Logger {
	o := pslog.Options{Mode: pslog.ModeStructured, NoColor: opts.NoColor, VerboseFields: true}
	if opts.Console {
		o.Mode = pslog.ModeConsole
	}
	switch strings.ToLower(strings.TrimSpace(opts.Level)) {
	case "trace":
		o.MinLevel = pslog.TraceLevel
	case "debug":
		o.MinLevel = pslog.DebugLevel
	case "error":
		o.MinLevel = pslog.ErrorLevel
	default:
		o.MinLevel = pslog.InfoLevel
	}
	return pslog.NewWithOptions(w, o)
}

// OpenFile opens (appending) the TUI log file, creating parent directories.
// The caller closes the returned file.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Nop discards everything. Used where no logger was injected.
func Nop() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true, MinLevel: pslog.ErrorLevel})
}

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	if ctx == nil {
		return pslog.Ctx(context.Background())
	}
	return pslog.Ctx(ctx)
}

// WithStream annotates the logger with the logical stream name.
func WithStream(log pslog.Logger, stream string) pslog.Logger {
	if stream != "" {
		log = log.With("stream", stream)
	}
	return log
}

// WithJob annotates the logger with a job id when available.
func WithJob(log pslog.Logger, jobID string) pslog.Logger {
	if jobID != "" {
		log = log.With("job", jobID)
	}
	return log
}

// WithSubdomain annotates the logger with the newsletter being loaded.
func WithSubdomain(log pslog.Logger, subdomain string) pslog.Logger {
	if subdomain != "" {
		log = log.With("subdomain", subdomain)
	}
	return log
}
