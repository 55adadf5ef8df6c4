package logx

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestWithStreamAndJobAddFields(t *testing.T) {
	capture := &logCapture{}
	log := New(capture, Options{Level: "info", NoColor: true})
	WithJob(WithStream(log, "job"), "j-1").Info("hello")

	entry := capture.firstEntry(t)
	if entry["stream"] != "job" {
		t.Fatalf("expected stream field, got %+v", entry)
	}
	if entry["job"] != "j-1" {
		t.Fatalf("expected job field, got %+v", entry)
	}
}

func TestWithJobSkipsEmptyID(t *testing.T) {
	capture := &logCapture{}
	log := New(capture, Options{Level: "info", NoColor: true})
	WithJob(log, "").Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["job"]; ok {
		t.Fatalf("did not expect job field for empty id")
	}
}

func TestNewHonoursLevel(t *testing.T) {
	capture := &logCapture{}
	log := New(capture, Options{Level: "ERROR", NoColor: true})
	log.Info("dropped")
	if capture.buf.Len() != 0 {
		t.Fatalf("info should be filtered at error level, got %q", capture.buf.String())
	}
	log.Error("kept")
	if !strings.Contains(capture.buf.String(), "kept") {
		t.Fatalf("expected error entry, got %q", capture.buf.String())
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	line, _, _ := strings.Cut(c.buf.String(), "\n")
	if line == "" {
		t.Fatalf("no log entries captured")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("decode log entry %q: %v", line, err)
	}
	return entry
}
