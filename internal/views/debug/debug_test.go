package debug

import (
	"strings"
	"testing"
	"time"
)

func filled(n int) Model {
	m := New("job", "catalog")
	for i := 0; i < n; i++ {
		m.Add("job", KindEvent, "progress")
	}
	return m
}

func TestAddStampsAndFormats(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := New()
	m.now = func() time.Time { return at }
	m.Addf("catalog", KindEvent, "batch %d (%d posts)", 3, 20)

	e := m.Entries[0]
	if e.Message != "batch 3 (20 posts)" || e.Stream != "catalog" || e.Kind != KindEvent {
		t.Errorf("unexpected entry %+v", e)
	}
	if !e.Time.Equal(at) {
		t.Errorf("time = %v", e.Time)
	}
}

func TestBufferIsCapped(t *testing.T) {
	m := filled(capacity + 37)
	if len(m.Entries) != capacity {
		t.Errorf("len = %d, want %d", len(m.Entries), capacity)
	}
}

func TestCount(t *testing.T) {
	m := New("job", "catalog")
	m.Add("job", KindDrop, "eof after 3 events")
	m.Add("job", KindPoll, "status running 1/4")
	m.Add("job", KindPoll, "status running 2/4")
	m.Add("catalog", KindPoll, "odd but counted")

	tests := []struct {
		stream, kind string
		want         int
	}{
		{"job", KindPoll, 2},
		{"", KindPoll, 3},
		{"job", KindDrop, 1},
		{"catalog", KindDrop, 0},
	}
	for _, tt := range tests {
		if got := m.Count(tt.stream, tt.kind); got != tt.want {
			t.Errorf("Count(%q, %q) = %d, want %d", tt.stream, tt.kind, got, tt.want)
		}
	}
}

func TestScrollBounds(t *testing.T) {
	m := filled(20)
	m.ScrollUp(5)
	m.ScrollDown(3)
	if m.Offset != 2 {
		t.Errorf("offset = %d, want 2", m.Offset)
	}
	m.ScrollDown(10)
	if m.Offset != 0 {
		t.Errorf("offset = %d, want 0", m.Offset)
	}
	m.ScrollUp(100)
	if m.Offset != 19 {
		t.Errorf("offset = %d, want 19", m.Offset)
	}
	m.Add("job", KindEvent, "new")
	if m.Offset != 0 {
		t.Error("a new entry should snap back to the bottom")
	}
}

func TestCycleStreamFilters(t *testing.T) {
	m := New("job", "catalog")
	m.Add("job", KindDrop, "job line")
	m.Add("catalog", KindEvent, "catalog line")
	m.Add("", KindInfo, "app line")

	if m.Stream() != "" || len(m.visible()) != 3 {
		t.Fatalf("default filter should show everything")
	}
	m.CycleStream()
	if m.Stream() != "job" {
		t.Fatalf("stream = %q", m.Stream())
	}
	v := m.View(100, 20)
	if strings.Contains(v, "catalog line") || !strings.Contains(v, "job line") || !strings.Contains(v, "app line") {
		t.Errorf("job filter view wrong:\n%s", v)
	}
	m.CycleStream()
	m.CycleStream()
	if m.Stream() != "" {
		t.Errorf("filter should wrap back to all, got %q", m.Stream())
	}
}

func TestViewEmpty(t *testing.T) {
	if v := New().View(80, 20); !strings.Contains(v, "Nothing recorded") {
		t.Error("empty view should say nothing was recorded")
	}
}

func TestViewShowsTally(t *testing.T) {
	m := New()
	m.Add("job", KindDrop, "stream dropped after 3 events")
	m.Add("job", KindPoll, "status running 2/5")
	v := m.View(100, 20)
	for _, want := range []string{"stream dropped", "status running", "drop 1", "poll 1"} {
		if !strings.Contains(v, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}
