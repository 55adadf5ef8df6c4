package job

import (
	"testing"

	"github.com/GChainey/substackToKindle/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apply(s *State, events ...Event) {
	for _, ev := range events {
		s.Apply(ev)
	}
}

func TestScenarioAStreamToCompletion(t *testing.T) {
	s := NewState()
	slugs := []string{"a", "b", "c", "d", "e"}
	apply(&s, StatusSnapshot{Status: Pending, Progress: 0, Total: 5})
	for i, slug := range slugs {
		apply(&s,
			Progress{Progress: i + 1, Total: 5, CurrentItem: "post-" + slug},
			ItemComplete{ID: slug, Label: "Post " + slug, Metric: 3},
		)
	}
	apply(&s, StatusSnapshot{Status: Completed, Progress: 5, Total: 5}, Done{})

	assert.Equal(t, Completed, s.Status)
	assert.Equal(t, 5, s.Progress)
	assert.Equal(t, 5, s.Total)
	assert.Len(t, s.Completed, 5)
	assert.True(t, s.SentinelSeen)
	assert.Equal(t, 1.0, s.Percent())
	for i, slug := range slugs {
		assert.Equal(t, slug, s.Completed[i].ID, "completed items keep receipt order")
	}
}

func TestProgressPromotesPendingToRunning(t *testing.T) {
	s := NewState()
	require.True(t, s.Apply(Progress{Progress: 1, Total: 5, CurrentItem: "post-a"}))
	assert.Equal(t, Running, s.Status)
	assert.Equal(t, "post-a", s.CurrentItem)
}

func TestProgressNeverOverridesStatus(t *testing.T) {
	s := NewState()
	apply(&s, StatusSnapshot{Status: Running, Progress: 2, Total: 5})
	s.Apply(Progress{Progress: 3, Total: 5})
	assert.Equal(t, Running, s.Status)
}

func TestMonotonicProgressEqualsLastValue(t *testing.T) {
	tests := [][]int{
		{0, 1, 2, 3},
		{1, 1, 1},
		{0, 5},
		{2, 2, 4, 4, 4, 9},
	}
	for _, seq := range tests {
		s := NewState()
		for _, p := range seq {
			s.Apply(Progress{Progress: p, Total: 10})
		}
		assert.Equal(t, seq[len(seq)-1], s.Progress, "sequence %v", seq)
	}
}

func TestStaleProgressIgnored(t *testing.T) {
	s := NewState()
	apply(&s, Progress{Progress: 3, Total: 5, CurrentItem: "c"})
	assert.False(t, s.Apply(Progress{Progress: 2, Total: 5, CurrentItem: "b"}))
	assert.False(t, s.Apply(StatusSnapshot{Status: Running, Progress: 1, Total: 5, CurrentItem: "a"}))
	assert.Equal(t, 3, s.Progress)
	assert.Equal(t, "c", s.CurrentItem)
}

func TestStaleSnapshotMayStillTerminate(t *testing.T) {
	s := NewState()
	apply(&s, Progress{Progress: 4, Total: 5})
	assert.True(t, s.Apply(StatusSnapshot{Status: Failed, Progress: 3, Total: 5, Error: "boom"}))
	assert.Equal(t, Failed, s.Status)
	assert.Equal(t, 4, s.Progress)
	assert.Equal(t, "boom", s.Error)
}

func TestIdenticalStatusReplayIsNoop(t *testing.T) {
	s := NewState()
	snap := StatusSnapshot{Status: Running, Progress: 2, Total: 5, CurrentItem: "post-b"}
	require.True(t, s.Apply(snap))
	before := s
	assert.False(t, s.Apply(snap))
	assert.Equal(t, before, s)
}

func TestStatusNeverMovesBackwards(t *testing.T) {
	s := NewState()
	apply(&s, StatusSnapshot{Status: Running, Progress: 1, Total: 5})
	s.Apply(StatusSnapshot{Status: Pending, Progress: 1, Total: 5})
	assert.Equal(t, Running, s.Status)
}

func TestTerminalFreezesState(t *testing.T) {
	s := NewState()
	apply(&s, StatusSnapshot{Status: Completed, Progress: 5, Total: 5})
	frozen := s

	assert.False(t, s.Apply(Progress{Progress: 6, Total: 6}))
	assert.False(t, s.Apply(ItemComplete{ID: "late"}))
	assert.False(t, s.Apply(ErrorReported{Message: "late"}))
	assert.False(t, s.Apply(Warning{Message: "late"}))
	assert.False(t, s.Apply(StatusSnapshot{Status: Failed, Progress: 5, Total: 5}))
	assert.Equal(t, frozen, s)

	assert.True(t, s.Apply(Done{}), "the sentinel is still recorded")
	assert.False(t, s.Apply(Done{}))
}

func TestItemCompleteDeduplicatedBySlug(t *testing.T) {
	s := NewState()
	assert.True(t, s.Apply(ItemComplete{ID: "a", Label: "A", Metric: 1}))
	assert.False(t, s.Apply(ItemComplete{ID: "a", Label: "A", Metric: 1}))
	assert.True(t, s.Apply(ItemComplete{ID: "b", Label: "B"}))
	assert.Len(t, s.Completed, 2)
	assert.Equal(t, 0, s.Progress, "item completion does not touch progress")
	assert.Equal(t, Pending, s.Status)
}

func TestErrorDoesNotForceFailed(t *testing.T) {
	s := NewState()
	apply(&s, Progress{Progress: 1, Total: 5})
	assert.True(t, s.Apply(ErrorReported{Message: "Post foo failed"}))
	assert.Equal(t, Running, s.Status)
	assert.Equal(t, "Post foo failed", s.Error)
	assert.False(t, s.Apply(ErrorReported{Message: "Post foo failed"}))
}

func TestWarningIsRecordedWithoutStatusChange(t *testing.T) {
	s := NewState()
	assert.True(t, s.Apply(Warning{Message: "slow image"}))
	assert.Equal(t, []string{"slow image"}, s.Warnings)
	assert.Equal(t, Pending, s.Status)
}

func TestReplayedWarningIsNoop(t *testing.T) {
	s := NewState()
	w := Warning{Message: "paid-post: preview only"}
	require.True(t, s.Apply(w))
	assert.False(t, s.Apply(w))
	assert.True(t, s.Apply(Warning{Message: "other-post: preview only"}))
	assert.Equal(t, []string{"paid-post: preview only", "other-post: preview only"}, s.Warnings)
}

func TestTotalNeverShrinksBeforeTerminal(t *testing.T) {
	s := NewState()
	apply(&s, Progress{Progress: 2, Total: 5})

	s.Apply(StatusSnapshot{Status: Running, Progress: 2, Total: 3})
	assert.Equal(t, 5, s.Total, "a running snapshot must not shrink total")
	s.Apply(Progress{Progress: 3, Total: 4})
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 3, s.Progress)

	s.Apply(StatusSnapshot{Status: Running, Progress: 3, Total: 6})
	assert.Equal(t, 6, s.Total, "total may still grow")

	s.Apply(StatusSnapshot{Status: Completed, Progress: 4, Total: 4})
	assert.Equal(t, 4, s.Total, "the terminal snapshot is authoritative")
}

func TestDoneDoesNotSetStatus(t *testing.T) {
	s := NewState()
	apply(&s, Progress{Progress: 2, Total: 5}, Done{})
	assert.Equal(t, Running, s.Status)
	assert.True(t, s.SentinelSeen)
}

func TestFromResponse(t *testing.T) {
	snap := FromResponse(client.JobStatusResponse{Status: client.JobRunning, Progress: 2, Total: 5, CurrentPost: "x"})
	assert.Equal(t, StatusSnapshot{Status: Running, Progress: 2, Total: 5, CurrentItem: "x"}, snap)
}

func TestPercent(t *testing.T) {
	tests := []struct {
		progress, total int
		want            float64
	}{
		{0, 0, 0},
		{1, 4, 0.25},
		{6, 5, 1},
	}
	for _, tt := range tests {
		s := State{Progress: tt.progress, Total: tt.total}
		if got := s.Percent(); got != tt.want {
			t.Errorf("Percent(%d/%d) = %v, want %v", tt.progress, tt.total, got, tt.want)
		}
	}
}
