package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoders(t *testing.T) {
	d := Decoders()
	tests := []struct {
		name  string
		event string
		data  string
		want  any
	}{
		{"status", "status", `{"job_id":"j","status":"running","progress":2,"total":5,"current_post":"x"}`,
			StatusSnapshot{Status: Running, Progress: 2, Total: 5, CurrentItem: "x"}},
		{"progress", "progress", `{"progress":1,"total":5,"current_post":"post-a","status":"running"}`,
			Progress{Progress: 1, Total: 5, CurrentItem: "post-a"}},
		{"post complete", "post_complete", `{"slug":"a","title":"Post A","images":3}`,
			ItemComplete{ID: "a", Label: "Post A", Metric: 3}},
		{"error", "error", `{"message":"Post x failed"}`, ErrorReported{Message: "Post x failed"}},
		{"error without message", "error", `{}`, ErrorReported{Message: "Unknown error"}},
		{"done", "done", ``, Done{}},
		{"ping", "ping", `{}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decode, ok := d[tt.event]
			require.True(t, ok)
			got, err := decode([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodersRejectMalformed(t *testing.T) {
	d := Decoders()
	tests := []struct{ event, data string }{
		{"status", `{not json`},
		{"status", `{"status":"exploded"}`},
		{"progress", `[1,2]`},
		{"post_complete", `{"title":"no slug"}`},
		{"warning", `{oops`},
		{"error", `"str"`},
	}
	for _, tt := range tests {
		_, err := d[tt.event]([]byte(tt.data))
		assert.Error(t, err, "%s %s", tt.event, tt.data)
	}
}

func TestDecodeWarningKeepsOpaquePayload(t *testing.T) {
	got, err := decodeWarning([]byte(`{"slug":"a","message":"image skipped"}`))
	require.NoError(t, err)
	w := got.(Warning)
	assert.Equal(t, "a: image skipped", w.Message)

	got, err = decodeWarning([]byte(`["anything"]`))
	require.NoError(t, err)
	assert.Equal(t, `["anything"]`, got.(Warning).Message)
}
