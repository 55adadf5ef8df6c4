package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/api/", time.Second)
}

func TestNewHTTPClientDefaults(t *testing.T) {
	c := NewHTTPClient("", 0)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, "http://localhost:8000/api/jobs/a%2Fb/stream", c.JobStreamURL("a/b"))
	assert.Equal(t, "http://localhost:8000/api/newsletter/astral/posts/stream", c.PostsStreamURL("astral"))
	assert.Equal(t, "http://localhost:8000/api/jobs/j1/download", c.DownloadURL("j1"))
}

func TestCheckSubdomainDetail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/newsletter/{sub}/check", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("sub") == "ghost" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"Newsletter 'ghost' not found"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(CheckResponse{Subdomain: r.PathValue("sub"), Exists: true, SampleTitle: "Hello"})
	})
	c := newTestClient(t, mux)

	got, err := c.CheckSubdomain(context.Background(), "astral")
	require.NoError(t, err)
	assert.True(t, got.Exists)
	assert.Equal(t, "Hello", got.SampleTitle)

	_, err = c.CheckSubdomain(context.Background(), "ghost")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Newsletter 'ghost' not found", err.Error())
}

func TestAPIErrorWithoutDetail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	c := newTestClient(t, mux)

	_, err := c.GetJobStatus(context.Background(), "j1")
	require.Error(t, err)
	assert.Equal(t, "GET /jobs/j1: 500", err.Error())
}

func TestCreateJob(t *testing.T) {
	var bodies []map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		_ = json.NewEncoder(w).Encode(JobCreateResponse{JobID: "job-1"})
	})
	c := newTestClient(t, mux)

	_, err := c.CreateJob(context.Background(), "astral", nil, "")
	assert.ErrorIs(t, err, ErrNoPostsSelected)
	assert.Empty(t, bodies, "no request when nothing is selected")

	id, err := c.CreateJob(context.Background(), "astral", []string{"a", "b"}, "  ")
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "session_cookie")
	assert.Nil(t, bodies[0]["session_cookie"], "blank cookie is sent as null")

	_, err = c.CreateJob(context.Background(), "astral", []string{"a"}, "s=1")
	require.NoError(t, err)
	assert.Equal(t, "s=1", bodies[1]["session_cookie"])
}

func TestSendToKindleUnsuccessfulIsNotError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs/{id}/send-to-kindle", func(w http.ResponseWriter, r *http.Request) {
		var req SendToKindleRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(SendToKindleResponse{Success: false, Message: "rejected " + req.KindleEmail})
	})
	c := newTestClient(t, mux)

	resp, err := c.SendToKindle(context.Background(), "j1", " me@kindle.com ")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "rejected me@kindle.com", resp.Message)
}

func TestDownload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/jobs/{id}/download", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "done" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"detail":"Job not complete"}`)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = io.WriteString(w, "PK-zip-bytes")
	})
	c := newTestClient(t, mux)

	var buf bytes.Buffer
	n, err := c.Download(context.Background(), "done", &buf)
	require.NoError(t, err)
	assert.EqualValues(t, len("PK-zip-bytes"), n)
	assert.Equal(t, "PK-zip-bytes", buf.String())

	_, err = c.Download(context.Background(), "pending", io.Discard)
	assert.EqualError(t, err, "Job not complete")
}

func TestDownloadOutlivesRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = io.WriteString(w, "PK-")
		w.(http.Flusher).Flush()
		select {
		case <-time.After(150 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		_, _ = io.WriteString(w, "rest-of-archive")
	}))
	t.Cleanup(srv.Close)
	c := NewHTTPClient(srv.URL+"/api", 50*time.Millisecond)

	var buf bytes.Buffer
	n, err := c.Download(context.Background(), "big", &buf)
	require.NoError(t, err)
	assert.Equal(t, "PK-rest-of-archive", buf.String())
	assert.EqualValues(t, buf.Len(), n)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Download(ctx, "big", io.Discard)
	assert.Error(t, err, "the context still bounds the download")
}
