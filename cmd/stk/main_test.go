package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GChainey/substackToKindle/internal/fakeapi"
	"github.com/GChainey/substackToKindle/internal/history"
)

type cli struct {
	dir    string
	config string
	srv    *fakeapi.Server
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	srv := fakeapi.NewServer(fakeapi.Options{EmailConfigured: true})
	srv.AddNewsletter(fakeapi.Newsletter{
		Subdomain: "astral",
		Posts:     fakeapi.GeneratePosts("astral", 6, 2),
		BatchSize: 4,
	})
	srv.AddNewsletter(fakeapi.Newsletter{
		Subdomain: "brittle",
		Posts:     fakeapi.GeneratePosts("brittle", 3, 0),
		Job:       fakeapi.JobScript{FailAt: 1},
	})
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.Close()
		srv.Close()
	})

	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("api_url: %s/api\nstate_dir: %s\npoll_interval: 20ms\nlog_level: error\n", hs.URL, dir)
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))
	return &cli{dir: dir, config: cfg, srv: srv}
}

func (c *cli) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", c.config}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigInitWritesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stk", "config.yaml")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "config", "init"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), path)
	assert.FileExists(t, path)

	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "config", "init"})
	require.Error(t, root.ExecuteContext(context.Background()))

	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "config", "init", "--force"})
	require.NoError(t, root.ExecuteContext(context.Background()))
}

func TestConfigInitIgnoresBrokenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport: carrier-pigeon\n"), 0o600))

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", path, "config", "init", "--force"})
	require.NoError(t, root.ExecuteContext(context.Background()))
}

func TestInvalidTransportFlag(t *testing.T) {
	c := newCLI(t)
	_, err := c.run(t, "--transport", "carrier-pigeon", "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported transport")
}

func TestPostsPrintsTable(t *testing.T) {
	c := newCLI(t)
	posts := fakeapi.GeneratePosts("astral", 6, 2)

	out, err := c.run(t, "posts", "astral")
	require.NoError(t, err)
	assert.Contains(t, out, "astral: 6 posts")
	assert.Contains(t, out, "SLUG")
	assert.NotContains(t, out, "(incomplete)")
	for _, p := range posts {
		assert.Contains(t, out, p.Slug)
	}
	assert.Contains(t, out, "paid")
}

func TestPostsRejectsBadName(t *testing.T) {
	c := newCLI(t)
	_, err := c.run(t, "posts", "not a name!")
	require.Error(t, err)
}

func TestConvertDownloadsAndRecords(t *testing.T) {
	c := newCLI(t)
	posts := fakeapi.GeneratePosts("astral", 6, 2)
	zip := filepath.Join(c.dir, "out", "astral.zip")

	out, err := c.run(t, "convert", "astral", posts[0].Slug, posts[1].Slug, "--out", zip)
	require.NoError(t, err)
	assert.Contains(t, out, "completed 2/2")
	assert.Contains(t, out, "Saved "+zip)

	info, err := os.Stat(zip)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	recs, err := history.New(c.dir, 0).Records("astral")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, history.MethodDownload, recs[0].Method)
	assert.Equal(t, []string{posts[0].Title, posts[1].Title}, recs[0].PostTitles)
	assert.Equal(t, 2, recs[0].PostCount)

	hist, err := c.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, hist, "astral")
	assert.Contains(t, hist, "download")
}

func TestConvertSendsToKindle(t *testing.T) {
	c := newCLI(t)
	posts := fakeapi.GeneratePosts("astral", 6, 2)

	_, err := c.run(t, "convert", "astral", posts[2].Slug, "--kindle", "reader@kindle.com")
	require.NoError(t, err)
	require.Len(t, c.srv.Sent(), 1)

	recs, err := history.New(c.dir, 0).Records("")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, history.MethodKindle, recs[0].Method)
	assert.Equal(t, "reader@kindle.com", recs[0].KindleEmail)

	_, err = c.run(t, "convert", "astral", posts[2].Slug, "--kindle", "Reader <reader@kindle.com>")
	require.Error(t, err)
}

func TestConvertFailedJob(t *testing.T) {
	c := newCLI(t)
	posts := fakeapi.GeneratePosts("brittle", 3, 0)

	_, err := c.run(t, "convert", "brittle", posts[0].Slug, "--out", filepath.Join(c.dir, "b.zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
	assert.NoFileExists(t, filepath.Join(c.dir, "b.zip"))
}

func TestHistoryClear(t *testing.T) {
	c := newCLI(t)
	_, err := history.New(c.dir, 0).Add(history.Record{Subdomain: "astral", PostTitles: []string{"One"}, Method: history.MethodDownload})
	require.NoError(t, err)

	out, err := c.run(t, "history", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "History cleared")

	out, err = c.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No deliveries yet")
}

func TestReadTime(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, ""},
		{7, "7m"},
		{60, "1h00m"},
		{135, "2h15m"},
	}
	for _, tt := range tests {
		if got := readTime(tt.minutes); got != tt.want {
			t.Errorf("readTime(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestHistoryTableSnipsLongTitles(t *testing.T) {
	long := strings.Repeat("A very long newsletter title ", 5)
	out := historyTable([]history.Record{{
		Subdomain:   "astral",
		PostCount:   1,
		PostTitles:  []string{long},
		Method:      history.MethodKindle,
		KindleEmail: "reader@kindle.com",
	}})
	assert.Contains(t, out, "kindle → reader@kindle.com")
	assert.Contains(t, out, "…")
	assert.NotContains(t, out, long)
}
