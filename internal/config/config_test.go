package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg-state")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIURL != "http://localhost:8000/api" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Transport != "sse" {
		t.Errorf("Transport = %q, want sse", cfg.Transport)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", cfg.PollInterval)
	}
	if cfg.HistoryLimit != 100 {
		t.Errorf("HistoryLimit = %d, want 100", cfg.HistoryLimit)
	}
	if want := "/tmp/xdg-state/stk/stk.log"; cfg.LogFile != want {
		t.Errorf("LogFile = %q, want %q", cfg.LogFile, want)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
api_url: https://stk.example.com/api/
transport: WebSocket
poll_interval: 500ms
http_timeout: 3s
state_dir: /var/lib/stk
log_level: debug
history_limit: 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIURL != "https://stk.example.com/api" {
		t.Errorf("APIURL = %q (trailing slash should be trimmed)", cfg.APIURL)
	}
	if cfg.Transport != "websocket" {
		t.Errorf("Transport = %q", cfg.Transport)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.HTTPTimeout != 3*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.LogFile != "/var/lib/stk/stk.log" {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}
	if cfg.HistoryLimit != 10 {
		t.Errorf("HistoryLimit = %d", cfg.HistoryLimit)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `transport: sse`)
	t.Setenv("STK_TRANSPORT", "websocket")
	t.Setenv("STK_API_URL", "http://10.0.0.2:9000/api")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Transport != "websocket" {
		t.Errorf("Transport = %q, want env override", cfg.Transport)
	}
	if cfg.APIURL != "http://10.0.0.2:9000/api" {
		t.Errorf("APIURL = %q, want env override", cfg.APIURL)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad url", `api_url: localhost`, "api_url"},
		{"bad transport", `transport: carrier-pigeon`, "unsupported transport"},
		{"zero poll", `poll_interval: 0s`, "poll_interval"},
		{"negative history", `history_limit: -1`, "history_limit"},
		{"broken yaml", "api_url: [", "read config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stk", "config.yaml")
	got, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("WriteDefault() error: %v", err)
	}
	if got != path {
		t.Errorf("WriteDefault() path = %q, want %q", got, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "poll_interval: 2s") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after WriteDefault error: %v", err)
	}
	if cfg.PollInterval != 2*time.Second || cfg.Transport != "sse" {
		t.Errorf("round trip mismatch: %+v", cfg)
	}

	if _, err := WriteDefault(path, false); err == nil {
		t.Fatal("expected error when config exists and overwrite is false")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("WriteDefault(overwrite) error: %v", err)
	}
}
