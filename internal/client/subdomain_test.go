package client

import "testing"

func TestParseSubdomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"astral", "astral", true},
		{"  Astral-Codex ", "astral-codex", true},
		{"astral.substack.com", "astral", true},
		{"https://astral.substack.com/p/some-post", "astral", true},
		{"http://Astral.substack.com", "astral", true},
		{"", "", false},
		{"example.com", "", false},
		{"https://www.example.com/astral", "", false},
		{"bad name", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSubdomain(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseSubdomain(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
