package client

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	bareSubdomain = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
	substackHost  = regexp.MustCompile(`^([a-zA-Z0-9-]+)\.substack\.com$`)
)

// ParseSubdomain accepts "name", "name.substack.com" or
// "https://name.substack.com/..." and returns the lower-cased name.
func ParseSubdomain(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	if bareSubdomain.MatchString(trimmed) {
		return strings.ToLower(trimmed), true
	}
	raw := trimmed
	if !strings.HasPrefix(raw, "http") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	m := substackHost.FindStringSubmatch(u.Hostname())
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}
