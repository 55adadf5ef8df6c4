package catalog

import (
	"strings"

	"github.com/GChainey/substackToKindle/internal/client"
)

// Selection is the set of slugs picked for conversion, kept in pick order.
type Selection struct {
	order []string
	set   map[string]bool
}

// Toggle adds or removes slug and reports whether it is now selected.
func (s *Selection) Toggle(slug string) bool {
	if s.Has(slug) {
		delete(s.set, slug)
		for i, v := range s.order {
			if v == slug {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return false
	}
	if s.set == nil {
		s.set = make(map[string]bool)
	}
	s.set[slug] = true
	s.order = append(s.order, slug)
	return true
}

// SelectAll selects every post in posts. If all were already selected it
// deselects them instead.
func (s *Selection) SelectAll(posts []client.Post) {
	all := len(posts) > 0
	for _, p := range posts {
		if !s.Has(p.Slug) {
			all = false
			break
		}
	}
	for _, p := range posts {
		if s.Has(p.Slug) == all {
			s.Toggle(p.Slug)
		}
	}
}

// Clear deselects everything.
func (s *Selection) Clear() {
	s.order = nil
	s.set = nil
}

func (s *Selection) Has(slug string) bool {
	return s.set[slug]
}

func (s *Selection) Len() int {
	return len(s.order)
}

// Slugs returns the selected slugs in pick order.
func (s *Selection) Slugs() []string {
	return append([]string(nil), s.order...)
}

// PaidWithoutCookie counts selected paid posts; they need a session cookie.
func (s *Selection) PaidWithoutCookie(posts []client.Post, cookie string) int {
	if strings.TrimSpace(cookie) != "" {
		return 0
	}
	n := 0
	for _, p := range posts {
		if p.Paid() && s.Has(p.Slug) {
			n++
		}
	}
	return n
}

// Filter returns posts whose title or subtitle contains query, ignoring case.
func Filter(posts []client.Post, query string) []client.Post {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return posts
	}
	var out []client.Post
	for _, p := range posts {
		if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Subtitle), q) {
			out = append(out, p)
		}
	}
	return out
}
