// Package prefs holds the user's persisted UI preferences. The value is
// carried explicitly through context and changed only through Store.Update.
package prefs

import (
	"context"
	"errors"
	"strings"

	"github.com/GChainey/substackToKindle/internal/store"
)

const fileName = "prefs.json"

// Layout selects how the post list and the checkout panel are arranged.
type Layout string

const (
	// LayoutCheckout shows selection and conversion in a side panel.
	LayoutCheckout Layout = "checkout"
	// LayoutSticky pins the selection summary to the bottom bar.
	LayoutSticky Layout = "sticky"
)

// Valid reports whether l is a known layout.
func (l Layout) Valid() bool {
	return l == LayoutCheckout || l == LayoutSticky
}

// Next returns the other layout.
func (l Layout) Next() Layout {
	if l == LayoutSticky {
		return LayoutCheckout
	}
	return LayoutSticky
}

// Prefs captures persisted preferences.
type Prefs struct {
	Layout      Layout `json:"layout"`
	KindleEmail string `json:"kindle_email,omitempty"`
}

// Default returns the preferences used before anything was saved: the
// checkout layout and no Kindle address.
func Default() Prefs {
	return Prefs{Layout: LayoutCheckout}
}

func (p Prefs) normalized() Prefs {
	if !p.Layout.Valid() {
		p.Layout = LayoutCheckout
	}
	p.KindleEmail = strings.TrimSpace(p.KindleEmail)
	return p
}

type prefsKey struct{}

// WithContext stores prefs in the context.
func WithContext(ctx context.Context, p Prefs) context.Context {
	if ctx == nil {
		return ctx
	}
	return context.WithValue(ctx, prefsKey{}, p.normalized())
}

// FromContext returns the prefs stored in the context, or Default.
func FromContext(ctx context.Context) Prefs {
	if ctx == nil {
		return Default()
	}
	if p, ok := ctx.Value(prefsKey{}).(Prefs); ok {
		return p
	}
	return Default()
}

// Store loads and saves Prefs.
type Store struct {
	file *store.File[Prefs]
}

// NewStore keeps prefs in dir; empty means the default state directory.
func NewStore(dir string) *Store {
	return &Store{file: store.NewFile[Prefs](dir, fileName, Default)}
}

// Path returns the prefs file path.
func (s *Store) Path() string {
	return s.file.Path()
}

// Load returns saved prefs. A corrupt file yields Default without error.
func (s *Store) Load() (Prefs, error) {
	p, err := s.file.Load()
	if err != nil && !errors.Is(err, store.ErrCorrupt) {
		return Default(), err
	}
	return p.normalized(), nil
}

// Update is the single entry point for changing preferences.
func (s *Store) Update(fn func(*Prefs)) (Prefs, error) {
	p, err := s.file.Update(func(p *Prefs) error {
		*p = p.normalized()
		fn(p)
		*p = p.normalized()
		return nil
	})
	if err != nil {
		return Default(), err
	}
	return p, nil
}
