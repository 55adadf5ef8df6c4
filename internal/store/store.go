// Package store persists small JSON documents under the user's state
// directory. Writes go through a temp file and rename, and read-modify-write
// cycles hold an advisory file lock so two stk processes do not interleave.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const appDirName = "stk"

// ErrCorrupt is returned by Load when the file exists but does not parse.
var ErrCorrupt = errors.New("corrupt state file")

// File is one JSON document of type T.
type File[T any] struct {
	path string
	init func() T
}

// NewFile stores name inside dir. Pass an empty dir to use DefaultDir.
// init builds the value returned for a missing file; nil means the zero T.
func NewFile[T any](dir, name string, init func() T) *File[T] {
	if dir == "" {
		dir = DefaultDir()
	}
	if init == nil {
		init = func() T {
			var zero T
			return zero
		}
	}
	return &File[T]{path: filepath.Join(dir, name), init: init}
}

// Path returns the full path to the document.
func (f *File[T]) Path() string {
	return f.path
}

// Load reads the document. A missing file yields the initial value. A file
// that does not parse yields the initial value and an error wrapping
// ErrCorrupt.
func (f *File[T]) Load() (T, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return f.init(), nil
		}
		return f.init(), fmt.Errorf("reading %s: %w", filepath.Base(f.path), err)
	}
	v := f.init()
	if err := json.Unmarshal(data, &v); err != nil {
		return f.init(), fmt.Errorf("%w: %s: %v", ErrCorrupt, filepath.Base(f.path), err)
	}
	return v, nil
}

// Save replaces the document with v.
func (f *File[T]) Save(v T) error {
	unlock, err := f.lock()
	if err != nil {
		return err
	}
	defer unlock()
	return f.write(v)
}

// Update loads the document, applies fn and saves the result while holding
// the lock. A corrupt file is treated as the initial value. If fn returns an
// error nothing is written.
func (f *File[T]) Update(fn func(*T) error) (T, error) {
	unlock, err := f.lock()
	if err != nil {
		return f.init(), err
	}
	defer unlock()

	v, err := f.Load()
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return v, err
	}
	if err := fn(&v); err != nil {
		return v, err
	}
	if err := f.write(v); err != nil {
		return v, err
	}
	return v, nil
}

func (f *File[T]) lock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	fl := flock.New(f.path + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("locking %s: %w", filepath.Base(f.path), err)
	}
	return func() { _ = fl.Unlock() }, nil
}

// write uses an atomic temp-file-then-rename pattern.
func (f *File[T]) write(v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(f.path), err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("renaming %s: %w", filepath.Base(f.path), err)
	}
	committed = true
	return nil
}

// DefaultDir returns ~/.local/state/stk, respecting XDG_STATE_HOME if set.
func DefaultDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local", "state", appDirName)
}
