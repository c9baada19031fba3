// Package render writes finished scan sessions to display surfaces.
package render

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-faster/errors"

	"github.com/aluiziolira/go-barcode-lookup/lookup"
	"github.com/aluiziolira/go-barcode-lookup/session"
)

// Renderer displays terminal session snapshots.
type Renderer interface {
	Render(snap session.Snapshot) error
	Close() error
}

// Multi fans a snapshot out to several renderers.
type Multi struct {
	renderers []Renderer
	mu        sync.Mutex
}

// NewMulti returns a renderer writing to every r in order.
func NewMulti(renderers ...Renderer) *Multi {
	return &Multi{renderers: renderers}
}

// Render passes snap to every renderer, even after one fails.
func (m *Multi) Render(snap session.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, r := range m.renderers {
		if err := r.Render(snap); err != nil {
			errs = append(errs, err)
		}
	}
	return combine("render", errs)
}

// Close closes every renderer.
func (m *Multi) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, r := range m.renderers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return combine("close", errs)
}

func combine(op string, errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return &MultiError{Op: op, Errs: errs}
}

// MultiError collects the failures of several renderers.
type MultiError struct {
	Op   string
	Errs []error
}

func (e *MultiError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return e.Op + ": " + strconv.Itoa(len(e.Errs)) + " outputs failed: " + strings.Join(msgs, "; ")
}

func (e *MultiError) Unwrap() []error {
	return e.Errs
}

// FailureReason is the category shown for a failed lookup. Error details
// stay in the logs.
func FailureReason(snap session.Snapshot) string {
	if snap.Outcome != session.Failed || snap.Err == nil {
		return ""
	}
	return strings.ReplaceAll(lookup.ErrorLabel(snap.Err), "_", " ")
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create directory %q", dir)
	}
	return nil
}

func createFile(filename string) (*os.File, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, errors.Wrap(err, "create output file")
	}
	return f, nil
}
