// Package mock provides a Transcriber test double that returns
// caller-configured results without running any real inference.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/asrstreamd/pkg/transcriber"
)

// Transcriber is a deterministic, in-memory transcriber.Transcriber. Tests
// configure it with a queue of results to hand back on successive calls, or
// a single Err to return unconditionally.
type Transcriber struct {
	mu      sync.Mutex
	Results [][]transcriber.Segment
	Err     error
	calls   int

	// Closed records whether Close has been invoked, for assertions.
	Closed bool
}

// New returns a Transcriber that yields results in order on each call to
// Transcribe. If more calls are made than there are queued results, the last
// entry in results is repeated.
func New(results ...[]transcriber.Segment) *Transcriber {
	return &Transcriber{Results: results}
}

// Transcribe returns the next queued result (or Err, if set) and records the
// call for later inspection via Calls.
func (t *Transcriber) Transcribe(_ context.Context, _ []byte, _ string) ([]transcriber.Segment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.Err != nil {
		return nil, t.Err
	}
	if len(t.Results) == 0 {
		return nil, nil
	}
	idx := t.calls - 1
	if idx >= len(t.Results) {
		idx = len(t.Results) - 1
	}
	return t.Results[idx], nil
}

// Calls returns the number of times Transcribe has been called.
func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Close marks the mock as closed. It never returns an error.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	return nil
}
