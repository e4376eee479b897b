// Package pool implements the fixed-size engine pool: N pre-initialized
// ASR engines, each started once at server startup and allocated to
// sessions one at a time for as long as a connection's relay phase lasts.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/asrstreamd/internal/worker"
)

// allocateRetries and allocateInterval bound how long Allocate waits for an
// idle engine before giving up: 60 attempts, one second apart, matching the
// server's "try once a second for up to a minute" busy-pool behaviour.
const (
	allocateRetries  = 60
	allocateInterval = time.Second
)

// ErrNoIdleEngine is returned by Allocate when every engine is still busy
// after the full retry budget has been spent.
var ErrNoIdleEngine = fmt.Errorf("pool: no idle engine available")

// Pool owns a fixed slice of engines and tracks which are currently
// assigned to a session.
type Pool struct {
	mu      sync.Mutex
	engines []*worker.Engine
	busy    []bool
}

// New creates a Pool over engines. The caller is responsible for starting
// each engine's Run goroutine (typically via Start) before sessions begin
// allocating from the pool.
func New(engines []*worker.Engine) *Pool {
	return &Pool{
		engines: engines,
		busy:    make([]bool, len(engines)),
	}
}

// Start launches every engine's Run loop in its own goroutine, bound to
// ctx. Run returns when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for _, e := range p.engines {
		go e.Run(ctx)
	}
}

// Size returns the number of engines in the pool.
func (p *Pool) Size() int { return len(p.engines) }

// Allocate finds an idle engine, marks it busy, and returns it. If every
// engine is busy it retries once a second for up to a minute before
// returning ErrNoIdleEngine; it also returns early if ctx is cancelled.
func (p *Pool) Allocate(ctx context.Context) (*worker.Engine, error) {
	for attempt := 0; attempt < allocateRetries; attempt++ {
		if e, idx := p.tryAllocate(); e != nil {
			slog.Debug("pool: engine allocated", "engine", e.Name, "index", idx)
			return e, nil
		}

		if attempt == allocateRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(allocateInterval):
		}
	}
	return nil, ErrNoIdleEngine
}

func (p *Pool) tryAllocate() (*worker.Engine, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, busy := range p.busy {
		if !busy {
			p.busy[i] = true
			return p.engines[i], i
		}
	}
	return nil, -1
}

// Release marks e idle again and drains any stale messages left on its
// In/Out channels — guarding against a session that ended mid-flight (a
// crashed client, a protocol error) leaving data behind for the next
// session to stumble over.
func (p *Pool) Release(e *worker.Engine) {
	drainResults(e.Out)
	drainInputs(e.In)

	p.mu.Lock()
	defer p.mu.Unlock()
	for i, eng := range p.engines {
		if eng == e {
			p.busy[i] = false
			slog.Debug("pool: engine released", "engine", e.Name, "index", i)
			return
		}
	}
}

// drainResults and drainInputs non-blockingly discard whatever is
// currently buffered on a channel, without waiting for it to close —
// unlike [github.com/MrWong99/asrstreamd/pkg/audio.Drain], which ranges
// until close, these must return immediately because the engine goroutine
// keeps both channels open across sessions.
func drainResults(ch <-chan worker.Result) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func drainInputs(ch chan worker.Input) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// Status reports each engine's name and whether it is currently allocated,
// in pool order — used to answer a %c status query.
type Status struct {
	Name string
	Busy bool
}

// Statuses returns a snapshot of every engine's busy state.
func (p *Pool) Statuses() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Status, len(p.engines))
	for i, e := range p.engines {
		out[i] = Status{Name: e.Name, Busy: p.busy[i]}
	}
	return out
}
