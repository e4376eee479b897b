package pool_test

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/asrstreamd/internal/pool"
	"github.com/MrWong99/asrstreamd/internal/wire"
	"github.com/MrWong99/asrstreamd/internal/worker"
	"github.com/MrWong99/asrstreamd/pkg/classifier/mock"
	transcribermock "github.com/MrWong99/asrstreamd/pkg/transcriber/mock"
)

func newTestPool(t *testing.T, n int) (*pool.Pool, context.CancelFunc) {
	t.Helper()
	engines := make([]*worker.Engine, n)
	for i := range engines {
		engines[i] = worker.New(worker.Config{
			Name:           "test-engine",
			Transcriber:    transcribermock.New(),
			Classifier:     mock.New(1000),
			SampleRate:     16000,
			MaxUtteranceMs: 200,
			Language:       "en",
			QueueDepth:     4,
		})
	}
	p := pool.New(engines)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	return p, cancel
}

func TestAllocate_ReturnsDistinctEnginesUntilExhausted(t *testing.T) {
	p, cancel := newTestPool(t, 2)
	defer cancel()

	ctx := context.Background()
	e1, err := p.Allocate(ctx)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	e2, err := p.Allocate(ctx)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if e1 == e2 {
		t.Fatal("expected two distinct engines")
	}
}

func TestAllocate_ContextCancelled_ReturnsEarly(t *testing.T) {
	p, cancel := newTestPool(t, 1)
	defer cancel()

	ctx := context.Background()
	if _, err := p.Allocate(ctx); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	allocateCtx, allocateCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer allocateCancel()

	start := time.Now()
	_, err := p.Allocate(allocateCtx)
	if err == nil {
		t.Fatal("expected error when pool is exhausted and context expires")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Allocate blocked for %v, want early return on context cancellation", elapsed)
	}
}

func TestRelease_MakesEngineAvailableAgain(t *testing.T) {
	p, cancel := newTestPool(t, 1)
	defer cancel()

	ctx := context.Background()
	e, err := p.Allocate(ctx)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	p.Release(e)

	if _, err := p.Allocate(ctx); err != nil {
		t.Fatalf("Allocate after Release: %v", err)
	}
}

func TestRelease_DrainsStaleChannelState(t *testing.T) {
	p, cancel := newTestPool(t, 1)
	defer cancel()

	ctx := context.Background()
	e, err := p.Allocate(ctx)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	e.In <- worker.Input{Code: wire.CodeBegin}
	e.In <- worker.Input{Code: wire.CodeFinish}
	time.Sleep(50 * time.Millisecond) // let the engine goroutine emit %F

	p.Release(e)

	select {
	case r, ok := <-e.Out:
		if ok {
			t.Fatalf("expected Out to be drained, got leftover result %+v", r)
		}
	default:
	}

	e2, err := p.Allocate(ctx)
	if err != nil {
		t.Fatalf("Allocate after Release: %v", err)
	}
	if e2 != e {
		t.Fatal("expected the single engine to be reallocated")
	}
}

func TestStatuses_ReflectsAllocationState(t *testing.T) {
	p, cancel := newTestPool(t, 2)
	defer cancel()

	for _, s := range p.Statuses() {
		if s.Busy {
			t.Fatalf("engine %q reported busy before any allocation", s.Name)
		}
	}

	e, err := p.Allocate(context.Background())
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	var busyCount int
	for _, s := range p.Statuses() {
		if s.Busy {
			busyCount++
		}
	}
	if busyCount != 1 {
		t.Fatalf("busy engine count = %d, want 1", busyCount)
	}

	p.Release(e)
	for _, s := range p.Statuses() {
		if s.Busy {
			t.Fatalf("engine %q still reported busy after Release", s.Name)
		}
	}
}

func TestSize_ReportsEngineCount(t *testing.T) {
	p, cancel := newTestPool(t, 3)
	defer cancel()

	if got := p.Size(); got != 3 {
		t.Errorf("Size() = %d, want 3", got)
	}
}
