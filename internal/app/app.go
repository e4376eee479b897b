// Package app wires all asrstreamd subsystems into a running application:
// the engine pool and the TCP listener.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the listener's accept loop, and Shutdown tears
// everything down in order.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/asrstreamd/internal/config"
	"github.com/MrWong99/asrstreamd/internal/pool"
	"github.com/MrWong99/asrstreamd/internal/server"
	"github.com/MrWong99/asrstreamd/internal/worker"
)

// Backends holds the classifier/transcriber factory names selected for
// this run, along with a Registry to resolve them. Kept separate from
// [config.Config] so tests can inject mock backends without touching YAML.
type Backends struct {
	Registry        *config.Registry
	ClassifierName  string
	TranscriberName string
}

// App owns the engine pool, listener, and shutdown sequencing.
type App struct {
	cfg      *config.Config
	pool     *pool.Pool
	listener *server.Listener

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// builtSlot holds one pool slot's constructed backends, filled in by New's
// fan-out and consumed once every slot has either succeeded or the whole
// group has been aborted.
type builtSlot struct {
	transcriber interface{ Close() error }
	classifier  interface{ Close() error }
	engine      *worker.Engine
}

// New builds every engine in the pool (one Transcriber + Classifier pair
// each), binds the listener, and returns an App ready for Run. Engine
// construction fans out across an [errgroup.Group] since model loading is
// I/O- and CPU-bound and independent per slot. After the first failure, a
// slot whose goroutine has not yet begun skips construction; loads already
// in progress run to completion, and New returns once every goroutine has
// finished.
func New(ctx context.Context, cfg *config.Config, backends Backends) (*App, error) {
	a := &App{cfg: cfg}

	slots := make([]builtSlot, cfg.Model.Channel)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Model.Channel; i++ {
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			name := fmt.Sprintf("engine-%d", i)

			tr, err := backends.Registry.CreateTranscriber(backends.TranscriberName, cfg.Model)
			if err != nil {
				return fmt.Errorf("create transcriber for %s: %w", name, err)
			}
			slots[i].transcriber = tr

			cl, err := backends.Registry.CreateClassifier(backends.ClassifierName, cfg.VAD)
			if err != nil {
				return fmt.Errorf("create classifier for %s: %w", name, err)
			}
			slots[i].classifier = cl

			slots[i].engine = worker.New(worker.Config{
				Name:           name,
				Transcriber:    tr,
				Classifier:     cl,
				SampleRate:     cfg.Audio.SampleRate,
				MaxUtteranceMs: 10_000,
				Language:       cfg.Model.Language,
				QueueDepth:     16,
			})
			slog.Info("app: engine initialised", "engine", name, "device", cfg.Model.Device, "model_size", cfg.Model.Size)
			return nil
		})
	}
	buildErr := g.Wait()

	// Register closers for whatever was actually constructed, in slot
	// order, regardless of whether the group as a whole failed — a
	// partially-built slot still holds live model resources that must be
	// released.
	engines := make([]*worker.Engine, 0, cfg.Model.Channel)
	for i := range slots {
		if slots[i].transcriber != nil {
			a.closers = append(a.closers, slots[i].transcriber.Close)
		}
		if slots[i].classifier != nil {
			a.closers = append(a.closers, slots[i].classifier.Close)
		}
		if slots[i].engine != nil {
			engines = append(engines, slots[i].engine)
		}
	}
	if buildErr != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: %w", buildErr)
	}

	a.pool = pool.New(engines)
	a.pool.Start(ctx)

	ln, err := server.Listen(server.Config{
		IP:            cfg.Network.IP,
		Port:          cfg.Network.Port,
		SocketTimeout: cfg.Network.SocketTimeoutDuration(),
		Pool:          a.pool,
	})
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: listen: %w", err)
	}
	a.listener = ln
	a.closers = append(a.closers, ln.Close)

	return a, nil
}

// Pool returns the engine pool, primarily for wiring a health check.
func (a *App) Pool() *pool.Pool { return a.pool }

// Addr returns the address the listener is bound to.
func (a *App) Addr() string { return a.listener.Addr().String() }

// Run blocks accepting and serving connections until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	slog.Info("app: serving", "addr", a.Addr(), "engines", a.pool.Size())
	return a.listener.Serve(ctx)
}

// Shutdown stops accepting new connections and releases every engine's
// resources. It respects ctx's deadline: closers still pending when ctx
// expires are skipped and ctx.Err() is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("app: shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("app: shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("app: closer error", "index", i, "error", err)
			}
		}
		slog.Info("app: shutdown complete")
	})
	return shutdownErr
}

// closeAll runs every closer registered so far, best-effort, used when New
// fails partway through engine construction.
func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("app: cleanup closer error during failed startup", "index", i, "error", err)
		}
	}
	a.closers = nil
}

// ShutdownTimeout is the default grace period main.go gives Shutdown.
const ShutdownTimeout = 15 * time.Second
