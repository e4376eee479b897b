// Package worker implements one ASR engine: a long-lived goroutine that
// owns a Transcriber and a Classifier for the server's entire lifetime and
// serves one session's audio at a time, handed to it through In/Out
// channels by the owning pool.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/asrstreamd/internal/epd"
	"github.com/MrWong99/asrstreamd/internal/resilience"
	"github.com/MrWong99/asrstreamd/internal/wire"
	"github.com/MrWong99/asrstreamd/pkg/classifier"
	"github.com/MrWong99/asrstreamd/pkg/transcriber"
)

// Engine is one slot in the fixed-size engine pool: a named transcriber and
// classifier pair, plus the channels a session handler uses to feed it
// audio and collect results. Exactly one goroutine (started by Run) ever
// touches the transcriber/classifier/detector, so no locking is needed
// inside the engine itself.
type Engine struct {
	Name string

	In  chan Input
	Out chan Result

	transcriber transcriber.Transcriber
	detector    *epd.Detector
	breaker     *resilience.CircuitBreaker

	sampleRate int
	language   string
}

// Config bundles an Engine's fixed configuration, set once at pool
// construction and unchanged for the server's lifetime.
type Config struct {
	Name           string
	Transcriber    transcriber.Transcriber
	Classifier     classifier.Classifier
	SampleRate     int
	MaxUtteranceMs int
	Language       string
	QueueDepth     int
}

// New creates an Engine ready to be handed to Run. Its In/Out channels are
// buffered to cfg.QueueDepth (falling back to a small default) so a
// momentarily slow session doesn't block the worker goroutine.
func New(cfg Config) *Engine {
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 16
	}
	return &Engine{
		Name:        cfg.Name,
		In:          make(chan Input, depth),
		Out:         make(chan Result, depth),
		transcriber: cfg.Transcriber,
		detector:    epd.New(cfg.Classifier, cfg.SampleRate, cfg.MaxUtteranceMs),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: cfg.Name,
		}),
		sampleRate: cfg.SampleRate,
		language:   cfg.Language,
	}
}

// Run is the engine's main loop. It returns only when ctx is cancelled, In
// is closed, or a panic is recovered (after which the engine serves no
// further sessions); otherwise it runs across many sessions, one after another,
// mirroring a dedicated worker process that outlives any single
// connection. Each session begins with a %b Input and ends when the engine
// emits a %F Result.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.Out)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine: worker goroutine panicked, engine is now dead", "engine", e.Name, "panic", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-e.In:
			if !ok {
				return
			}
			if in.Code != wire.CodeBegin {
				slog.Debug("engine: ignoring input before session start", "engine", e.Name, "code", in.Code)
				continue
			}
			e.detector.Reset()
			if !e.runSession(ctx) {
				return
			}
		}
	}
}

// runSession processes one session's worth of audio until %f arrives or
// the engine's input channel closes. It reports false if the engine should
// shut down entirely (input channel closed or context cancelled).
func (e *Engine) runSession(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case in, ok := <-e.In:
			if !ok {
				return false
			}
			switch in.Code {
			case wire.CodeSpeech:
				u, ready, err := e.detector.Feed(in.Data)
				if err != nil {
					e.emitError(err)
					continue
				}
				if ready {
					e.transcribeAndEmit(ctx, u)
				}
			case wire.CodeFinish:
				if u, ready := e.detector.Flush(); ready {
					e.transcribeAndEmit(ctx, u)
				}
				e.Out <- Result{Code: wire.CodeDone}
				return true
			default:
				slog.Warn("engine: unexpected input code mid-session", "engine", e.Name, "code", in.Code)
			}
		}
	}
}

// transcribeAndEmit transcribes one flushed utterance and emits exactly one
// %R result for it, text combined across every segment the transcriber
// returned and timed from the utterance's own boundaries — not each
// segment's internal timestamps, which whisper produces relative to its
// own resampled buffer rather than session time.
func (e *Engine) transcribeAndEmit(ctx context.Context, u epd.Utterance) {
	var segments []transcriber.Segment
	err := e.breaker.Execute(func() error {
		var err error
		segments, err = e.transcriber.Transcribe(ctx, u.Audio, e.language)
		return err
	})
	if err != nil {
		e.emitError(fmt.Errorf("transcribe: %w", err))
		return
	}
	combined := combineSegments(segments)
	if combined == "" {
		return
	}
	text := fmt.Sprintf("%3.1f %3.1f : %s", u.StartSeconds(), u.EndSeconds(), combined)
	e.Out <- Result{Code: wire.CodeResult, Data: []byte(text)}
}

// combineSegments joins every segment's text with a single space, skipping
// empty ones, producing one utterance-level transcript.
func combineSegments(segments []transcriber.Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		if seg.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}

func (e *Engine) emitError(err error) {
	slog.Warn("engine: recoverable error", "engine", e.Name, "error", err)
	e.Out <- Result{Code: wire.CodeError, Data: []byte(err.Error())}
}
