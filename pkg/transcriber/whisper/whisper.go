// Package whisper implements transcriber.Transcriber on top of the
// whisper.cpp CGO bindings. Each call to Load opens its own copy of the
// model file; asrstreamd calls Load once per engine slot at startup, so N
// workers hold N copies of the model weights in memory.
//
// The whisper.cpp static library and headers must be available at link time
// via LIBRARY_PATH and C_INCLUDE_PATH.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MrWong99/asrstreamd/pkg/transcriber"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that Transcriber implements transcriber.Transcriber.
var _ transcriber.Transcriber = (*Transcriber)(nil)

// Transcriber wraps its own loaded whisper.cpp model. Each Transcribe call
// allocates a fresh whisper.cpp context, since contexts are not safe for
// concurrent use but the model weights are.
type Transcriber struct {
	model    whisperlib.Model
	language string
}

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithLanguage sets the default BCP-47 language code used when Transcribe is
// called with an empty language argument. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// Load opens the whisper.cpp model at modelPath. The returned Transcriber
// owns the model and must be closed exactly once by whichever component
// owns its lifetime — in asrstreamd, internal/app, which registers its
// Close for Shutdown.
func Load(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	t := &Transcriber{model: model, language: "en"}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Transcribe runs whisper.cpp inference over pcm (16-bit signed
// little-endian mono samples) and returns the recognized segments. An empty
// language falls back to the Transcriber's configured default.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte, language string) ([]transcriber.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if language == "" {
		language = t.language
	}

	samples := pcmToFloat32Mono(pcm)

	wctx, err := t.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("whisper: set language %q: %w", language, err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var segments []transcriber.Segment
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, transcriber.Segment{
			Text:     text,
			StartSec: seg.Start.Seconds(),
			EndSec:   seg.End.Seconds(),
		})
	}
	return segments, nil
}

// Close releases the whisper.cpp model.
func (t *Transcriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}
