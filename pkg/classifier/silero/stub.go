//go:build !silero

package silero

import (
	"errors"

	"github.com/MrWong99/asrstreamd/pkg/classifier"
)

// ErrUnavailable indicates the ONNX-backed Silero classifier is not compiled
// in for this build.
var ErrUnavailable = errors.New("silero: backend not available (build without -tags silero)")

// Available reports that no ONNX runtime is compiled in.
func Available() bool { return false }

// Load returns ErrUnavailable when built without the silero tag.
func Load(_ string, _ float64) (classifier.Classifier, error) {
	return nil, ErrUnavailable
}
