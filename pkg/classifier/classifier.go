// Package classifier defines the contract between the endpoint-detection
// state machine and the model that scores a single audio frame for the
// presence of speech.
//
// The detector is stateless across calls from the caller's point of view:
// every invocation is handed one frame and returns one verdict, with no
// carried-over argument describing prior frames. An implementation is free
// to keep its own private state between calls (e.g. a recurrent hidden
// state) as long as that state is scoped to a single Classifier instance —
// each worker owns exactly one Classifier for its entire lifetime and feeds
// it frames from a single session at a time.
package classifier

// Classifier decides whether a single audio frame contains speech.
type Classifier interface {
	// IsSpeech reports whether frame (16-bit signed little-endian PCM,
	// sampleRate Hz, mono) contains speech.
	IsSpeech(frame []byte, sampleRate int) (bool, error)

	// Reset clears any per-session state the implementation keeps between
	// calls. Called by the worker whenever it begins a new session so that
	// a previous caller's trailing state cannot leak into the next one.
	Reset()

	// Close releases model resources. Called once when the owning worker
	// shuts down.
	Close() error
}
