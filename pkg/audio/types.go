package audio

import "time"

// AudioFrame represents a single frame of raw PCM audio flowing through a
// session: one chunk of the 16-bit signed little-endian samples a client
// sends between %s packets, on its way through the endpoint detector to the
// transcriber.
type AudioFrame struct {
	// Data holds the PCM samples. Sample rate and channel count are fixed
	// for the lifetime of the server, driven by the audio section of its
	// configuration.
	Data []byte

	// SampleRate in Hz, e.g. 16000.
	SampleRate int

	// Channels is always 1; the wire protocol carries mono audio only.
	Channels int

	// Timestamp marks when this frame was received, relative to session start.
	Timestamp time.Duration
}
