package worker

// Input is one unit of work handed to an engine worker: the wire code that
// produced it (%b, %s, or %f) and, for %s, the raw PCM payload.
type Input struct {
	Code string
	Data []byte
}

// Result is one unit of output an engine worker emits back toward its
// session: a recognized utterance (%R), a recoverable error (%E), or the
// terminal end-of-session marker (%F).
type Result struct {
	Code string
	Data []byte
}
