// Package epd implements the endpoint-detection sliding-frame state
// machine that decides when a buffered span of audio constitutes one
// complete utterance, ready to hand to a transcriber.
//
// A Detector owns exactly one classifier.Classifier and is fed one frame at
// a time by a worker's relay loop. It tracks three states:
//
//   - idle: no speech has been seen since the last utterance closed.
//   - inSpeech: speech has been detected and audio is being accumulated.
//   - justClosed: momentary state entered the instant an utterance
//     boundary is recognized; Feed always reports a ready utterance in the
//     same call that reaches this state and the Detector falls back to
//     idle immediately after.
package epd

import "github.com/MrWong99/asrstreamd/pkg/classifier"

// State names the endpoint detector's current phase.
type State int

const (
	StateIdle State = iota
	StateInSpeech
	StateJustClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInSpeech:
		return "in_speech"
	case StateJustClosed:
		return "just_closed"
	default:
		return "unknown"
	}
}

// silenceFramesThreshold is the number of consecutive non-speech frames
// that close an utterance. At a 30ms frame this is ~480ms of trailing
// silence.
const silenceFramesThreshold = 16

// bytesPerSample is fixed: the wire protocol only ever carries 16-bit
// signed PCM.
const bytesPerSample = 2

// Utterance is one closed span of speech audio, together with the byte
// offsets (relative to session start) it was cut from. The worker reports
// StartSeconds and EndSeconds, derived from these offsets, as the
// utterance's session time; a transcriber's segment timestamps are not used.
type Utterance struct {
	Audio      []byte
	StartByte  int
	EndByte    int
	SampleRate int
}

// StartSeconds returns the utterance's start time relative to session start.
func (u Utterance) StartSeconds() float64 {
	return float64(u.StartByte) / float64(u.SampleRate*bytesPerSample)
}

// EndSeconds returns the utterance's end time relative to session start.
func (u Utterance) EndSeconds() float64 {
	return float64(u.EndByte) / float64(u.SampleRate*bytesPerSample)
}

// Detector is the per-session endpoint-detection state machine.
type Detector struct {
	classifier classifier.Classifier
	sampleRate int

	maxUtteranceBytes int

	state      State
	buf        []byte
	vadIndex   int // byte offset of buf: how much audio has been fed so far
	epdStart   int // byte offset where the current utterance began
	silenceCnt int
}

// New creates a Detector bound to c. sampleRate is in Hz and
// maxUtteranceMs bounds how long a single utterance may run before it is
// force-closed regardless of continued speech (10 000ms per the protocol's
// ten-second cap).
func New(c classifier.Classifier, sampleRate, maxUtteranceMs int) *Detector {
	return &Detector{
		classifier:        c,
		sampleRate:        sampleRate,
		maxUtteranceBytes: sampleRate * bytesPerSample * maxUtteranceMs / 1000,
		state:             StateIdle,
	}
}

// State returns the detector's current phase.
func (d *Detector) State() State { return d.state }

// Feed appends frame to the session buffer, classifies it, and advances the
// state machine. When an utterance boundary is reached — either by
// trailing silence or by the maximum-utterance-duration cap — it returns
// the accumulated utterance audio and ready=true. The Detector returns to
// StateIdle in the same call.
func (d *Detector) Feed(frame []byte) (utterance Utterance, ready bool, err error) {
	d.buf = append(d.buf, frame...)
	d.vadIndex += len(frame)

	speech, err := d.classifier.IsSpeech(frame, d.sampleRate)
	if err != nil {
		return Utterance{}, false, err
	}

	switch d.state {
	case StateIdle:
		if speech {
			d.state = StateInSpeech
			d.epdStart = d.vadIndex - len(frame)
			d.silenceCnt = 0
		}

	case StateInSpeech:
		if speech {
			d.silenceCnt = 0
		} else {
			d.silenceCnt++
			if d.silenceCnt >= silenceFramesThreshold {
				d.state = StateJustClosed
			}
		}
		if d.maxUtteranceBytes > 0 && d.vadIndex-d.epdStart >= d.maxUtteranceBytes {
			d.state = StateJustClosed
		}
	}

	if d.state == StateJustClosed {
		utterance = Utterance{
			Audio:      d.buf[d.epdStart:d.vadIndex],
			StartByte:  d.epdStart,
			EndByte:    d.vadIndex,
			SampleRate: d.sampleRate,
		}
		d.state = StateIdle
		d.silenceCnt = 0
		return utterance, true, nil
	}
	return Utterance{}, false, nil
}

// Flush closes out any in-progress utterance without waiting for trailing
// silence — used when the client sends %f to end the session's audio.
// It reports ready=false if no speech had been detected since the last
// utterance closed.
func (d *Detector) Flush() (utterance Utterance, ready bool) {
	if d.state != StateInSpeech {
		return Utterance{}, false
	}
	utterance = Utterance{
		Audio:      d.buf[d.epdStart:d.vadIndex],
		StartByte:  d.epdStart,
		EndByte:    d.vadIndex,
		SampleRate: d.sampleRate,
	}
	d.state = StateIdle
	d.silenceCnt = 0
	return utterance, true
}

// Reset clears all per-session state, including the accumulated audio
// buffer and the classifier's own internal state. Call once per new
// session before the first Feed.
func (d *Detector) Reset() {
	d.classifier.Reset()
	d.buf = nil
	d.vadIndex = 0
	d.epdStart = 0
	d.silenceCnt = 0
	d.state = StateIdle
}
