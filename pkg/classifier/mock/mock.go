// Package mock provides a Classifier test double driven by an
// energy threshold, so endpoint-detection tests can exercise realistic
// speech/silence transitions without an ONNX runtime dependency.
package mock

import (
	"encoding/binary"
	"math"
	"sync"
)

// Classifier is a deterministic, energy-based classifier.Classifier. A frame
// is "speech" when its root-mean-square amplitude is at or above Threshold.
type Classifier struct {
	mu        sync.Mutex
	Threshold float64
	resets    int
	closed    bool
}

// New returns a Classifier using threshold as the RMS speech cutoff.
func New(threshold float64) *Classifier {
	return &Classifier{Threshold: threshold}
}

// IsSpeech computes the RMS energy of frame and compares it against
// Threshold.
func (c *Classifier) IsSpeech(frame []byte, _ int) (bool, error) {
	if len(frame) < 2 {
		return false, nil
	}
	n := len(frame) / 2
	var sumSquares float64
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(frame[i*2 : i*2+2]))
		sumSquares += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSquares / float64(n))
	c.mu.Lock()
	threshold := c.Threshold
	c.mu.Unlock()
	return rms >= threshold, nil
}

// Reset records that a new session started; it has no other effect since
// this classifier carries no cross-frame state.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
}

// Resets returns how many times Reset has been called.
func (c *Classifier) Resets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets
}

// Close marks the mock as closed. It never returns an error.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (c *Classifier) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
