//go:build silero

// Package silero implements classifier.Classifier using the Silero VAD v5
// ONNX model, run through ONNX Runtime. It is compiled in only with
// -tags silero, since it requires a real onnxruntime shared library at
// runtime; without the tag, Load returns ErrUnavailable so the rest of the
// server still builds and links.
package silero

import (
	"fmt"
	"sync"

	"github.com/MrWong99/asrstreamd/pkg/classifier"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// windowSize is the number of float32 samples per inference call.
	// Silero VAD v5 at 16 kHz requires exactly 512 samples (32 ms).
	windowSize = 512

	// stateSize is the hidden state dimension per layer; Silero VAD v5 uses
	// a combined state tensor of shape [2, 1, 128].
	stateSize = 128

	expectedSampleRate = 16000
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// Classifier runs Silero VAD v5 inference via ONNX Runtime. It satisfies
// classifier.Classifier; IsSpeech buffers partial windows across calls (a
// worker's frames rarely line up exactly on 512-sample boundaries) and
// carries the model's recurrent hidden state forward until Reset is called.
type Classifier struct {
	mu sync.Mutex

	session *ort.AdvancedSession

	inputTensor  *ort.Tensor[float32] // [1, 512]
	stateTensor  *ort.Tensor[float32] // [2, 1, 128]
	srTensor     *ort.Tensor[int64]   // scalar
	outputTensor *ort.Tensor[float32] // [1, 1]
	stateNTensor *ort.Tensor[float32] // [2, 1, 128]

	pcmBuf    []float32
	threshold float64
}

// Compile-time assertion that Classifier implements classifier.Classifier.
var _ classifier.Classifier = (*Classifier)(nil)

// Available reports that the ONNX runtime backend is compiled in.
func Available() bool { return true }

// Load initializes ONNX Runtime, loads the model at modelPath, and allocates
// the input/output tensors reused by every IsSpeech call. threshold is the
// speech-probability cutoff in [0, 1].
func Load(modelPath string, threshold float64) (classifier.Classifier, error) {
	ortInitOnce.Do(func() {
		libPath, err := resolveORTLibPath()
		if err != nil {
			ortInitErr = fmt.Errorf("resolve ORT lib: %w", err)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("silero: %w", ortInitErr)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, windowSize))
	if err != nil {
		return nil, fmt.Errorf("silero: create input tensor: %w", err)
	}
	stateTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, stateSize))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("silero: create state tensor: %w", err)
	}
	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(expectedSampleRate)})
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		return nil, fmt.Errorf("silero: create sr tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		return nil, fmt.Errorf("silero: create output tensor: %w", err)
	}
	stateNTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, stateSize))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("silero: create stateN tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{inputTensor, stateTensor, srTensor},
		[]ort.Value{outputTensor, stateNTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		stateNTensor.Destroy()
		return nil, fmt.Errorf("silero: create session: %w", err)
	}

	return &Classifier{
		session:      session,
		inputTensor:  inputTensor,
		stateTensor:  stateTensor,
		srTensor:     srTensor,
		outputTensor: outputTensor,
		stateNTensor: stateNTensor,
		pcmBuf:       make([]float32, 0, windowSize*2),
		threshold:    threshold,
	}, nil
}

// IsSpeech buffers frame and runs inference for every complete 512-sample
// window accumulated so far, returning true if the most recently completed
// window scored at or above the configured threshold. If frame does not
// complete a window, no inference runs and IsSpeech reports false; the
// previous window's verdict is not carried over.
func (c *Classifier) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	if sampleRate != expectedSampleRate {
		return false, fmt.Errorf("silero: sample rate %d unsupported, want %d", sampleRate, expectedSampleRate)
	}
	if len(frame)%2 != 0 {
		return false, fmt.Errorf("silero: frame has odd length %d", len(frame))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pcmBuf = append(c.pcmBuf, pcmToFloat32(frame)...)

	speech := false
	haveResult := false
	for len(c.pcmBuf) >= windowSize {
		prob, err := c.infer(c.pcmBuf[:windowSize])
		if err != nil {
			return false, err
		}
		c.pcmBuf = c.pcmBuf[windowSize:]
		speech = float64(prob) >= c.threshold
		haveResult = true
	}
	if !haveResult {
		return false, nil
	}
	return speech, nil
}

// Reset clears the recurrent hidden state and the partial-window buffer.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clearFloat32Slice(c.stateTensor.GetData())
	c.pcmBuf = c.pcmBuf[:0]
}

// Close releases ONNX Runtime resources. Safe to call multiple times.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
		c.inputTensor = nil
	}
	if c.stateTensor != nil {
		c.stateTensor.Destroy()
		c.stateTensor = nil
	}
	if c.srTensor != nil {
		c.srTensor.Destroy()
		c.srTensor = nil
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
		c.outputTensor = nil
	}
	if c.stateNTensor != nil {
		c.stateNTensor.Destroy()
		c.stateNTensor = nil
	}
	return nil
}

func (c *Classifier) infer(window []float32) (float32, error) {
	copy(c.inputTensor.GetData(), window)
	if err := c.session.Run(); err != nil {
		return 0, fmt.Errorf("silero: inference: %w", err)
	}
	prob := c.outputTensor.GetData()[0]
	copy(c.stateTensor.GetData(), c.stateNTensor.GetData())
	return prob, nil
}

func pcmToFloat32(buf []byte) []float32 {
	n := len(buf) / 2
	if n == 0 {
		return nil
	}
	samples := make([]float32, n)
	for i := range n {
		u := uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
		samples[i] = float32(int16(u)) / 32768.0
	}
	return samples
}

func clearFloat32Slice(s []float32) {
	for i := range s {
		s[i] = 0
	}
}
