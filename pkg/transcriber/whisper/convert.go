package whisper

import "encoding/binary"

// pcmToFloat32Mono converts 16-bit signed little-endian mono PCM audio to
// float32 samples normalised to the range [-1.0, 1.0]. The input length must
// be even (two bytes per sample); any trailing odd byte is silently ignored.
func pcmToFloat32Mono(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}
