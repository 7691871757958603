// Package audio converts between the wire representation of audio (raw
// PCM16LE bytes) and the normalized float32 samples the recognizer
// consumes, and reads/writes WAV containers around that data.
package audio

import "encoding/binary"

const (
	channels      = 1  // Mono audio
	bitsPerSample = 16 // Using int16 for samples
)

// DecodePCM16 converts raw little-endian 16-bit PCM into float32 samples
// in [-1.0, 1.0]. An odd trailing byte, which cannot form a sample, is
// ignored.
func DecodePCM16(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

// EncodePCM16 converts int16 samples to little-endian bytes for the wire.
func EncodePCM16(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// FloatToInt16 converts normalized samples back to int16, clamping
// anything outside [-1.0, 1.0].
func FloatToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32768.0
		switch {
		case v > 32767:
			out[i] = 32767
		case v < -32768:
			out[i] = -32768
		default:
			out[i] = int16(v)
		}
	}
	return out
}
