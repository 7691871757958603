package audio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePCM16(t *testing.T) {
	// 0, 16384 (0.5), -32768 (-1.0) as little-endian int16
	pcm := []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0x80}

	samples := DecodePCM16(pcm)
	require.Len(t, samples, 3)
	assert.InDelta(t, 0.0, samples[0], 1e-6)
	assert.InDelta(t, 0.5, samples[1], 1e-6)
	assert.InDelta(t, -1.0, samples[2], 1e-6)
}

func TestDecodePCM16IgnoresOddTrailingByte(t *testing.T) {
	samples := DecodePCM16([]byte{0x00, 0x40, 0x7f})
	assert.Len(t, samples, 1)
}

func TestDecodePCM16Range(t *testing.T) {
	pcm := EncodePCM16([]int16{32767, -32768, 0, 1, -1})
	for _, s := range DecodePCM16(pcm) {
		assert.GreaterOrEqual(t, s, float32(-1.0))
		assert.LessOrEqual(t, s, float32(1.0))
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 12345, -12345, 32767, -32768}
	out := DecodePCM16(EncodePCM16(in))
	require.Len(t, out, len(in))
	for i, v := range in {
		assert.InDelta(t, float32(v)/32768.0, out[i], 1e-6)
	}
}

func TestFloatToInt16Clamps(t *testing.T) {
	out := FloatToInt16([]float32{1.5, -1.5, 0.0})
	assert.Equal(t, []int16{32767, -32768, 0}, out)
}

func TestWAVRoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.5, -0.5, 0.99, -0.99}

	var buf bytes.Buffer
	require.NoError(t, WriteWAV(&buf, in, 16000))

	out, rate, err := ReadWAV(&buf)
	require.NoError(t, err)
	assert.Equal(t, 16000, rate)
	require.Len(t, out, len(in))
	for i := range in {
		// One int16 quantization step of tolerance.
		assert.InDelta(t, in[i], out[i], 1.0/32768.0+1e-6)
	}
}
