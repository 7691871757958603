package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"

	wav "github.com/youpy/go-wav"
)

const readChunkSamples = 4096

// ReadWAV decodes a WAV file into normalized float32 mono samples and
// returns them with the file's sample rate. 8-bit (unsigned), 16-bit,
// 24-bit and 32-bit integer PCM are normalized by their full-scale
// value; multi-channel audio is averaged down to mono.
func ReadWAV(r io.Reader) ([]float32, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV data: %w", err)
	}
	reader := wav.NewReader(bytes.NewReader(data))

	format, err := reader.Format()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV format: %w", err)
	}

	var scale float64
	var offset float64
	switch format.BitsPerSample {
	case 8:
		scale, offset = 128.0, 128.0 // 8-bit WAV is unsigned
	case 16:
		scale = 32768.0
	case 24:
		scale = 8388608.0
	case 32:
		scale = 2147483648.0
	default:
		return nil, 0, fmt.Errorf("unsupported bit depth: %d", format.BitsPerSample)
	}

	numChannels := int(format.NumChannels)
	samples := make([]float32, 0, readChunkSamples)

	for {
		chunk, err := reader.ReadSamples(readChunkSamples)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read WAV samples: %w", err)
		}

		for _, s := range chunk {
			var sum float64
			for ch := 0; ch < numChannels; ch++ {
				sum += float64(reader.IntValue(s, uint(ch))) - offset
			}
			samples = append(samples, float32(sum/float64(numChannels)/scale))
		}
	}

	return samples, int(format.SampleRate), nil
}

// WriteWAV writes normalized float32 samples as a 16-bit mono PCM WAV.
func WriteWAV(w io.Writer, samples []float32, sampleRate int) error {
	writer := wav.NewWriter(w, uint32(len(samples)), channels, uint32(sampleRate), bitsPerSample)

	ints := FloatToInt16(samples)
	wavSamples := make([]wav.Sample, len(ints))
	for i, v := range ints {
		wavSamples[i].Values[0] = int(v)
	}

	if err := writer.WriteSamples(wavSamples); err != nil {
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	return nil
}

// WriteWAVFile writes samples to path, creating or truncating it.
func WriteWAVFile(path string, samples []float32, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}
	defer file.Close()

	return WriteWAV(file, samples, sampleRate)
}
