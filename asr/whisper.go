package asr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kmattern/hearsay/audio"
)

// Whisper runs a whisper-style executable against audio written to a
// temporary WAV file and parses its subtitle-formatted stdout.
type Whisper struct {
	// Path to the whisper executable.
	Path string
	// Path to the model file passed via --model.
	Model string
	// Directory for temporary WAV files; os.TempDir when empty.
	TempDir string
}

// NewWhisper validates the executable and model paths up front so a bad
// configuration fails at startup, not on the first dispatch.
func NewWhisper(path, model, tempDir string) (*Whisper, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("whisper executable not found: %w", err)
	}
	if _, err := os.Stat(model); err != nil {
		return nil, fmt.Errorf("whisper model not found: %w", err)
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Whisper{Path: path, Model: model, TempDir: tempDir}, nil
}

// Recognize writes the samples to a temp WAV, invokes whisper, and
// parses the output into text plus timed segments.
func (w *Whisper) Recognize(ctx context.Context, samples []float32, sampleRate int) (*Output, error) {
	wavPath := filepath.Join(w.TempDir, fmt.Sprintf("dispatch_%s.wav", uuid.New()))
	if err := audio.WriteWAVFile(wavPath, samples, sampleRate); err != nil {
		return nil, fmt.Errorf("failed to stage audio for whisper: %w", err)
	}
	defer os.Remove(wavPath)

	cmd := exec.CommandContext(ctx, w.Path,
		"--model", w.Model,
		wavPath)

	slog.Debug("Executing whisper command",
		"command", cmd.String(),
		"samples", len(samples),
		"sampleRate", sampleRate)

	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			slog.Debug("Whisper command failed",
				"stderr", string(exitErr.Stderr),
				"exitCode", exitErr.ExitCode())
		}
		return nil, fmt.Errorf("whisper execution failed: %w", err)
	}

	return parseWhisperOutput(string(out)), nil
}

// Matches subtitle-style lines: [00:00:00.000 --> 00:00:01.500]  text
var segmentLine = regexp.MustCompile(`^\[(\d{2}):(\d{2}):(\d{2})[.,](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[.,](\d{3})\]\s*(.*)$`)

func parseWhisperOutput(output string) *Output {
	var segments []Segment
	var builder strings.Builder

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "[BLANK_AUDIO]") {
			continue
		}

		text := line
		if m := segmentLine.FindStringSubmatch(line); m != nil {
			text = strings.TrimSpace(m[9])
			if text == "" || strings.Contains(text, "[BLANK_AUDIO]") {
				continue
			}
			segments = append(segments, Segment{
				Text:  text,
				Start: timestampSeconds(m[1], m[2], m[3], m[4]),
				End:   timestampSeconds(m[5], m[6], m[7], m[8]),
			})
		}

		if builder.Len() > 0 {
			builder.WriteString(" ")
		}
		builder.WriteString(text)
	}

	return &Output{
		Text:     strings.TrimSpace(builder.String()),
		Segments: segments,
	}
}

func timestampSeconds(hh, mm, ss, ms string) float64 {
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	s, _ := strconv.Atoi(ss)
	f, _ := strconv.Atoi(ms)
	return float64(h*3600+m*60+s) + float64(f)/1000.0
}
