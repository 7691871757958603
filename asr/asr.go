// Package asr dispatches buffered audio to a speech recognizer and maps
// the outcome to wire results. The recognizer is a single shared
// resource (one loaded model); the Engine serializes access to it so at
// most one recognition runs at a time system-wide.
package asr

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kmattern/hearsay/audio"
	"github.com/kmattern/hearsay/protocol"
)

// Segment is one time-aligned fragment of recognized text, in seconds
// relative to the start of the submitted audio.
type Segment struct {
	Text  string
	Start float64
	End   float64
}

// Output is what a recognizer produces for one invocation.
type Output struct {
	Text     string
	Segments []Segment
}

// Recognizer turns normalized audio samples into text. Implementations
// may take arbitrarily long and may fail; they must not retain the
// sample slice after returning.
type Recognizer interface {
	Recognize(ctx context.Context, samples []float32, sampleRate int) (*Output, error)
}

// Engine wraps the shared recognizer and serializes dispatches against
// it. One recognition runs at a time system-wide, so a dispatch may wait
// on another session's in-flight recognition.
type Engine struct {
	mu  sync.Mutex
	rec Recognizer
}

// NewEngine wraps a recognizer in a serialized-access engine.
func NewEngine(rec Recognizer) *Engine {
	return &Engine{rec: rec}
}

// Dispatch converts raw PCM16LE bytes to normalized samples, runs the
// recognizer, and maps the outcome to a wire Result. Failures never
// propagate as errors: they come back as a Result carrying an error
// message, and the caller's session state is unaffected.
func (e *Engine) Dispatch(ctx context.Context, pcm []byte, sampleRate int) protocol.Result {
	return e.Transcribe(ctx, audio.DecodePCM16(pcm), sampleRate)
}

// Transcribe runs already-normalized samples through the shared
// recognizer. Zero samples short-circuit to an empty success result;
// the response cycle still happens, the model is just not bothered.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, sampleRate int) protocol.Result {
	if len(samples) == 0 {
		return protocol.Result{Text: "", Timestamps: []protocol.Segment{}}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	out, err := e.rec.Recognize(ctx, samples, sampleRate)
	if err != nil {
		slog.Error("Recognition failed",
			"error", err,
			"samples", len(samples),
			"sampleRate", sampleRate)
		return protocol.Result{Timestamps: []protocol.Segment{}, Error: err.Error()}
	}
	if out == nil {
		slog.Error("Recognizer returned no result", "samples", len(samples))
		return protocol.Result{Timestamps: []protocol.Segment{}, Error: "unexpected recognizer result"}
	}

	slog.Debug("Recognition complete",
		"samples", len(samples),
		"textLength", len(out.Text),
		"duration", time.Since(start).Seconds())

	timestamps := make([]protocol.Segment, 0, len(out.Segments))
	for _, seg := range out.Segments {
		timestamps = append(timestamps, protocol.Segment{
			Text:  seg.Text,
			Start: seg.Start,
			End:   seg.End,
		})
	}

	return protocol.Result{Text: out.Text, Timestamps: timestamps}
}
