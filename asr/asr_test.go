package asr

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmattern/hearsay/audio"
)

type stubRecognizer struct {
	mu      sync.Mutex
	calls   int
	active  int
	maxSeen int
	out     *Output
	err     error
}

func (s *stubRecognizer) Recognize(ctx context.Context, samples []float32, sampleRate int) (*Output, error) {
	s.mu.Lock()
	s.calls++
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	return s.out, s.err
}

func TestDispatchSuccess(t *testing.T) {
	rec := &stubRecognizer{out: &Output{
		Text:     "hello world",
		Segments: []Segment{{Text: "hello world", Start: 0, End: 1.2}},
	}}
	engine := NewEngine(rec)

	res := engine.Dispatch(context.Background(), audio.EncodePCM16(make([]int16, 1600)), 16000)

	assert.Empty(t, res.Error)
	assert.Equal(t, "hello world", res.Text)
	require.Len(t, res.Timestamps, 1)
	assert.Equal(t, 1.2, res.Timestamps[0].End)
	assert.Equal(t, 1, rec.calls)
}

func TestDispatchEmptyBufferSkipsRecognizer(t *testing.T) {
	rec := &stubRecognizer{out: &Output{Text: "should not appear"}}
	engine := NewEngine(rec)

	res := engine.Dispatch(context.Background(), nil, 16000)

	assert.Equal(t, "", res.Text)
	assert.Empty(t, res.Timestamps)
	assert.Empty(t, res.Error)
	assert.Equal(t, 0, rec.calls, "empty buffer must not invoke the recognizer")
}

func TestDispatchRecognizerFailure(t *testing.T) {
	rec := &stubRecognizer{err: errors.New("model exploded")}
	engine := NewEngine(rec)

	res := engine.Dispatch(context.Background(), audio.EncodePCM16(make([]int16, 10)), 16000)

	assert.Equal(t, "", res.Text)
	assert.Empty(t, res.Timestamps)
	assert.Equal(t, "model exploded", res.Error)
}

func TestDispatchNilResultIsError(t *testing.T) {
	engine := NewEngine(&stubRecognizer{})

	res := engine.Dispatch(context.Background(), audio.EncodePCM16(make([]int16, 10)), 16000)

	assert.Equal(t, "unexpected recognizer result", res.Error)
}

func TestDispatchSerializesAcrossCallers(t *testing.T) {
	rec := &stubRecognizer{out: &Output{Text: "ok"}}
	engine := NewEngine(rec)
	pcm := audio.EncodePCM16(make([]int16, 100))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.Dispatch(context.Background(), pcm, 16000)
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, rec.calls)
	assert.Equal(t, 1, rec.maxSeen, "recognizer must never run concurrently")
}

func TestParseWhisperOutput(t *testing.T) {
	out := parseWhisperOutput(`
[00:00:00.000 --> 00:00:01.480]   Hello there.
[00:00:01.480 --> 00:00:03.020]   General Kenobi.

[00:00:03.020 --> 00:00:04.000]  [BLANK_AUDIO]
`)

	assert.Equal(t, "Hello there. General Kenobi.", out.Text)
	require.Len(t, out.Segments, 2)
	assert.Equal(t, Segment{Text: "Hello there.", Start: 0, End: 1.48}, out.Segments[0])
	assert.Equal(t, Segment{Text: "General Kenobi.", Start: 1.48, End: 3.02}, out.Segments[1])
}

func TestParseWhisperOutputPlainText(t *testing.T) {
	out := parseWhisperOutput("just some text\nand more\n")

	assert.Equal(t, "just some text and more", out.Text)
	assert.Empty(t, out.Segments)
}

func TestParseWhisperOutputBlankAudioOnly(t *testing.T) {
	out := parseWhisperOutput("[00:00:00.000 --> 00:00:02.000]  [BLANK_AUDIO]\n")

	assert.Equal(t, "", out.Text)
	assert.Empty(t, out.Segments)
}
