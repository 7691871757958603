package client

import (
	"strings"
	"sync"
	"time"
)

// Transcript merges successive partial results into one running text.
//
// Dedup is a deliberate low-cost heuristic for overlapping partial
// streams: a result already contained in the accumulated text is
// dropped. It is not a true diff/merge: a phrase that legitimately
// recurs later in a long session is suppressed, and texts differing
// only by punctuation are treated as distinct. Accepted limitation.
type Transcript struct {
	mu           sync.Mutex
	current      string
	accumulated  string
	sessionStart time.Time
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// OnResult folds one partial result into the transcript. Empty text
// changes nothing. The accumulated text only ever grows within a
// recording session.
func (t *Transcript) OnResult(text string) {
	if text == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = text
	switch {
	case t.accumulated == "":
		t.accumulated = text
	case strings.Contains(t.accumulated, text):
		// Duplicate or already-covered overlap, dropped.
	case strings.Contains(text, t.accumulated):
		// The new text extends the whole transcript (a growing
		// partial); keep the longer form.
		t.accumulated = text
	default:
		t.accumulated += " " + text
	}
}

// Reset clears the transcript for a new recording session and stamps
// its start time.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = ""
	t.accumulated = ""
	t.sessionStart = time.Now()
}

// Current returns the most recent partial text.
func (t *Transcript) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Accumulated returns the merged running transcript.
func (t *Transcript) Accumulated() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accumulated
}

// SessionDuration reports how long the current recording session has
// been running, zero before the first Reset.
func (t *Transcript) SessionDuration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionStart.IsZero() {
		return 0
	}
	return time.Since(t.sessionStart)
}
