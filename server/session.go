package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side state for one client connection: the
// configured sample rate and the audio accumulated since the last
// dispatch. A session's buffer is mutated only by its own connection
// goroutine; the mutex exists because the introspection API reads
// sessions from other goroutines.
type Session struct {
	ID          uuid.UUID
	ConnectedAt time.Time

	mu         sync.Mutex
	sampleRate int
	threshold  int
	buf        []byte
}

// NewSession creates a session with the default sample rate and the
// given dispatch threshold in bytes.
func NewSession(sampleRate, threshold int) *Session {
	return &Session{
		ID:          uuid.New(),
		ConnectedAt: time.Now(),
		sampleRate:  sampleRate,
		threshold:   threshold,
	}
}

// SetSampleRate applies a config message. Audio already buffered is
// unaffected; the new rate applies to the next dispatch.
func (s *Session) SetSampleRate(rate int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleRate = rate
}

// SampleRate returns the currently configured sample rate.
func (s *Session) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

// Buffered returns the number of bytes awaiting dispatch.
func (s *Session) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Append accumulates a binary audio frame. When the buffer reaches the
// dispatch threshold it returns the entire sample-aligned buffer and
// true, leaving the buffer empty except for an odd trailing byte, which
// is retained so a 16-bit sample is never split across dispatches.
//
// The threshold is a hard byte count, not aligned to silence or word
// boundaries: audio may be cut mid-utterance. Callers must not rely on
// this boundary being word-aligned.
func (s *Session) Append(frame []byte) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, frame...)
	if len(s.buf) < s.threshold {
		return nil, false
	}

	cut := len(s.buf) &^ 1
	chunk := s.buf[:cut:cut]
	if cut == len(s.buf) {
		s.buf = nil
	} else {
		s.buf = append([]byte(nil), s.buf[cut:]...)
	}
	return chunk, true
}

// Flush returns whatever is buffered, possibly nothing, and resets the
// buffer. A trailing odd byte is dropped: once the utterance has ended
// it can never complete a sample.
func (s *Session) Flush() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	cut := len(s.buf) &^ 1
	chunk := s.buf[:cut:cut]
	s.buf = nil
	return chunk
}

// SessionList is the authoritative registry of live sessions. Entries
// are added exactly once when a connection is established and removed
// exactly once when it closes, on every termination path.
type SessionList struct {
	sessions map[uuid.UUID]*Session
	mu       sync.RWMutex
}

// NewSessionList creates an empty registry.
func NewSessionList() *SessionList {
	return &SessionList{
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Add registers a session.
func (sl *SessionList) Add(s *Session) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.sessions[s.ID] = s
}

// Remove deletes a session and reports whether it was present.
func (sl *SessionList) Remove(id uuid.UUID) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	_, ok := sl.sessions[id]
	delete(sl.sessions, id)
	return ok
}

// Get looks up a session by id.
func (sl *SessionList) Get(id uuid.UUID) (*Session, bool) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	s, ok := sl.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (sl *SessionList) Len() int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return len(sl.sessions)
}

// Snapshot returns the current sessions for the introspection API.
func (sl *SessionList) Snapshot() []*Session {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	out := make([]*Session, 0, len(sl.sessions))
	for _, s := range sl.sessions {
		out = append(out, s)
	}
	return out
}
