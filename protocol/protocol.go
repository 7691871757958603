// Package protocol defines the messages exchanged over a streaming
// transcription connection. Control and result messages are JSON text
// frames; audio travels as raw PCM16LE binary frames with no framing of
// its own: frames are concatenated by the receiver, not delimited.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// TypeConfig updates a session's sample rate.
	TypeConfig = "config"
	// TypeEOF marks the end of an utterance and forces a flush.
	TypeEOF = "eof"
)

// DefaultSampleRate is assumed until a config message says otherwise.
const DefaultSampleRate = 16000

// ErrUnknownType is returned for control messages whose type the server
// does not recognize. Callers log it and carry on.
var ErrUnknownType = errors.New("unknown control message type")

// Error wraps a malformed control message. It never terminates the
// session; the connection keeps processing subsequent messages.
type Error struct {
	Raw []byte
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("malformed control message: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Control is a client-to-server control message.
type Control struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// Segment is a time-aligned fragment of recognized text. Start and End
// are in seconds relative to the start of the dispatched audio.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Result is the server-to-client response for one dispatch. When Error
// is set, Text is empty and Timestamps is empty; the audio that produced
// the failure has already been discarded and is not retried.
type Result struct {
	Text       string    `json:"text"`
	Timestamps []Segment `json:"timestamps"`
	Error      string    `json:"error,omitempty"`
}

// DecodeControl parses a text frame into a Control message.
//
// Malformed JSON yields a *Error. A config message without a sample rate
// keeps the default. An unrecognized type yields ErrUnknownType so the
// caller can skip the message without tearing anything down.
func DecodeControl(data []byte) (Control, error) {
	var ctl Control
	if err := json.Unmarshal(data, &ctl); err != nil {
		return Control{}, &Error{Raw: data, Err: err}
	}

	switch ctl.Type {
	case TypeConfig:
		if ctl.SampleRate == 0 {
			ctl.SampleRate = DefaultSampleRate
		}
		return ctl, nil
	case TypeEOF:
		return ctl, nil
	default:
		return ctl, fmt.Errorf("%w: %q", ErrUnknownType, ctl.Type)
	}
}

// EncodeControl renders a control message for the wire.
func EncodeControl(ctl Control) ([]byte, error) {
	return json.Marshal(ctl)
}

// EncodeResult renders a result message for the wire. Timestamps is
// always emitted as an array, never null.
func EncodeResult(res Result) ([]byte, error) {
	if res.Timestamps == nil {
		res.Timestamps = []Segment{}
	}
	return json.Marshal(res)
}

// DecodeResult parses a server result frame on the client side.
func DecodeResult(data []byte) (Result, error) {
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, fmt.Errorf("malformed result message: %w", err)
	}
	return res, nil
}
