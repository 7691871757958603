package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeControlConfig(t *testing.T) {
	ctl, err := DecodeControl([]byte(`{"type":"config","sample_rate":8000}`))
	require.NoError(t, err)
	assert.Equal(t, TypeConfig, ctl.Type)
	assert.Equal(t, 8000, ctl.SampleRate)
}

func TestDecodeControlConfigDefaultsSampleRate(t *testing.T) {
	ctl, err := DecodeControl([]byte(`{"type":"config"}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultSampleRate, ctl.SampleRate)
}

func TestDecodeControlEOF(t *testing.T) {
	ctl, err := DecodeControl([]byte(`{"type":"eof"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeEOF, ctl.Type)
}

func TestDecodeControlUnknownType(t *testing.T) {
	_, err := DecodeControl([]byte(`{"type":"reticulate"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecodeControlMalformed(t *testing.T) {
	_, err := DecodeControl([]byte(`{"type":`))
	require.Error(t, err)

	var perr *Error
	assert.True(t, errors.As(err, &perr), "want *protocol.Error, got %T", err)
}

func TestEncodeResultNeverNullTimestamps(t *testing.T) {
	data, err := EncodeResult(Result{Text: "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hello","timestamps":[]}`, string(data))
}

func TestEncodeResultError(t *testing.T) {
	data, err := EncodeResult(Result{Error: "model exploded"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"","timestamps":[],"error":"model exploded"}`, string(data))
}

func TestResultRoundTrip(t *testing.T) {
	in := Result{
		Text: "hello world",
		Timestamps: []Segment{
			{Text: "hello", Start: 0, End: 0.48},
			{Text: "world", Start: 0.48, End: 1.02},
		},
	}
	data, err := EncodeResult(in)
	require.NoError(t, err)

	out, err := DecodeResult(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
