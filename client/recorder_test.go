package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	started int
	stopped int
	closed  int
}

func (f *fakeStream) Start() error { f.started++; return nil }
func (f *fakeStream) Stop() error  { f.stopped++; return nil }
func (f *fakeStream) Close() error { f.closed++; return nil }

func newTestRecorder(out chan outbound) (*Recorder, *fakeStream) {
	stream := &fakeStream{}
	return &Recorder{
		stream:     stream,
		out:        out,
		transcript: NewTranscript(),
	}, stream
}

func TestStopQueuesEOFAfterFrames(t *testing.T) {
	out := make(chan outbound, 8)
	rec, stream := newTestRecorder(out)

	require.NoError(t, rec.Start())
	rec.onFrame([]int16{1, 2, 3})
	rec.onFrame([]int16{4, 5, 6})
	require.NoError(t, rec.Stop(context.Background()))

	first := <-out
	second := <-out
	last := <-out
	assert.False(t, first.eof)
	assert.Len(t, first.data, 6)
	assert.False(t, second.eof)
	assert.True(t, last.eof, "eof must follow every queued frame")
	assert.Equal(t, 1, stream.stopped)
}

func TestStopWaitsForQueueSpace(t *testing.T) {
	out := make(chan outbound, 1)
	rec, _ := newTestRecorder(out)

	require.NoError(t, rec.Start())
	rec.onFrame([]int16{1}) // fills the queue

	stopped := make(chan error, 1)
	go func() {
		stopped <- rec.Stop(context.Background())
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the queue had no room for the eof")
	case <-time.After(50 * time.Millisecond):
	}

	frame := <-out // make room
	assert.False(t, frame.eof)

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop never completed after the queue drained")
	}

	msg := <-out
	assert.True(t, msg.eof, "eof must be delivered once the writer makes room")
}

func TestStopGivesUpWhenContextCancelled(t *testing.T) {
	out := make(chan outbound, 1)
	rec, stream := newTestRecorder(out)

	require.NoError(t, rec.Start())
	rec.onFrame([]int16{1}) // fills the queue

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, rec.Stop(ctx))
	assert.Equal(t, 1, stream.stopped, "the stream stops even without a connection")
	assert.False(t, rec.Recording())
}

func TestStopWhileStoppedIsNoop(t *testing.T) {
	out := make(chan outbound, 1)
	rec, stream := newTestRecorder(out)

	require.NoError(t, rec.Stop(context.Background()))
	assert.Equal(t, 0, stream.stopped)
	assert.Empty(t, out, "no eof is queued outside a recording session")
}

func TestFramesAfterStopAreDropped(t *testing.T) {
	out := make(chan outbound, 8)
	rec, _ := newTestRecorder(out)

	require.NoError(t, rec.Start())
	require.NoError(t, rec.Stop(context.Background()))
	<-out // the eof

	rec.onFrame([]int16{1, 2, 3})
	assert.Empty(t, out, "late frames must never be transmitted")
}

func TestCallbackNeverBlocksOnFullQueue(t *testing.T) {
	out := make(chan outbound, 1)
	rec, _ := newTestRecorder(out)

	require.NoError(t, rec.Start())
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			rec.onFrame([]int16{int16(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("capture callback blocked on a full send queue")
	}
	assert.Equal(t, uint64(9), rec.dropped.Load())
}
