package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/kmattern/hearsay/audio"
)

const channels = 1

// outbound is one item queued for the network writer: either an audio
// frame or the eof marker that must follow the session's last frame.
type outbound struct {
	eof  bool
	data []byte
}

// captureStream is the slice of the portaudio stream the recorder
// drives. *portaudio.Stream satisfies it.
type captureStream interface {
	Start() error
	Stop() error
	Close() error
}

// Recorder owns the capture stream and relays frames to the network
// writer through a bounded channel. The portaudio callback runs on the
// device context and must never block on I/O: a full channel drops the
// frame, and frames produced after Stop are dropped via the atomic
// flag rather than racing with device teardown.
type Recorder struct {
	stream     captureStream
	out        chan<- outbound
	transcript *Transcript
	recording  atomic.Bool
	dropped    atomic.Uint64
}

// NewRecorder opens a capture stream on the given device (0 means the
// system default) without starting it. portaudio must already be
// initialized.
func NewRecorder(deviceID, sampleRate, frameSamples int, out chan<- outbound, transcript *Transcript) (*Recorder, error) {
	r := &Recorder{out: out, transcript: transcript}

	device, err := selectInputDevice(deviceID)
	if err != nil {
		return nil, err
	}

	slog.Info("Using audio device",
		"deviceName", device.Name,
		"defaultSampleRate", device.DefaultSampleRate,
		"inputChannels", device.MaxInputChannels)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: frameSamples,
	}

	stream, err := portaudio.OpenStream(params, r.onFrame)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	r.stream = stream
	return r, nil
}

// onFrame is the capture callback.
func (r *Recorder) onFrame(in []int16) {
	if !r.recording.Load() {
		// Late frames after Stop are dropped, never transmitted: the
		// session on the other side has already flushed.
		return
	}

	select {
	case r.out <- outbound{data: audio.EncodePCM16(in)}:
	default:
		n := r.dropped.Add(1)
		if n%50 == 1 {
			slog.Warn("Send queue full, dropping audio frame", "totalDropped", n)
		}
	}
}

// Recording reports whether frames are currently being relayed.
func (r *Recorder) Recording() bool {
	return r.recording.Load()
}

// Start begins a recording session: resets the transcript and starts
// relaying captured frames. Starting while recording is a no-op.
func (r *Recorder) Start() error {
	if !r.recording.CompareAndSwap(false, true) {
		return nil
	}

	r.transcript.Reset()
	if err := r.stream.Start(); err != nil {
		r.recording.Store(false)
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	slog.Info("Recording started")
	return nil
}

// Stop ends the recording session. The eof marker goes through the same
// channel as the frames, so every frame queued before Stop reaches the
// wire first. Unlike the capture callback, Stop runs on the command
// path and may block until the writer makes room; only a cancelled
// context, meaning the connection is already gone, lets it give up.
// Stopping while stopped is a no-op.
func (r *Recorder) Stop(ctx context.Context) error {
	if !r.recording.CompareAndSwap(true, false) {
		return nil
	}

	select {
	case r.out <- outbound{eof: true}:
	case <-ctx.Done():
		slog.Warn("Connection closed before eof could be queued")
	}
	if err := r.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop audio stream: %w", err)
	}
	slog.Info("Recording stopped")
	return nil
}

// Close releases the capture stream.
func (r *Recorder) Close() error {
	return r.stream.Close()
}

func selectInputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID <= 0 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get audio devices: %w", err)
	}
	if deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID %d", deviceID)
	}
	device := devices[deviceID]
	if device.MaxInputChannels == 0 {
		return nil, fmt.Errorf("device %d (%s) is not an input device", deviceID, device.Name)
	}
	return device, nil
}

// ListAudioDevices returns the available input devices.
func ListAudioDevices() ([]portaudio.DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	inputDevices := make([]portaudio.DeviceInfo, 0)
	for _, device := range devices {
		if device.MaxInputChannels > 0 {
			inputDevices = append(inputDevices, *device)
		}
	}
	return inputDevices, nil
}
