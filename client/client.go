// Package client streams microphone audio to a transcription server
// over websocket and renders the incrementally accumulated transcript.
//
// Three concerns run concurrently: the portaudio capture callback hands
// frames to the network writer through a bounded channel, the receive
// loop folds results into the transcript, and the stdin command loop
// toggles recording. The command prompt blocks only the command path.
package client

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/gorilla/websocket"

	"github.com/kmattern/hearsay/protocol"
)

const (
	sendQueueDepth = 64

	// Time allowed per outbound write; bounds the teardown drain.
	writeWait = 10 * time.Second
)

// Options configures a client session.
type Options struct {
	// ServerURL is a ws:// or wss:// address.
	ServerURL string
	// DeviceID selects the capture device; 0 uses the default.
	DeviceID int
	// Insecure skips TLS certificate verification.
	Insecure bool
	// CertFile pins the server certificate for wss connections.
	CertFile string
	// SampleRate of capture, sent to the server in the config message.
	SampleRate int
	// FrameSamples per capture callback.
	FrameSamples int
}

// Launch connects, starts recording, and runs until the user quits or
// the connection drops. Returns an error only for startup failures;
// mid-session problems are logged and end the session cleanly.
func Launch(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := dial(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer conn.Close()

	cfg, err := protocol.EncodeControl(protocol.Control{
		Type:       protocol.TypeConfig,
		SampleRate: opts.SampleRate,
	})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, cfg); err != nil {
		return fmt.Errorf("failed to send config: %w", err)
	}
	slog.Info("Connected to server", "serverURL", opts.ServerURL, "sampleRate", opts.SampleRate)

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	transcript := NewTranscript()
	out := make(chan outbound, sendQueueDepth)

	recorder, err := NewRecorder(opts.DeviceID, opts.SampleRate, opts.FrameSamples, out, transcript)
	if err != nil {
		return err
	}
	defer recorder.Close()

	writerDone := make(chan struct{})
	go writeLoop(cancel, conn, out, writerDone)
	go readLoop(ctx, cancel, conn, transcript)

	fmt.Println("\n=== Live transcription ===")
	fmt.Println("Type 's' to stop/start recording")
	fmt.Println("Type 'q' to quit")

	if err := recorder.Start(); err != nil {
		return err
	}

	commandLoop(ctx, recorder)

	// Flush the session before tearing down: Stop queues the eof after
	// any frames already in flight, then the writer drains the queue to
	// the wire before the connection is closed.
	if recorder.Recording() {
		if err := recorder.Stop(ctx); err != nil {
			slog.Error("Failed to stop recording", "error", err)
		}
	}
	close(out)
	<-writerDone

	slog.Debug("Client shutting down")
	return nil
}

func dial(ctx context.Context, opts Options) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if strings.HasPrefix(opts.ServerURL, "wss://") {
		tlsConfig, err := createTLSConfig(opts.Insecure, opts.CertFile)
		if err != nil {
			return nil, err
		}
		dialer.TLSClientConfig = tlsConfig
	}

	conn, resp, err := dialer.DialContext(ctx, opts.ServerURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", opts.ServerURL, err, resp.Status)
		}
		return nil, err
	}
	return conn, nil
}

// writeLoop is the only writer on the connection. It preserves the
// capture ordering: frames and the trailing eof marker leave in exactly
// the order they were queued, and the queue is drained to the wire
// before the loop exits, so an eof enqueued by Stop always reaches the
// server. Closing the channel ends the loop; done signals the drain is
// complete.
func writeLoop(cancel context.CancelFunc, conn *websocket.Conn, out <-chan outbound, done chan<- struct{}) {
	defer close(done)

	for msg := range out {
		var err error
		if msg.eof {
			var data []byte
			data, err = protocol.EncodeControl(protocol.Control{Type: protocol.TypeEOF})
			if err == nil {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				err = conn.WriteMessage(websocket.TextMessage, data)
			}
		} else {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = conn.WriteMessage(websocket.BinaryMessage, msg.data)
		}
		if err != nil {
			slog.Error("Server connection lost", "error", err)
			cancel()
			return
		}
	}
}

// readLoop receives results and folds them into the transcript.
func readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, transcript *Transcript) {
	defer cancel()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				slog.Info("Server connection closed", "error", err)
			}
			return
		}

		res, err := protocol.DecodeResult(data)
		if err != nil {
			slog.Error("Failed to parse result", "error", err)
			continue
		}
		if res.Error != "" {
			slog.Error("Server returned error", "error", res.Error)
			continue
		}

		transcript.OnResult(res.Text)
		if res.Text != "" {
			render(transcript, res.Text)
		}
	}
}

// commandLoop reads single-letter commands from stdin until quit or
// cancellation. Stdin reads happen on their own goroutine so a pending
// prompt never blocks receiving.
func commandLoop(ctx context.Context, recorder *Recorder) {
	cmds := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case cmds <- strings.TrimSpace(strings.ToLower(scanner.Text())):
			case <-ctx.Done():
				return
			}
		}
		close(cmds)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-cmds:
			if !ok {
				return
			}
			switch cmd {
			case "q":
				return
			case "s":
				var err error
				if recorder.Recording() {
					err = recorder.Stop(ctx)
				} else {
					err = recorder.Start()
				}
				if err != nil {
					slog.Error("Failed to toggle recording", "error", err)
				}
			}
		}
	}
}

// render clears the terminal and redraws the transcript state.
func render(transcript *Transcript, current string) {
	fmt.Print("\033c")

	fmt.Println("\n===== Live transcription =====")
	fmt.Printf("\nCurrent: %s\n", current)
	if acc := transcript.Accumulated(); acc != "" {
		fmt.Printf("\nTranscript: %s\n", acc)
	}
	if d := transcript.SessionDuration(); d > 0 {
		fmt.Printf("\nSession: %.1fs\n", d.Seconds())
	}
	fmt.Println("\n's' to stop/start recording, 'q' to quit")
	fmt.Println("==============================")
}

func createTLSConfig(insecure bool, certFile string) (*tls.Config, error) {
	if insecure {
		slog.Warn("Running in insecure mode. This should not be used in production!")
		return &tls.Config{InsecureSkipVerify: true}, nil
	}
	if certFile == "" {
		return &tls.Config{}, nil
	}

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, err
	}

	certPool := x509.NewCertPool()
	if !certPool.AppendCertsFromPEM(certPEM) {
		return nil, fmt.Errorf("failed to append server certificate")
	}
	return &tls.Config{RootCAs: certPool}, nil
}
