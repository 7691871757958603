// Package server accepts streaming transcription connections over
// websocket. Each connection gets its own goroutine and session; audio
// frames accumulate in the session buffer and are dispatched to the
// shared recognition engine when the buffer crosses its threshold or an
// eof control message arrives.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kmattern/hearsay/asr"
	"github.com/kmattern/hearsay/config"
	"github.com/kmattern/hearsay/protocol"
)

const (
	// Time allowed to write a result to the peer.
	writeWait = 10 * time.Second

	// Cap on a single control frame. Audio frames are not limited.
	maxControlBytes = 4096
)

// Server owns the session registry and routes incoming messages to the
// right session's buffer and the shared engine.
type Server struct {
	cfg      config.ServerConfig
	audio    config.AudioConfig
	engine   *asr.Engine
	sessions *SessionList
	metrics  *Metrics
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New assembles a server around the shared recognition engine. The
// session registry is owned here and passed nowhere else; session
// existence is decided in exactly one place.
func New(cfg *config.Config, engine *asr.Engine) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	s := &Server{
		cfg:      cfg.Server,
		audio:    cfg.Audio,
		engine:   engine,
		sessions: NewSessionList(),
		metrics:  NewMetrics(reg),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws", s.handleWebSocket)
	router.HandleFunc("/api/sessions", s.handleListSessions).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpSrv = &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: router,
	}
	return s
}

// Start serves until the context is cancelled, then shuts down
// gracefully. TLS is used when a certificate pair is configured.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		var err error
		if s.cfg.CertFile != "" {
			slog.Info("Starting TLS websocket server", "address", s.cfg.ListenAddr)
			err = s.httpSrv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			slog.Info("Starting websocket server", "address", s.cfg.ListenAddr)
			err = s.httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Debug("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

// Sessions exposes the registry for tests and introspection.
func (s *Server) Sessions() *SessionList {
	return s.sessions
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err, "remoteAddr", r.RemoteAddr)
		return
	}

	sess := NewSession(s.audio.SampleRate, s.audio.DispatchThreshold)
	s.sessions.Add(sess)
	s.metrics.ActiveSessions.Inc()
	s.metrics.SessionsOpened.Inc()

	slog.Info("New client connected", "sessionID", sess.ID, "remoteAddr", r.RemoteAddr)

	defer func() {
		conn.Close()
		// Buffered, never-dispatched audio is discarded with the session.
		s.sessions.Remove(sess.ID)
		s.metrics.ActiveSessions.Dec()
		s.metrics.SessionsClosed.Inc()
		slog.Info("Client connection closed", "sessionID", sess.ID, "remoteAddr", r.RemoteAddr)
	}()

	s.readLoop(r.Context(), conn, sess)
}

// readLoop consumes one connection's messages sequentially. That single
// consumer is what makes dispatches for a session strictly FIFO: a
// second threshold crossing cannot be observed until the previous
// dispatch has completed and its result has been written back.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sess *Session) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Error("WebSocket read error", "error", err, "sessionID", sess.ID)
			} else {
				slog.Debug("Client disconnected", "sessionID", sess.ID)
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			if len(data) > maxControlBytes {
				s.metrics.ProtocolErrors.Inc()
				slog.Warn("Oversized control message skipped", "sessionID", sess.ID, "bytes", len(data))
				continue
			}
			if err := s.handleControl(ctx, conn, sess, data); err != nil {
				slog.Error("Failed to deliver result", "error", err, "sessionID", sess.ID)
				return
			}

		case websocket.BinaryMessage:
			s.metrics.FramesReceived.Inc()
			s.metrics.BytesReceived.Add(float64(len(data)))

			chunk, ready := sess.Append(data)
			if !ready {
				continue
			}
			slog.Debug("Buffer reached dispatch threshold",
				"sessionID", sess.ID,
				"bytes", len(chunk))
			if err := s.dispatch(ctx, conn, sess, chunk); err != nil {
				slog.Error("Failed to deliver result", "error", err, "sessionID", sess.ID)
				return
			}
		}
	}
}

// handleControl applies one control message. Malformed or unknown
// messages are logged and skipped; they never terminate the session.
// The returned error is only ever a transport failure.
func (s *Server) handleControl(ctx context.Context, conn *websocket.Conn, sess *Session, data []byte) error {
	ctl, err := protocol.DecodeControl(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownType) {
			slog.Debug("Ignoring unknown control message", "sessionID", sess.ID, "type", ctl.Type)
			return nil
		}
		s.metrics.ProtocolErrors.Inc()
		slog.Warn("Skipping malformed control message", "error", err, "sessionID", sess.ID)
		return nil
	}

	switch ctl.Type {
	case protocol.TypeConfig:
		sess.SetSampleRate(ctl.SampleRate)
		slog.Info("Session configuration updated",
			"sessionID", sess.ID,
			"sampleRate", ctl.SampleRate)
		return nil

	case protocol.TypeEOF:
		chunk := sess.Flush()
		slog.Debug("EOF received, flushing buffer",
			"sessionID", sess.ID,
			"bytes", len(chunk))
		return s.dispatch(ctx, conn, sess, chunk)
	}
	return nil
}

// dispatch submits a chunk to the shared engine and writes the result
// back on the connection. The chunk is never retried: by the time a
// result exists, successful or not, the audio that produced it is gone.
func (s *Server) dispatch(ctx context.Context, conn *websocket.Conn, sess *Session, chunk []byte) error {
	start := time.Now()
	res := s.engine.Dispatch(ctx, chunk, sess.SampleRate())

	s.metrics.Dispatches.Inc()
	s.metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	if res.Error != "" {
		s.metrics.DispatchErrors.Inc()
	}

	data, err := protocol.EncodeResult(res)
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

type sessionInfo struct {
	ID            string    `json:"id"`
	SampleRate    int       `json:"sampleRate"`
	BufferedBytes int       `json:"bufferedBytes"`
	ConnectedAt   time.Time `json:"connectedAt"`
}

// handleListSessions reports the live sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.Snapshot()
	infos := make([]sessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sessionInfo{
			ID:            sess.ID.String(),
			SampleRate:    sess.SampleRate(),
			BufferedBytes: sess.Buffered(),
			ConnectedAt:   sess.ConnectedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		slog.Error("Failed to encode session list", "error", err)
	}
}
