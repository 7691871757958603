package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the streaming server.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	SessionsOpened   prometheus.Counter
	SessionsClosed   prometheus.Counter
	FramesReceived   prometheus.Counter
	BytesReceived    prometheus.Counter
	Dispatches       prometheus.Counter
	DispatchErrors   prometheus.Counter
	ProtocolErrors   prometheus.Counter
	DispatchDuration prometheus.Histogram
}

// NewMetrics creates and registers all server metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hearsay_active_sessions",
			Help: "Current number of connected streaming sessions",
		}),
		SessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "hearsay_sessions_opened_total",
			Help: "Total number of sessions created",
		}),
		SessionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "hearsay_sessions_closed_total",
			Help: "Total number of sessions torn down",
		}),
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "hearsay_audio_frames_received_total",
			Help: "Total number of binary audio frames received",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "hearsay_audio_bytes_received_total",
			Help: "Total audio payload bytes received",
		}),
		Dispatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "hearsay_dispatches_total",
			Help: "Total number of recognition dispatches",
		}),
		DispatchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "hearsay_dispatch_errors_total",
			Help: "Total number of dispatches that returned an error result",
		}),
		ProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "hearsay_protocol_errors_total",
			Help: "Total number of malformed control messages skipped",
		}),
		DispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hearsay_dispatch_duration_seconds",
			Help:    "Wall time of recognition dispatches",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
	}
}
