package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the proctoring engine.
type Metrics struct {
	Registry *prometheus.Registry

	ActiveSessions    prometheus.Gauge
	ConnectedWatchers prometheus.Gauge
	SignalsTotal      *prometheus.CounterVec
	ViolationsTotal   *prometheus.CounterVec
	AnalysesTotal     *prometheus.CounterVec
	AnalysisDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Histogram
	BroadcastDrops    prometheus.Counter
	RequestsInFlight  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics using a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "proctor",
				Name:      "active_sessions",
				Help:      "Number of proctoring sessions currently in the registry.",
			},
		),

		ConnectedWatchers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "proctor",
				Name:      "connected_watchers",
				Help:      "Number of (session, observer) watch subscriptions.",
			},
		),

		SignalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "proctor",
				Name:      "signals_total",
				Help:      "Total WebRTC signaling messages relayed, by kind.",
			},
			[]string{"kind"},
		),

		ViolationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "proctor",
				Name:      "violations_total",
				Help:      "Total violations recorded, by type.",
			},
			[]string{"type"},
		),

		AnalysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "proctor",
				Name:      "analyses_total",
				Help:      "Total snapshot analyses by outcome (clean, violation, failed_open).",
			},
			[]string{"status"},
		),

		AnalysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "proctor",
				Name:      "analysis_duration_seconds",
				Help:      "Duration of snapshot analyses including the classifier call.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			},
		),

		SnapshotSizeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "proctor",
				Name:      "snapshot_size_bytes",
				Help:      "Size of submitted snapshot images in bytes.",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),

		BroadcastDrops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "proctor",
				Name:      "broadcast_drops_total",
				Help:      "Events dropped because an observer's send buffer was full.",
			},
		),

		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "proctor",
				Subsystem: "api",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed.",
			},
		),
	}

	// Register all collectors
	reg.MustRegister(
		m.ActiveSessions,
		m.ConnectedWatchers,
		m.SignalsTotal,
		m.ViolationsTotal,
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.SnapshotSizeBytes,
		m.BroadcastDrops,
		m.RequestsInFlight,
	)

	return m
}

// SetActiveSessions updates the active-session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

// SetWatchers updates the watch-subscription gauge.
func (m *Metrics) SetWatchers(n int) {
	m.ConnectedWatchers.Set(float64(n))
}

// RecordSignal counts a relayed signaling message.
func (m *Metrics) RecordSignal(kind string) {
	m.SignalsTotal.WithLabelValues(kind).Inc()
}

// RecordViolation counts one recorded violation by type.
func (m *Metrics) RecordViolation(vtype string) {
	m.ViolationsTotal.WithLabelValues(vtype).Inc()
}

// RecordAnalysis records metrics for a completed snapshot analysis.
func (m *Metrics) RecordAnalysis(status string, durationSec float64) {
	m.AnalysesTotal.WithLabelValues(status).Inc()
	m.AnalysisDuration.Observe(durationSec)
}

// RecordBroadcastDrop counts an event dropped on a full send buffer.
func (m *Metrics) RecordBroadcastDrop() {
	m.BroadcastDrops.Inc()
}
