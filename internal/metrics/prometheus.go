package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics for the live pipeline
type Metrics struct {
	// Connection metrics
	ConnectionsActive   prometheus.Gauge
	ConnectionsRejected prometheus.Counter
	DrainTimeouts       prometheus.Counter

	// Chunk metrics
	ChunksReceived        prometheus.Counter
	MessagesDropped       *prometheus.CounterVec
	ExtractionFailures    prometheus.Counter
	TranscriptionFailures prometheus.Counter
	ChunkSaves            *prometheus.CounterVec

	// Window metrics
	WindowsTriggered  prometheus.Counter
	WindowsAnalyzed   prometheus.Counter
	WindowsSkipped    *prometheus.CounterVec
	AnalysesPersisted prometheus.Counter

	StageDuration   *prometheus.HistogramVec
	CleanupFailures prometheus.Counter
}

// New registers all metrics with reg. Pass prometheus.NewRegistry() in
// tests to avoid duplicate registration panics.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "livecoach_connections_active",
			Help: "Current number of live connections",
		}),
		ConnectionsRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "livecoach_connections_rejected_total",
			Help: "Connections refused at validation",
		}),
		DrainTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "livecoach_drain_timeouts_total",
			Help: "Disconnects whose background work outlived the drain timeout",
		}),

		ChunksReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "livecoach_chunks_received_total",
			Help: "Media chunks accepted into a buffer",
		}),
		MessagesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "livecoach_messages_dropped_total",
			Help: "Inbound messages ignored, by reason",
		}, []string{"reason"}),
		ExtractionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "livecoach_extraction_failures_total",
			Help: "Chunks whose audio track could not be extracted",
		}),
		TranscriptionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "livecoach_transcription_failures_total",
			Help: "Chunks whose transcription failed",
		}),
		ChunkSaves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "livecoach_chunk_saves_total",
			Help: "Chunk upload+record tasks, by result",
		}, []string{"result"}),

		WindowsTriggered: f.NewCounter(prometheus.CounterOpts{
			Name: "livecoach_windows_triggered_total",
			Help: "Window analyses scheduled",
		}),
		WindowsAnalyzed: f.NewCounter(prometheus.CounterOpts{
			Name: "livecoach_windows_analyzed_total",
			Help: "Window analyses that produced a result",
		}),
		WindowsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "livecoach_windows_skipped_total",
			Help: "Window analyses skipped, by reason",
		}, []string{"reason"}),
		AnalysesPersisted: f.NewCounter(prometheus.CounterOpts{
			Name: "livecoach_analyses_persisted_total",
			Help: "Window analyses stored against a chunk record",
		}),

		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "livecoach_stage_duration_seconds",
			Help:    "Time spent per pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}, []string{"stage"}),
		CleanupFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "livecoach_cleanup_failures_total",
			Help: "Scratch file removals abandoned after retries",
		}),
	}
}
