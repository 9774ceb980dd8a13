package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the Prometheus instruments used by the engine and the HTTP
// API. Outcome labels: "answered", "declined", "retrieval_error",
// "generation_error". Compaction mode labels: "none", "trim", "summarize",
// "trim_fallback".
type Metrics struct {
	TurnsTotal        *prometheus.CounterVec
	TurnStageSeconds  *prometheus.HistogramVec
	RetrievedPassages prometheus.Histogram
	CompactionsTotal  *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
}

// NewMetrics registers and returns the instrument set under the given
// namespace. Call once per process; promauto registers globally.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TurnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed conversation turns by outcome.",
		}, []string{"outcome"}),
		TurnStageSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_stage_seconds",
			Help:      "Per-stage latency of a turn in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage"}),
		RetrievedPassages: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieved_passages",
			Help:      "Number of review passages above threshold per turn.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		CompactionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_compactions_total",
			Help:      "Memory compactions by mode.",
		}, []string{"mode"}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live conversation sessions.",
		}),
	}
}

// ObserveStage records one stage duration. Stage names follow the turn state
// machine: "retrieve", "assemble", "generate", "update".
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.TurnStageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// MetricsHandler exposes the default registry for the /metrics route.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
