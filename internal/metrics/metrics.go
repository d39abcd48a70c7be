// Package metrics exports scribe's Prometheus metrics.
//
// All methods are safe to call on a nil *Metrics, so components can be built
// without a registry in tests and in the CLI.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scribe"

type Metrics struct {
	registry *prometheus.Registry

	llmRequests   *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	summaryChunks prometheus.Histogram
	notionBatches *prometheus.CounterVec
	streamsActive prometheus.Gauge
}

// New creates a Metrics backed by its own registry. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		llmRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "requests_total",
				Help:      "Completion requests by kind (complete, stream) and status.",
			},
			[]string{"kind", "status"},
		),
		llmLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "latency_seconds",
				Help:      "Completion request latency in seconds.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"kind"},
		),
		summaryChunks: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "summary",
				Name:      "chunks",
				Help:      "Number of chunks per summarization run.",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
			},
		),
		notionBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notion",
				Name:      "batches_total",
				Help:      "Notion block upload batches by status.",
			},
			[]string{"status"},
		),
		streamsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "chat",
				Name:      "streams_active",
				Help:      "Chat streams currently in flight.",
			},
		),
	}

	registry.MustRegister(m.llmRequests, m.llmLatency, m.summaryChunks, m.notionBatches, m.streamsActive)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveLLM(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(kind, status).Inc()
	m.llmLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveChunks(n int) {
	if m == nil {
		return
	}
	m.summaryChunks.Observe(float64(n))
}

func (m *Metrics) NotionBatch(status string) {
	if m == nil {
		return
	}
	m.notionBatches.WithLabelValues(status).Inc()
}

// StreamStarted increments the active stream gauge and returns the matching decrement.
func (m *Metrics) StreamStarted() func() {
	if m == nil {
		return func() {}
	}
	m.streamsActive.Inc()
	return m.streamsActive.Dec
}
