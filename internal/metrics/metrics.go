// Package metrics defines the Prometheus collectors reported by the
// indexing and search tools. Since both tools are short-lived, metrics are
// written to a node-exporter textfile instead of being scraped.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for a single run.
type Metrics struct {
	registry *prometheus.Registry

	DocsIndexedTotal *prometheus.CounterVec
	DocsFailedTotal  prometheus.Counter
	QueriesTotal     *prometheus.CounterVec
	SearchLatency    *prometheus.HistogramVec
	SearchHitsCount  prometheus.Histogram
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DocsIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cranfield_docs_indexed_total",
				Help: "Documents written to the index by operation (add, update).",
			},
			[]string{"op"},
		),
		DocsFailedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cranfield_docs_failed_total",
				Help: "Documents that could not be written to the index.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cranfield_queries_total",
				Help: "Queries executed by mode (batch, interactive) and ranking.",
			},
			[]string{"mode", "ranking"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cranfield_search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"ranking"},
		),
		SearchHitsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cranfield_search_hits_count",
				Help:    "Total number of matching documents per query.",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
			},
		),
	}

	m.registry.MustRegister(
		m.DocsIndexedTotal,
		m.DocsFailedTotal,
		m.QueriesTotal,
		m.SearchLatency,
		m.SearchHitsCount,
	)

	return m
}

// Gatherer exposes the registry holding the collectors.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the current metric values to path in the text
// exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
