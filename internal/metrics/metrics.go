// Package metrics defines the Prometheus collectors reported by the
// pipeline and the HTTP handler that exposes them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docket"

// Metrics holds the pipeline collectors and the registry they belong to.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	jobs        *prometheus.CounterVec
	chunks      prometheus.Counter
	clauses     *prometheus.CounterVec
	jobDuration prometheus.Histogram
}

// New creates the collectors on a fresh registry along with the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Jobs that reached a terminal status, by status.",
		}, []string{"status"}),
		chunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_processed_total",
			Help:      "Chunks classified successfully.",
		}),
		clauses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clauses_found_total",
			Help:      "Clauses matched, by taxonomy category.",
		}, []string{"category"}),
		jobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time from job start to terminal status.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// JobFinished records a terminal status and, when start is non-zero, the
// job duration.
func (m *Metrics) JobFinished(status string, start time.Time) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
	if !start.IsZero() {
		m.jobDuration.Observe(time.Since(start).Seconds())
	}
}

// ChunkProcessed records one classified chunk and the categories of its clauses.
func (m *Metrics) ChunkProcessed(categories []string) {
	if m == nil {
		return
	}
	m.chunks.Inc()
	for _, c := range categories {
		m.clauses.WithLabelValues(c).Inc()
	}
}
