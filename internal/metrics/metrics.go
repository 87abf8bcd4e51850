// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	buildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_builds_total",
			Help: "Total number of document builds",
		},
		[]string{"strategy"},
	)

	buildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docgraph_build_duration_seconds",
			Help:    "Document build duration distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	fragmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_fragments_total",
			Help: "Fragments seen by builds",
		},
		[]string{"result"},
	)

	edgesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_edges_total",
			Help: "Graph edges created, by type",
		},
		[]string{"type"},
	)

	chunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docgraph_chunks_total",
			Help: "Chunks assembled",
		},
	)

	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_jobs_total",
			Help: "Background jobs by final status",
		},
		[]string{"status"},
	)

	exportFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docgraph_export_failures_total",
			Help: "Graph exports that failed after retries",
		},
	)
)

// BuildStats is what one build reports.
type BuildStats struct {
	Strategy  string
	Duration  time.Duration
	Fragments int
	Dropped   int
	Chunks    int
	Edges     map[string]int
}

// ObserveBuild records one completed build.
func ObserveBuild(s BuildStats) {
	buildsTotal.WithLabelValues(s.Strategy).Inc()
	buildDuration.WithLabelValues(s.Strategy).Observe(s.Duration.Seconds())
	fragmentsTotal.WithLabelValues("kept").Add(float64(s.Fragments))
	fragmentsTotal.WithLabelValues("dropped").Add(float64(s.Dropped))
	chunksTotal.Add(float64(s.Chunks))
	for typ, n := range s.Edges {
		edgesTotal.WithLabelValues(typ).Add(float64(n))
	}
}

// JobFinished records a background job's final status.
func JobFinished(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}

// ExportFailed records an export that gave up.
func ExportFailed() {
	exportFailures.Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
