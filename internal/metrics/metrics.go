// Package metrics holds the Prometheus collectors shared by the server and
// the worker. Everything is registered on Registry rather than the global
// default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Registry = prometheus.NewRegistry()

var (
	// JobsTotal counts generation jobs by outcome: created, completed,
	// failed or skipped.
	JobsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyforge_jobs_total",
			Help: "Story generation jobs by outcome.",
		},
		[]string{"status"},
	)

	GenerationDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storyforge_generation_duration_seconds",
			Help:    "Wall time of a generation job, from pickup to its terminal status.",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 180, 300, 600},
		},
	)

	StoryNodes = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storyforge_story_nodes",
			Help:    "Number of nodes in each persisted story.",
			Buckets: prometheus.LinearBuckets(4, 4, 10),
		},
	)

	HTTPRequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyforge_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
