// Package metrics holds the Prometheus collectors for the prompt library.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prompt_library_operations_total",
		Help: "Total mutating repository operations",
	}, []string{"op"})

	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prompt_library_persist_failures_total",
		Help: "Saves of the library document that failed",
	})

	BackupsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prompt_library_backups_pruned_total",
		Help: "Old backups removed by rotation",
	})

	Prompts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "prompt_library_prompts",
		Help: "Number of prompts in the library",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prompt_library_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prompt_library_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// PruneRecorder adapts BackupsPruned to the storage rotation hook.
func PruneRecorder(removed int) {
	BackupsPruned.Add(float64(removed))
}
