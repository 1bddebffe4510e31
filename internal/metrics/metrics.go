// Package metrics provides Prometheus metrics for articlehub.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts article service operations.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "articlehub",
			Name:      "operations_total",
			Help:      "Total number of article service operations",
		},
		[]string{"operation", "status"},
	)

	// OperationDuration measures article service operation duration.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "articlehub",
			Name:      "operation_duration_seconds",
			Help:      "Duration of article service operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// EventPublishFailures counts swallowed event publication errors.
	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "articlehub",
			Name:      "event_publish_failures_total",
			Help:      "Total number of article events that could not be published",
		},
		[]string{"event_type"},
	)

	// TimelineSkipped counts ranked ids dropped from timelines.
	TimelineSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "articlehub",
			Name:      "timeline_skipped_total",
			Help:      "Ranked article ids dropped from timelines",
		},
		[]string{"reason"},
	)

	// OrphanBlobs counts orphaned payloads found and deleted by the sweeper.
	OrphanBlobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "articlehub",
			Name:      "orphan_blobs_total",
			Help:      "Payload blobs with no document pointing at them",
		},
		[]string{"action"},
	)

	// ProjectedEvents counts stream entries applied to the graph.
	ProjectedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "articlehub",
			Name:      "projected_events_total",
			Help:      "Article events applied to the graph store",
		},
		[]string{"event_type", "status"},
	)
)

// RecordOperation records one article service call.
func RecordOperation(operation string, err error, seconds float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(seconds)
}
