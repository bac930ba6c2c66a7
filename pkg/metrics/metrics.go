// Package metrics registers the Prometheus collectors exposed at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOperationDuration tracks latency of vector store calls
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vector_store_operation_duration_seconds",
			Help:    "Duration of vector store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// StoreOperationErrors counts failed vector store calls
	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vector_store_operation_errors_total",
			Help: "Total number of failed vector store operations",
		},
		[]string{"operation"},
	)

	// PointsIngested counts points upserted per collection
	PointsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingested_points_total",
			Help: "Total number of points upserted into collections",
		},
		[]string{"collection"},
	)

	// CollectionsCreated counts collections created by ingestion
	CollectionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collections_created_total",
			Help: "Total number of collections created",
		},
	)

	// DegradedReads counts read-path errors that were turned into empty results
	DegradedReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "degraded_reads_total",
			Help: "Total number of similarity or sampling reads that degraded to an empty result",
		},
		[]string{"operation"},
	)

	// HTTPRequestDuration tracks API latency by route and status
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveStore records the duration and outcome of one store operation.
//
//	defer metrics.ObserveStore("upsert", time.Now(), &err)
func ObserveStore(operation string, start time.Time, errp *error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if errp != nil && *errp != nil {
		StoreOperationErrors.WithLabelValues(operation).Inc()
	}
}
