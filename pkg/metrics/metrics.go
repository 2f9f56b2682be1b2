// Package metrics exposes Prometheus metrics for depot's storage operations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Storage operation metrics
var (
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depot_storage_operations_total",
			Help: "Total number of remote storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "depot_storage_operation_duration_seconds",
			Help:    "Duration of remote storage operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StorageOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depot_storage_operation_errors_total",
			Help: "Remote storage operation errors by classified cause",
		},
		[]string{"operation", "error_type"},
	)

	StorageBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depot_storage_bytes_transferred_total",
			Help: "Total bytes uploaded to and downloaded from remote storage",
		},
		[]string{"direction"},
	)
)

// Handler returns an HTTP handler serving the metrics in Prometheus
// exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
