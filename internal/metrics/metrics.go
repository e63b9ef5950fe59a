package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Durable cache manager metrics
var (
	DurableOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "durable_cache_operations_total",
			Help: "Total number of durable cache operations by outcome.",
		},
		[]string{"operation", "status"},
	)

	DurableCleanupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "durable_cache_cleanups_total",
			Help: "Total number of cleanup passes over the durable cache.",
		},
	)

	DurableSizeEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "durable_cache_size_evictions_total",
			Help: "Total number of entries evicted by size-budget enforcement.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		DurableOperationsTotal,
		DurableCleanupsTotal,
		DurableSizeEvictionsTotal,
	)
}
