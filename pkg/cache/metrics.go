package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer ("redis", "memory")
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mealcache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks lookups not satisfied by either layer
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mealcache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mealcache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "set", "get", "delete", "clear_prefix"
	)

	// OperationDuration tracks latency by operation path
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mealcache_operation_duration_seconds",
			Help:    "Cache operation duration in seconds by operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"operation"}, // "set_redis", "get_memory", "get_miss", ...
	)

	// LocalEvictions tracks FIFO evictions from the fallback cache
	LocalEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mealcache_local_evictions_total",
			Help: "Total number of capacity evictions from the local fallback cache",
		},
	)

	// LocalKeys tracks the number of entries held locally
	LocalKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mealcache_local_keys",
			Help: "Current number of entries in the local fallback cache",
		},
	)

	// LocalMemory tracks the estimated local footprint in bytes
	LocalMemory = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mealcache_local_memory_bytes",
			Help: "Estimated memory used by the local fallback cache in bytes",
		},
	)

	// RemoteState exposes the remote adapter state (0 uninitialized, 1 connecting,
	// 2 connected, 3 disabled, 4 closed)
	RemoteState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mealcache_remote_state",
			Help: "Current state of the remote cache adapter",
		},
	)
)

// promObserver mirrors collector samples to Prometheus.
type promObserver struct{}

func (promObserver) ObserveOperation(name string, d time.Duration) {
	OperationDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (promObserver) ObserveError(name string) {
	CacheErrors.WithLabelValues(name).Inc()
}
