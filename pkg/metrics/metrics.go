// Package metrics provides the Prometheus registry and HTTP exposition for the
// meal-plan cache. Metrics themselves are defined next to the code that
// updates them (pkg/cache) to keep packages independent.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler serving every registered metric.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - mealcache_hits_total{layer="redis"|"memory"} (Counter): Cache hits by layer
//   - mealcache_misses_total (Counter): Lookups not satisfied by either layer
//   - mealcache_errors_total{operation} (Counter): Cache operation errors
//   - mealcache_operation_duration_seconds{operation} (Histogram): Latency by path
//     (set_redis, set_memory, get_redis, get_memory, get_miss, delete, clear_prefix)
//   - mealcache_local_evictions_total (Counter): FIFO evictions from the local tier
//   - mealcache_local_keys (Gauge): Entries held by the local tier
//   - mealcache_local_memory_bytes (Gauge): Estimated local tier footprint
//   - mealcache_remote_state (Gauge): 0 uninitialized, 1 connecting, 2 connected,
//     3 disabled, 4 closed
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(mealcache_hits_total[5m])) /
//   (sum(rate(mealcache_hits_total[5m])) + rate(mealcache_misses_total[5m]))
//
//   # Share of hits served by the local fallback
//   rate(mealcache_hits_total{layer="memory"}[5m]) / sum(rate(mealcache_hits_total[5m]))
//
//   # Remote tier down
//   mealcache_remote_state == 3
//
//   # P95 lookup latency from Redis
//   histogram_quantile(0.95, rate(mealcache_operation_duration_seconds_bucket{operation="get_redis"}[5m]))
