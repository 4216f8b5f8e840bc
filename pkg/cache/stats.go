package cache

import (
	"time"

	"github.com/Sternrassler/mealplan-cache/pkg/perf"
)

// Stats is a point-in-time copy of cache statistics.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`

	// KeyCount reflects the local fallback cache only.
	KeyCount int `json:"key_count"`

	MemoryUsageBytes int64     `json:"memory_usage_bytes"`
	LastReset        time.Time `json:"last_reset"`

	// Lifetime counters of the local tier, not affected by ResetStats.
	LocalEvictions   int64 `json:"local_evictions"`
	LocalExpirations int64 `json:"local_expirations"`
}

// HitRate returns hits/(hits+misses) as a percentage, 0 with no requests.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// PerformanceReport summarizes latency windows and error counts.
type PerformanceReport struct {
	Operations  map[string]perf.OperationMetrics `json:"operations"`
	HitRate     float64                          `json:"hit_rate"`
	RemoteState string                           `json:"remote_state"`
}

// PerformanceReporter is implemented by anything exposing cache performance
// metrics, e.g. for a metrics endpoint.
type PerformanceReporter interface {
	PerformanceMetrics() PerformanceReport
}
