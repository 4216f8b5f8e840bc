package cache

import (
	"fmt"

	"github.com/Sternrassler/mealplan-cache/pkg/fallback"
	"github.com/Sternrassler/mealplan-cache/pkg/perf"
	"github.com/Sternrassler/mealplan-cache/pkg/remote"
)

// Config holds the cache manager configuration.
type Config struct {
	// Remote configures the shared Redis tier. Leave URL and Host empty to run
	// on the local tier only.
	Remote remote.Config

	// DefaultTTL in seconds, used when Set is called without a TTL.
	DefaultTTL int

	// MaxMemoryMB is the local footprint considered healthy. Informational:
	// it is reported by HealthCheck but not enforced on writes.
	MaxMemoryMB int

	// EnableCompression tags payloads over the codec threshold.
	EnableCompression bool

	// Codec selects the payload strategy ("json" or "gzip").
	Codec string

	// LocalMaxEntries bounds the local fallback cache.
	LocalMaxEntries int

	// TimingWindow is the number of latency samples kept per operation.
	TimingWindow int
}

// DefaultConfig returns a local-only configuration with default limits.
func DefaultConfig() Config {
	return Config{
		Remote:          remote.DefaultConfig(),
		DefaultTTL:      3600,
		MaxMemoryMB:     100,
		Codec:           "json",
		LocalMaxEntries: fallback.DefaultMaxEntries,
		TimingWindow:    perf.DefaultWindowSize,
	}
}

// Validate checks for values the manager cannot run with.
func (c Config) Validate() error {
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("default_ttl must be > 0 (got %d)", c.DefaultTTL)
	}
	if c.LocalMaxEntries <= 0 {
		return fmt.Errorf("local_max_entries must be > 0 (got %d)", c.LocalMaxEntries)
	}
	if c.TimingWindow <= 0 {
		return fmt.Errorf("timing_window must be > 0 (got %d)", c.TimingWindow)
	}
	if c.MaxMemoryMB < 0 {
		return fmt.Errorf("max_memory_mb must be >= 0 (got %d)", c.MaxMemoryMB)
	}
	return nil
}
