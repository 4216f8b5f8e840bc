// Package perf collects per-operation latency windows and error counts.
package perf

import (
	"sort"
	"sync"
	"time"
)

// DefaultWindowSize is the number of latency samples kept per operation.
const DefaultWindowSize = 100

// Observer receives every recorded sample, e.g. to mirror it to Prometheus.
type Observer interface {
	ObserveOperation(name string, d time.Duration)
	ObserveError(name string)
}

// OperationMetrics summarizes one operation's latency window.
type OperationMetrics struct {
	AvgMs   float64 `json:"avg_ms"`
	MinMs   float64 `json:"min_ms"`
	MaxMs   float64 `json:"max_ms"`
	Samples int     `json:"samples"`
	Errors  int64   `json:"errors"`
}

// window is a fixed-capacity ring of latency samples in milliseconds.
type window struct {
	samples []float64
	next    int
	full    bool
}

func (w *window) add(ms float64) {
	w.samples[w.next] = ms
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

func (w *window) values() []float64 {
	if w.full {
		return w.samples
	}
	return w.samples[:w.next]
}

// ordered returns samples oldest first.
func (w *window) ordered() []float64 {
	if !w.full {
		return append([]float64(nil), w.samples[:w.next]...)
	}
	out := make([]float64, 0, len(w.samples))
	out = append(out, w.samples[w.next:]...)
	return append(out, w.samples[:w.next]...)
}

// Collector is safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	size     int
	windows  map[string]*window
	errors   map[string]int64
	observer Observer
}

// NewCollector creates a collector keeping windowSize samples per operation.
// observer may be nil.
func NewCollector(windowSize int, observer Observer) *Collector {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Collector{
		size:     windowSize,
		windows:  make(map[string]*window),
		errors:   make(map[string]int64),
		observer: observer,
	}
}

// RecordOperation appends a latency sample for name, dropping the oldest
// sample when the window is full.
func (c *Collector) RecordOperation(name string, d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)

	c.mu.Lock()
	w, ok := c.windows[name]
	if !ok {
		w = &window{samples: make([]float64, c.size)}
		c.windows[name] = w
	}
	w.add(ms)
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.ObserveOperation(name, d)
	}
}

// RecordError increments the error counter for name.
func (c *Collector) RecordError(name string) {
	c.mu.Lock()
	c.errors[name]++
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.ObserveError(name)
	}
}

// Since records the time elapsed since start under name.
func (c *Collector) Since(name string, start time.Time) {
	c.RecordOperation(name, time.Since(start))
}

// samples returns name's window, oldest first.
func (c *Collector) samples(name string) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[name]
	if !ok {
		return nil
	}
	return w.ordered()
}

// Errors returns the error count for name.
func (c *Collector) Errors(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors[name]
}

// Snapshot summarizes every operation that has samples or errors.
func (c *Collector) Snapshot() map[string]OperationMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]OperationMetrics, len(c.windows))
	for _, name := range c.namesLocked() {
		m := OperationMetrics{Errors: c.errors[name]}
		if w, ok := c.windows[name]; ok {
			vals := w.values()
			m.Samples = len(vals)
			if len(vals) > 0 {
				m.MinMs, m.MaxMs = vals[0], vals[0]
				var sum float64
				for _, v := range vals {
					sum += v
					if v < m.MinMs {
						m.MinMs = v
					}
					if v > m.MaxMs {
						m.MaxMs = v
					}
				}
				m.AvgMs = sum / float64(len(vals))
			}
		}
		out[name] = m
	}
	return out
}

// Reset drops all samples and error counts.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.windows = make(map[string]*window)
	c.errors = make(map[string]int64)
	c.mu.Unlock()
}

func (c *Collector) namesLocked() []string {
	seen := make(map[string]struct{}, len(c.windows)+len(c.errors))
	for name := range c.windows {
		seen[name] = struct{}{}
	}
	for name := range c.errors {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
