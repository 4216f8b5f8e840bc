package perf

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	mu     sync.Mutex
	ops    []string
	errors []string
}

func (o *recordingObserver) ObserveOperation(name string, _ time.Duration) {
	o.mu.Lock()
	o.ops = append(o.ops, name)
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveError(name string) {
	o.mu.Lock()
	o.errors = append(o.errors, name)
	o.mu.Unlock()
}

func TestCollector_Snapshot(t *testing.T) {
	c := NewCollector(10, nil)

	c.RecordOperation("get_redis", 2*time.Millisecond)
	c.RecordOperation("get_redis", 4*time.Millisecond)
	c.RecordOperation("get_redis", 6*time.Millisecond)
	c.RecordError("get")

	snap := c.Snapshot()

	got := snap["get_redis"]
	want := OperationMetrics{AvgMs: 4, MinMs: 2, MaxMs: 6, Samples: 3}
	if got != want {
		t.Errorf("get_redis = %+v, want %+v", got, want)
	}

	if snap["get"].Errors != 1 || snap["get"].Samples != 0 {
		t.Errorf("get = %+v, want 1 error and no samples", snap["get"])
	}
}

func TestCollector_WindowDropsOldest(t *testing.T) {
	c := NewCollector(3, nil)

	for i := 1; i <= 5; i++ {
		c.RecordOperation("set_memory", time.Duration(i)*time.Millisecond)
	}

	if got, want := c.samples("set_memory"), []float64{3, 4, 5}; !reflect.DeepEqual(got, want) {
		t.Errorf("Samples = %v, want %v", got, want)
	}

	m := c.Snapshot()["set_memory"]
	if m.Samples != 3 || m.MinMs != 3 || m.MaxMs != 5 || m.AvgMs != 4 {
		t.Errorf("unexpected metrics %+v", m)
	}
}

func TestCollector_DefaultWindow(t *testing.T) {
	c := NewCollector(0, nil)
	for i := 0; i < DefaultWindowSize+20; i++ {
		c.RecordOperation("op", time.Millisecond)
	}
	if n := len(c.samples("op")); n != DefaultWindowSize {
		t.Errorf("window holds %d samples, want %d", n, DefaultWindowSize)
	}
}

func TestCollector_Observer(t *testing.T) {
	obs := &recordingObserver{}
	c := NewCollector(5, obs)

	c.RecordOperation("set_redis", time.Millisecond)
	c.RecordError("set")

	if !reflect.DeepEqual(obs.ops, []string{"set_redis"}) {
		t.Errorf("observed ops = %v", obs.ops)
	}
	if !reflect.DeepEqual(obs.errors, []string{"set"}) {
		t.Errorf("observed errors = %v", obs.errors)
	}
}

func TestCollector_ResetAndSnapshotNames(t *testing.T) {
	c := NewCollector(5, nil)
	c.RecordOperation("b", time.Millisecond)
	c.RecordError("a")

	snap := c.Snapshot()
	if len(snap) != 2 || snap["a"].Errors != 1 || snap["b"].Samples != 1 {
		t.Errorf("Snapshot = %+v", snap)
	}

	c.Reset()
	if len(c.Snapshot()) != 0 || c.Errors("a") != 0 {
		t.Error("Reset should clear samples and errors")
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector(100, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordOperation("get_memory", time.Microsecond)
				c.RecordError("get")
				_ = c.Snapshot()
			}
		}()
	}
	wg.Wait()

	if got := c.Errors("get"); got != 1000 {
		t.Errorf("Errors = %d, want 1000", got)
	}
	if got := len(c.samples("get_memory")); got != 100 {
		t.Errorf("window = %d, want 100", got)
	}
}
