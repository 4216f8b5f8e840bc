//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Sternrassler/mealplan-cache/pkg/cache"
	"github.com/Sternrassler/mealplan-cache/pkg/remote"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container and returns its URL.
func setupRedis(t *testing.T) (string, testcontainers.Container) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port()), container
}

func newManager(t *testing.T, url string, mutate ...func(*cache.Config)) *cache.Manager {
	t.Helper()

	cfg := cache.DefaultConfig()
	cfg.Remote.URL = url
	cfg.Remote.OperationTimeout = 2 * time.Second
	for _, fn := range mutate {
		fn(&cfg)
	}

	m, err := cache.New(cfg, cache.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return m
}

type foodGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TestSharedRemoteTier checks that two managers see each other's writes
// through Redis and that TTLs are enforced by the server.
func TestSharedRemoteTier(t *testing.T) {
	url, _ := setupRedis(t)
	ctx := context.Background()

	writer := newManager(t, url)
	reader := newManager(t, url)

	groups := []foodGroup{{ID: "veg", Name: "Vegetables"}, {ID: "dairy", Name: "Dairy"}}
	writer.Set(ctx, "food-groups", "query:all:none", groups)

	got, ok := cache.Get[[]foodGroup](ctx, reader, "food-groups", "query:all:none")
	if !ok {
		t.Fatal("reader should see writer's entry")
	}
	if len(got) != 2 || got[1].Name != "Dairy" {
		t.Errorf("unexpected value: %+v", got)
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ttl, err := rdb.TTL(ctx, "food-groups:query:all:none").Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %v, want (0, 1h]", ttl)
	}

	writer.Set(ctx, "food-groups", "short", "x", 1)
	time.Sleep(2100 * time.Millisecond)
	if _, ok := cache.Get[string](ctx, reader, "food-groups", "short"); ok {
		t.Error("entry should have expired in Redis")
	}
}

// TestClearPrefix_ManyKeys exercises cursor-based SCAN across several pages.
func TestClearPrefix_ManyKeys(t *testing.T) {
	url, _ := setupRedis(t)
	ctx := context.Background()

	m := newManager(t, url, func(c *cache.Config) { c.Remote.ScanCount = 10 })

	for i := 0; i < 250; i++ {
		m.Set(ctx, "food-groups", fmt.Sprintf("query:%d", i), i)
	}
	m.Set(ctx, "food-groups-archive", "keep", "yes")
	m.Set(ctx, "recipes", "keep", "yes")

	m.ClearPrefix(ctx, "food-groups")

	for _, i := range []int{0, 99, 249} {
		if _, ok := cache.Get[int](ctx, m, "food-groups", fmt.Sprintf("query:%d", i)); ok {
			t.Errorf("food-groups:query:%d should be cleared", i)
		}
	}
	if _, ok := cache.Get[string](ctx, m, "food-groups-archive", "keep"); !ok {
		t.Error("food-groups-archive:keep must not match prefix food-groups")
	}
	if _, ok := cache.Get[string](ctx, m, "recipes", "keep"); !ok {
		t.Error("recipes:keep should survive")
	}
}

// TestFallbackWhenRedisStops stops the container mid-flight and checks that
// writes and reads continue against the local tier.
func TestFallbackWhenRedisStops(t *testing.T) {
	url, container := setupRedis(t)
	ctx := context.Background()

	m := newManager(t, url)
	m.Set(ctx, "recipes", "before", "remote")

	timeout := 5 * time.Second
	if err := container.Stop(ctx, &timeout); err != nil {
		t.Fatalf("Failed to stop container: %v", err)
	}

	m.Set(ctx, "recipes", "after", "local")
	if v, ok := cache.Get[string](ctx, m, "recipes", "after"); !ok || v != "local" {
		t.Errorf("Get after outage = %q, %v; want local, true", v, ok)
	}

	report := m.PerformanceMetrics()
	if report.RemoteState != remote.StateDisabled.String() {
		t.Errorf("remote state = %s, want %s", report.RemoteState, remote.StateDisabled)
	}

	h := m.HealthCheck(ctx)
	if h.Status != cache.StatusDegraded {
		t.Errorf("health = %s, want degraded", h.Status)
	}
}

// TestGzipCodec stores large values compressed and reads them back through a
// JSON-configured manager.
func TestGzipCodec(t *testing.T) {
	url, _ := setupRedis(t)
	ctx := context.Background()

	gz := newManager(t, url, func(c *cache.Config) { c.Codec = "gzip" })
	plain := newManager(t, url)

	big := make([]foodGroup, 200)
	for i := range big {
		big[i] = foodGroup{ID: fmt.Sprintf("g%d", i), Name: "Leafy greens and cruciferous vegetables"}
	}
	gz.Set(ctx, "food-groups", "big", big)

	if got, ok := cache.Get[[]foodGroup](ctx, gz, "food-groups", "big"); !ok || len(got) != 200 {
		t.Fatalf("gzip manager read back %d items, ok=%v", len(got), ok)
	}

	// A JSON manager cannot decode gzip payloads; it must report a miss.
	if _, ok := cache.Get[[]foodGroup](ctx, plain, "food-groups", "big"); ok {
		t.Error("json codec should not decode a gzip payload")
	}
}
