// Package cache provides the two-tier cache used by the meal-planning
// application to accelerate read-heavy lookups such as food-group queries.
//
// The Manager facade combines a shared Redis tier with a bounded in-process
// fallback tier:
//
// - Every operation tries Redis first and falls back to the local tier
// - Cache errors are logged and counted, never returned to the caller
// - A Redis connection failure disables the remote tier (optionally with a
// reconnect cool-down); the application keeps working from the local tier
// - The local tier evicts the oldest insertion when full and expires entries lazily
// - Hit/miss counters, per-operation latency windows and Prometheus metrics
//
// # Basic Usage
//
//	cfg := cache.DefaultConfig()
//	cfg.Remote.URL = "redis://localhost:6379/0"
//
//	manager, err := cache.New(cfg)
//	if err != nil {
//		return err
//	}
//	defer manager.Close()
//
//	// Optional eager handshake; failures only mean "local tier only".
//	_ = manager.Init(ctx)
//
//	manager.Set(ctx, "food-groups", "query:all:none", groups, 1800)
//
//	groups, ok := cache.Get[[]FoodGroup](ctx, manager, "food-groups", "query:all:none")
//	if !ok {
//		// Cache miss - load from the document store
//	}
//
// # Invalidation
//
//	// Removes food-groups:* from Redis (SCAN + one DEL) and from the local tier.
//	manager.ClearPrefix(ctx, "food-groups")
//
// # Observability
//
//	stats := manager.Stats()          // hits, misses, local key count, memory estimate
//	rate := manager.HitRate()         // percentage, 0 before any lookup
//	report := manager.PerformanceMetrics()
//	health := manager.HealthCheck(ctx)
//
// The manager exports Prometheus metrics:
//
//   - mealcache_hits_total{layer} - Cache hits by layer (redis, memory)
//   - mealcache_misses_total - Cache misses
//   - mealcache_errors_total{operation} - Cache operation errors
//   - mealcache_operation_duration_seconds{operation} - Latency by operation path
//   - mealcache_local_evictions_total - FIFO evictions from the local tier
//   - mealcache_local_keys / mealcache_local_memory_bytes - Local tier size
//   - mealcache_remote_state - Remote adapter state
package cache
