//go:build integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Sternrassler/mealplan-cache/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestRedis(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { _ = redisC.Terminate(ctx) })

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return "redis://" + host + ":" + port.Port() + "/0"
}

func TestHealthEndpoint_Integration(t *testing.T) {
	cfg := cache.DefaultConfig()
	cfg.Remote.URL = setupTestRedis(t)

	m, err := cache.New(cfg, cache.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer m.Close()

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	resp := serve(t, newMux(m, zerolog.Nop()), http.MethodGet, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var h cache.Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if h.Status != cache.StatusHealthy {
		t.Errorf("Expected healthy, got %s", h.Status)
	}
}
