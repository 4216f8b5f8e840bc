package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/mealplan-cache/pkg/cache"
	"github.com/Sternrassler/mealplan-cache/pkg/config"
	"github.com/Sternrassler/mealplan-cache/pkg/logging"
	"github.com/Sternrassler/mealplan-cache/pkg/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	base := logging.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, base); err != nil {
		log.Fatal().Err(err).Msg("Service failed")
	}
}

// run serves until ctx is done, then shuts the server down and closes the
// cache exactly once.
func run(ctx context.Context, cfg config.Config, base zerolog.Logger) error {
	logger := base.With().Str(logging.FieldComponent, "mealcache").Logger()

	manager, err := cache.New(cfg.Cache, cache.WithLogger(base.With().Str(logging.FieldComponent, "cache").Logger()))
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}

	// A failed handshake only means the service starts on the local tier.
	_ = manager.Init(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newMux(manager, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str(logging.FieldAddr, srv.Addr).Msg("Starting meal-plan cache service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	serveErr := g.Wait()
	if err := manager.Close(); err != nil {
		logger.Error().Err(err).Msg("Cache close failed")
	}
	return serveErr
}

// cacheService is the subset of *cache.Manager the HTTP layer needs.
type cacheService interface {
	cache.PerformanceReporter
	HealthCheck(ctx context.Context) cache.Health
	Stats() cache.Stats
	ResetStats()
	ClearPrefix(ctx context.Context, prefix string)
}

func newMux(svc cacheService, logger zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler(svc, logger))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /cache/stats", statsHandler(svc, logger))
	mux.HandleFunc("POST /cache/stats/reset", resetHandler(svc))
	mux.HandleFunc("DELETE /cache/prefix/{prefix}", clearPrefixHandler(svc, logger))
	return mux
}

func healthHandler(svc cacheService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		h := svc.HealthCheck(ctx)
		status := http.StatusOK
		if h.Status == cache.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, h, logger)
	}
}

type statsResponse struct {
	cache.Stats
	HitRate     float64                 `json:"hit_rate"`
	Performance cache.PerformanceReport `json:"performance"`
}

func statsHandler(svc cacheService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := svc.Stats()
		writeJSON(w, http.StatusOK, statsResponse{
			Stats:       stats,
			HitRate:     stats.HitRate(),
			Performance: svc.PerformanceMetrics(),
		}, logger)
	}
}

func resetHandler(svc cacheService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.ResetStats()
		w.WriteHeader(http.StatusNoContent)
	}
}

func clearPrefixHandler(svc cacheService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefix := r.PathValue("prefix")
		if prefix == "" {
			http.Error(w, "prefix required", http.StatusBadRequest)
			return
		}
		svc.ClearPrefix(r.Context(), prefix)
		logger.Info().Str(logging.FieldPrefix, prefix).Msg("Prefix cleared via API")
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, logger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("Failed to write response")
	}
}
