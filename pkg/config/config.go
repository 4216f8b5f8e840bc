// Package config loads the service configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/mealplan-cache/pkg/cache"
	"github.com/Sternrassler/mealplan-cache/pkg/logging"
	"github.com/joho/godotenv"
)

// Config is the complete service configuration.
type Config struct {
	Cache cache.Config
	Log   logging.Config

	// Port the HTTP server listens on.
	Port string

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		Cache:           cache.DefaultConfig(),
		Log:             logging.DefaultConfig(),
		Port:            "8080",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load reads .env files (default: ./.env, missing files are ignored) and then
// the process environment. Real environment variables win over .env values.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env file: %w", err)
	}

	cfg := Default()
	if err := fromEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Cache.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

// envReader collects parse errors so all bad variables are reported at once.
type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.lookup(key); ok && v != "" {
		*dst = v
	}
}

func (r *envReader) int(key string, dst *int) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return
	}
	*dst = n
}

func (r *envReader) bool(key string, dst *bool) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return
	}
	*dst = b
}

func (r *envReader) millis(key string, dst *time.Duration) {
	n := -1
	r.int(key, &n)
	if n >= 0 {
		*dst = time.Duration(n) * time.Millisecond
	}
}

func (r *envReader) seconds(key string, dst *time.Duration) {
	n := -1
	r.int(key, &n)
	if n >= 0 {
		*dst = time.Duration(n) * time.Second
	}
}

func fromEnv(cfg *Config, lookup lookupFunc) error {
	r := &envReader{lookup: lookup}

	// Remote tier
	rc := &cfg.Cache.Remote
	r.str("REDIS_URL", &rc.URL)
	r.str("REDIS_HOST", &rc.Host)
	r.int("REDIS_PORT", &rc.Port)
	r.str("REDIS_PASSWORD", &rc.Password)
	r.int("REDIS_DB", &rc.DB)
	r.millis("CACHE_OPERATION_TIMEOUT_MS", &rc.OperationTimeout)
	r.millis("CACHE_CONNECT_TIMEOUT_MS", &rc.ConnectTimeout)
	r.seconds("CACHE_RECONNECT_AFTER_SECONDS", &rc.ReconnectAfter)

	// Cache behaviour
	r.int("CACHE_DEFAULT_TTL", &cfg.Cache.DefaultTTL)
	r.int("CACHE_MAX_MEMORY_MB", &cfg.Cache.MaxMemoryMB)
	r.bool("CACHE_ENABLE_COMPRESSION", &cfg.Cache.EnableCompression)
	r.str("CACHE_CODEC", &cfg.Cache.Codec)
	r.int("CACHE_LOCAL_MAX_ENTRIES", &cfg.Cache.LocalMaxEntries)
	r.int("CACHE_TIMING_WINDOW", &cfg.Cache.TimingWindow)

	// Service
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		level, err := logging.ParseLevel(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("LOG_LEVEL: %w", err))
		} else {
			cfg.Log.Level = level
		}
	}
	r.bool("LOG_PRETTY", &cfg.Log.Pretty)
	r.str("PORT", &cfg.Port)
	r.seconds("SHUTDOWN_TIMEOUT_SECONDS", &cfg.ShutdownTimeout)

	return errors.Join(r.errs...)
}
