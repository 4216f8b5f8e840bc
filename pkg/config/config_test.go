package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func mapLookup(env map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Cache.DefaultTTL != 3600 {
		t.Errorf("DefaultTTL = %d, want 3600", cfg.Cache.DefaultTTL)
	}
	if cfg.Cache.LocalMaxEntries != 1000 {
		t.Errorf("LocalMaxEntries = %d, want 1000", cfg.Cache.LocalMaxEntries)
	}
	if cfg.Cache.TimingWindow != 100 {
		t.Errorf("TimingWindow = %d, want 100", cfg.Cache.TimingWindow)
	}
	if cfg.Cache.Remote.Enabled() {
		t.Error("remote tier should be disabled without REDIS_URL/REDIS_HOST")
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	err := fromEnv(&cfg, mapLookup(map[string]string{
		"REDIS_HOST":                    "cache.internal",
		"REDIS_PORT":                    "6380",
		"REDIS_PASSWORD":                "s3cret",
		"REDIS_DB":                      "2",
		"CACHE_OPERATION_TIMEOUT_MS":    "250",
		"CACHE_CONNECT_TIMEOUT_MS":      "1500",
		"CACHE_RECONNECT_AFTER_SECONDS": "30",
		"CACHE_DEFAULT_TTL":             "1800",
		"CACHE_MAX_MEMORY_MB":           "64",
		"CACHE_ENABLE_COMPRESSION":      "true",
		"CACHE_CODEC":                   "gzip",
		"CACHE_LOCAL_MAX_ENTRIES":       "500",
		"CACHE_TIMING_WINDOW":           "50",
		"LOG_LEVEL":                     "debug",
		"LOG_PRETTY":                    "1",
		"PORT":                          "9090",
	}))
	if err != nil {
		t.Fatalf("fromEnv failed: %v", err)
	}

	rc := cfg.Cache.Remote
	if rc.Host != "cache.internal" || rc.Port != 6380 || rc.Password != "s3cret" || rc.DB != 2 {
		t.Errorf("unexpected remote config: %+v", rc)
	}
	if rc.OperationTimeout != 250*time.Millisecond || rc.ConnectTimeout != 1500*time.Millisecond {
		t.Errorf("unexpected timeouts: %v / %v", rc.OperationTimeout, rc.ConnectTimeout)
	}
	if rc.ReconnectAfter != 30*time.Second {
		t.Errorf("ReconnectAfter = %v", rc.ReconnectAfter)
	}
	if !rc.Enabled() {
		t.Error("remote tier should be enabled")
	}

	c := cfg.Cache
	if c.DefaultTTL != 1800 || c.MaxMemoryMB != 64 || !c.EnableCompression || c.Codec != "gzip" ||
		c.LocalMaxEntries != 500 || c.TimingWindow != 50 {
		t.Errorf("unexpected cache config: %+v", c)
	}
	if cfg.Log.Level != zerolog.DebugLevel || !cfg.Log.Pretty {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
}

func TestFromEnv_InvalidValues(t *testing.T) {
	cfg := Default()
	err := fromEnv(&cfg, mapLookup(map[string]string{
		"CACHE_DEFAULT_TTL":        "one hour",
		"CACHE_ENABLE_COMPRESSION": "maybe",
		"LOG_LEVEL":                "verbose",
	}))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"CACHE_DEFAULT_TTL", "CACHE_ENABLE_COMPRESSION", "LOG_LEVEL"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q should mention %s", err, key)
		}
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.env")
	content := "REDIS_URL=redis://localhost:6379/4\nCACHE_DEFAULT_TTL=120\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	// Real environment wins over the file.
	t.Setenv("CACHE_DEFAULT_TTL", "90")
	// godotenv.Load sets REDIS_URL in the process environment.
	t.Setenv("REDIS_URL", "")
	os.Unsetenv("REDIS_URL")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Cache.Remote.URL != "redis://localhost:6379/4" {
		t.Errorf("URL = %q", cfg.Cache.Remote.URL)
	}
	if cfg.Cache.DefaultTTL != 90 {
		t.Errorf("DefaultTTL = %d, want 90", cfg.Cache.DefaultTTL)
	}
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}

func TestLoad_InvalidCacheConfig(t *testing.T) {
	t.Setenv("CACHE_LOCAL_MAX_ENTRIES", "0")

	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err == nil {
		t.Error("expected validation error")
	}
}
