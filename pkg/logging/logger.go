// Package logging configures zerolog for the meal-plan cache and defines the
// structured fields every component logs with.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Field names shared by all cache components.
const (
	FieldComponent = "component"
	FieldTier      = "tier"
	FieldOperation = "operation"
	FieldKey       = "key"
	FieldPrefix    = "prefix"
	FieldAddr      = "addr"
)

// Cache tiers as they appear in the tier field.
const (
	TierRemote = "remote"
	TierLocal  = "local"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written. The zero value is debug.
	Level zerolog.Level

	// Pretty enables human-readable console output (default: JSON).
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns info-level JSON logging to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  zerolog.InfoLevel,
		Output: os.Stderr,
	}
}

// ParseLevel converts a LOG_LEVEL value (case-insensitive). An empty name
// means info; unknown names are an error.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level)

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// NewLogger derives a component logger from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str(FieldComponent, component).Logger()
}

// ForTier derives a logger for code that reports on a single cache tier.
func ForTier(parent zerolog.Logger, tier string) zerolog.Logger {
	return parent.With().Str(FieldTier, tier).Logger()
}

// Op tags an event with the cache operation and key it concerns. Safe on
// events disabled by level.
func Op(e *zerolog.Event, operation, key string) *zerolog.Event {
	return e.Str(FieldOperation, operation).Str(FieldKey, key)
}

// Log Level Guidelines:
//
// Debug: cache hit/miss decisions, local evictions, remote tier skipped
// while disabled.
//
// Info: remote connection established, prefix invalidations (counts per
// tier), server startup/shutdown.
//
// Warn: remote tier disabled (once per transition), remote command errors and
// timeouts, corrupt payloads discarded.
//
// Error: values that cannot be encoded, rejected local writes, failed shutdown.
