// Package remote wraps the shared Redis cache behind a small, failure-aware
// adapter.
//
// The adapter connects lazily and moves to Disabled on the first
// connection-level error. With ReconnectAfter set it probes the server again
// once the cool-down has elapsed; otherwise it stays disabled until restart.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/mealplan-cache/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// State is the adapter lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateConnected
	StateDisabled
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisabled:
		return "disabled"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds the remote connection settings.
type Config struct {
	// URL is a redis:// or rediss:// URL. Takes precedence over Host/Port.
	URL string

	Host     string
	Port     int
	Password string
	DB       int

	// OperationTimeout bounds every single call.
	OperationTimeout time.Duration

	// ConnectTimeout bounds the handshake.
	ConnectTimeout time.Duration

	// ReconnectAfter is the cool-down before a disabled adapter probes again.
	// Zero keeps the adapter disabled for the rest of the process lifetime.
	ReconnectAfter time.Duration

	// ScanCount is the COUNT hint passed to SCAN.
	ScanCount int64
}

// DefaultConfig returns timeouts suitable for request-path use.
func DefaultConfig() Config {
	return Config{
		Port:             6379,
		OperationTimeout: 500 * time.Millisecond,
		ConnectTimeout:   2 * time.Second,
		ScanCount:        100,
	}
}

// Enabled reports whether a remote endpoint is configured at all.
func (c Config) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

func (c Config) redisOptions() (*redis.Options, error) {
	if c.URL != "" {
		opts, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opts, nil
	}
	if c.Host == "" {
		return nil, errors.New("redis host or url is required")
	}

	port := c.Port
	if port == 0 {
		port = 6379
	}
	return &redis.Options{
		Addr:     net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Password: c.Password,
		DB:       c.DB,
	}, nil
}

// Adapter is safe for concurrent use.
type Adapter struct {
	cfg    Config
	opts   *redis.Options
	logger zerolog.Logger

	mu         sync.RWMutex
	state      State
	client     *redis.Client
	disabledAt time.Time

	connect       singleflight.Group
	onStateChange func(from, to State)
	now           func() time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithStateChange registers a callback for every state transition.
// It runs under the adapter lock and must not call back into the adapter.
func WithStateChange(fn func(from, to State)) Option {
	return func(a *Adapter) {
		a.onStateChange = fn
	}
}

// WithNow replaces the clock used for the reconnect cool-down.
func WithNow(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// New validates cfg and returns an unconnected adapter.
func New(cfg Config, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	def := DefaultConfig()
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = def.OperationTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.ScanCount <= 0 {
		cfg.ScanCount = def.ScanCount
	}

	redisOpts, err := cfg.redisOptions()
	if err != nil {
		return nil, err
	}
	redisOpts.DialTimeout = cfg.ConnectTimeout
	redisOpts.ReadTimeout = cfg.OperationTimeout
	redisOpts.WriteTimeout = cfg.OperationTimeout

	a := &Adapter{
		cfg:    cfg,
		opts:   redisOpts,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Connect performs the handshake if the adapter is not connected yet.
// Concurrent callers share one handshake; each waits at most until its own
// context is done.
func (a *Adapter) Connect(ctx context.Context) error {
	ch := a.connect.DoChan("connect", func() (any, error) {
		return nil, a.handshake()
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return &OpError{Op: "connect", Class: ErrorClassTimeout, Err: ctx.Err()}
	}
}

func (a *Adapter) handshake() error {
	a.mu.Lock()
	switch a.state {
	case StateConnected:
		a.mu.Unlock()
		return nil
	case StateClosed:
		a.mu.Unlock()
		return ErrClosed
	}
	a.setState(StateConnecting)
	a.mu.Unlock()

	client := redis.NewClient(a.opts)
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ConnectTimeout)
	err := client.Ping(ctx).Err()
	cancel()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateClosed {
		_ = client.Close()
		return ErrClosed
	}
	if err != nil {
		_ = client.Close()
		a.disableLocked(err)
		return &OpError{Op: "connect", Class: ErrorClassConnection, Err: err}
	}

	a.client = client
	a.setState(StateConnected)
	a.logger.Info().Str(logging.FieldAddr, a.opts.Addr).Msg("Connected to remote cache")
	return nil
}

// acquire returns the live client, connecting lazily or probing after the
// reconnect cool-down.
func (a *Adapter) acquire(ctx context.Context) (*redis.Client, error) {
	a.mu.RLock()
	state, client, disabledAt := a.state, a.client, a.disabledAt
	a.mu.RUnlock()

	switch state {
	case StateConnected:
		return client, nil
	case StateClosed:
		return nil, ErrClosed
	case StateDisabled:
		if a.cfg.ReconnectAfter <= 0 || a.now().Sub(disabledAt) < a.cfg.ReconnectAfter {
			return nil, ErrUnavailable
		}
	}

	if err := a.Connect(ctx); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state != StateConnected {
		return nil, ErrUnavailable
	}
	return a.client, nil
}

// do runs fn against the live client under the operation timeout and
// classifies its error.
func (a *Adapter) do(ctx context.Context, op, key string, fn func(context.Context, *redis.Client) error) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.OperationTimeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return &OpError{Op: op, Key: key, Class: ErrorClassTimeout, Err: err}
	}

	client, err := a.acquire(ctx)
	if err != nil {
		return err
	}

	err = fn(ctx, client)
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}

	class := classify(err)
	if class == ErrorClassConnection {
		a.fail(client, err)
	}
	return &OpError{Op: op, Key: key, Class: class, Err: err}
}

// fail disables the adapter if client is still the live connection.
func (a *Adapter) fail(client *redis.Client, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != client || a.state != StateConnected {
		return
	}
	a.disableLocked(err)
	a.client = nil
	go client.Close()
}

// disableLocked moves to Disabled (caller must hold lock).
func (a *Adapter) disableLocked(err error) {
	a.disabledAt = a.now()
	if a.state == StateDisabled {
		return
	}
	a.setState(StateDisabled)

	event := a.logger.Warn().Err(err).Str(logging.FieldAddr, a.opts.Addr)
	if a.cfg.ReconnectAfter > 0 {
		event.Dur("reconnect_after", a.cfg.ReconnectAfter).Msg("Remote cache disabled, will probe again after cool-down")
	} else {
		event.Msg("Remote cache disabled for the rest of the process lifetime, using local fallback")
	}
}

// setState transitions state (caller must hold lock).
func (a *Adapter) setState(to State) {
	from := a.state
	if from == to {
		return
	}
	a.state = to
	if a.onStateChange != nil {
		a.onStateChange(from, to)
	}
}

// SetWithExpiry stores value under key for ttlSeconds (SET key value EX ttl).
func (a *Adapter) SetWithExpiry(ctx context.Context, key, value string, ttlSeconds int) error {
	if ttlSeconds <= 0 {
		return fmt.Errorf("remote set %q: ttl must be positive", key)
	}
	return a.do(ctx, "set", key, func(ctx context.Context, c *redis.Client) error {
		return c.Set(ctx, key, value, time.Duration(ttlSeconds)*time.Second).Err()
	})
}

// Get returns the stored value or ErrNotFound.
func (a *Adapter) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := a.do(ctx, "get", key, func(ctx context.Context, c *redis.Client) error {
		v, err := c.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		value = v
		return err
	})
	return value, err
}

// Delete removes key.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	return a.do(ctx, "delete", key, func(ctx context.Context, c *redis.Client) error {
		return c.Del(ctx, key).Err()
	})
}

// DeleteMany removes keys with a single DEL. An empty slice is a no-op.
func (a *Adapter) DeleteMany(ctx context.Context, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var n int64
	err := a.do(ctx, "delete_many", "", func(ctx context.Context, c *redis.Client) error {
		var err error
		n, err = c.Del(ctx, keys...).Result()
		return err
	})
	return n, err
}

// ScanKeys returns every key matching pattern using cursor-based SCAN.
func (a *Adapter) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := a.do(ctx, "scan", pattern, func(ctx context.Context, c *redis.Client) error {
		seen := make(map[string]struct{})
		var cursor uint64
		for {
			batch, next, err := c.Scan(ctx, cursor, pattern, a.cfg.ScanCount).Result()
			if err != nil {
				return err
			}
			for _, k := range batch {
				if _, dup := seen[k]; !dup {
					seen[k] = struct{}{}
					keys = append(keys, k)
				}
			}
			if next == 0 {
				return nil
			}
			cursor = next
		}
	})
	return keys, err
}

// Ping checks the server round trip.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.do(ctx, "ping", "", func(ctx context.Context, c *redis.Client) error {
		return c.Ping(ctx).Err()
	})
}

// Close releases the connection. Later calls return nil.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateClosed {
		return nil
	}
	client := a.client
	a.client = nil
	a.setState(StateClosed)

	if client != nil {
		if err := client.Close(); err != nil {
			return fmt.Errorf("close redis client: %w", err)
		}
	}
	return nil
}
