package cache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/mealplan-cache/pkg/codec"
	"github.com/Sternrassler/mealplan-cache/pkg/fallback"
	"github.com/Sternrassler/mealplan-cache/pkg/logging"
	"github.com/Sternrassler/mealplan-cache/pkg/perf"
	"github.com/Sternrassler/mealplan-cache/pkg/remote"
	"github.com/rs/zerolog"
)

// Operation names recorded by the performance collector.
const (
	opSetRedis    = "set_redis"
	opSetMemory   = "set_memory"
	opGetRedis    = "get_redis"
	opGetMemory   = "get_memory"
	opGetMiss     = "get_miss"
	opDelete      = "delete"
	opClearPrefix = "clear_prefix"

	errSet         = "set"
	errGet         = "get"
	errDelete      = "delete"
	errClearPrefix = "clear_prefix"
)

// Manager is the cache facade. Every operation tries the remote tier first and
// falls back to the local tier; no cache error ever reaches the caller.
// A single Manager is meant to be shared by all request handlers.
type Manager struct {
	cfg    Config
	remote *remote.Adapter // nil when no remote endpoint is configured
	local  *fallback.Store
	codec  codec.Codec
	perf   *perf.Collector
	logger zerolog.Logger
	clock  fallback.Clock

	// resetMu is held shared while counting and exclusively while resetting,
	// so Stats never pairs a pre-reset hit count with post-reset misses.
	resetMu   sync.RWMutex
	hits      atomic.Int64
	misses    atomic.Int64
	lastReset time.Time

	closed atomic.Bool
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	logger *zerolog.Logger
	clock  fallback.Clock
	codec  codec.Codec
}

// WithLogger sets the logger (default: component logger "cache").
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// WithClock replaces the clock used for local expiry.
func WithClock(c fallback.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithCodec overrides the codec selected by Config.Codec.
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// New creates a manager. It does not touch the network; the remote tier
// connects on Init or on first use.
func New(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}

	o := options{clock: wallClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	logger := logging.NewLogger("cache")
	if o.logger != nil {
		logger = *o.logger
	}

	c := o.codec
	if c == nil {
		var err error
		if c, err = codec.New(cfg.Codec, cfg.EnableCompression); err != nil {
			return nil, fmt.Errorf("invalid cache config: %w", err)
		}
	}

	m := &Manager{
		cfg:       cfg,
		codec:     c,
		perf:      perf.NewCollector(cfg.TimingWindow, promObserver{}),
		logger:    logger,
		clock:     o.clock,
		lastReset: o.clock.Now(),
	}

	m.local = fallback.New(cfg.LocalMaxEntries,
		fallback.WithClock(o.clock),
		fallback.WithEvictHook(func(key string) {
			LocalEvictions.Inc()
			m.logger.Debug().Str(logging.FieldTier, logging.TierLocal).Str(logging.FieldKey, key).Msg("Evicted oldest local entry")
		}),
	)

	if cfg.Remote.Enabled() {
		adapter, err := remote.New(cfg.Remote, logging.ForTier(logger, logging.TierRemote),
			remote.WithStateChange(func(_, to remote.State) {
				RemoteState.Set(float64(to))
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("invalid cache config: %w", err)
		}
		m.remote = adapter
	} else {
		logger.Info().Msg("No remote cache configured, using local fallback only")
	}

	return m, nil
}

// Init performs the remote handshake eagerly. A failure is returned for
// logging only: the manager keeps serving from the local tier.
func (m *Manager) Init(ctx context.Context) error {
	if m.remote == nil {
		return nil
	}
	if err := m.remote.Connect(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Remote cache unavailable at startup, using local fallback")
		return err
	}
	return nil
}

// Set stores data under prefix:identifier. ttlSeconds is optional; the
// configured default applies when it is omitted or not positive.
func (m *Manager) Set(ctx context.Context, prefix, identifier string, data any, ttlSeconds ...int) {
	start := time.Now()
	key := Key(prefix, identifier)

	ttl := m.cfg.DefaultTTL
	if len(ttlSeconds) > 0 && ttlSeconds[0] > 0 {
		ttl = ttlSeconds[0]
	}

	payload, err := m.codec.Encode(data)
	if err != nil {
		m.perf.RecordError(errSet)
		logging.Op(m.logger.Error(), errSet, key).Err(err).Msg("Cache set: cannot encode value")
		return
	}

	if m.remote != nil {
		err := m.remote.SetWithExpiry(ctx, key, payload, ttl)
		if err == nil {
			// A copy written during an outage must not outlive the fresh remote value.
			m.local.Delete(key)
			m.refreshGauges()
			m.perf.Since(opSetRedis, start)
			return
		}
		m.remoteFailed(errSet, key, err)
	}

	entry := fallback.Entry{Data: payload, TTLSeconds: ttl, Compressed: m.codec.Compressed(payload)}
	if err := m.local.Put(key, entry); err != nil {
		m.perf.RecordError(errSet)
		logging.Op(m.logger.Error(), errSet, key).Err(err).Msg("Cache set: local store rejected entry")
		return
	}
	m.refreshGauges()
	m.perf.Since(opSetMemory, start)
}

// Get looks up prefix:identifier and decodes it into dst, which must be a
// non-nil pointer. It reports whether a value was found; dst is left
// untouched on a miss. Exactly one hit or miss is recorded per call.
func (m *Manager) Get(ctx context.Context, prefix, identifier string, dst any) bool {
	start := time.Now()
	key := Key(prefix, identifier)

	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		m.perf.RecordError(errGet)
		logging.Op(m.logger.Error(), errGet, key).Msg("Cache get: destination must be a non-nil pointer")
		m.miss(start)
		return false
	}

	if m.remote != nil {
		payload, err := m.remote.Get(ctx, key)
		switch {
		case err == nil:
			derr := m.decodeInto(payload, rv)
			if derr == nil {
				m.hit("redis", opGetRedis, start)
				return true
			}
			m.perf.RecordError(errGet)
			logging.Op(m.logger.Warn(), errGet, key).Err(derr).Str(logging.FieldTier, logging.TierRemote).Msg("Discarding corrupt remote cache entry")
			if err := m.remote.Delete(ctx, key); err != nil {
				m.remoteFailed(errDelete, key, err)
			}
		case errors.Is(err, remote.ErrNotFound):
		default:
			m.remoteFailed(errGet, key, err)
		}
	}

	if entry, ok := m.local.Get(key); ok {
		derr := m.decodeInto(entry.Data, rv)
		if derr == nil {
			m.hit("memory", opGetMemory, start)
			return true
		}
		m.perf.RecordError(errGet)
		logging.Op(m.logger.Warn(), errGet, key).Err(derr).Str(logging.FieldTier, logging.TierLocal).Msg("Discarding corrupt local cache entry")
		m.local.Delete(key)
	}
	m.refreshGauges()

	m.miss(start)
	return false
}

// Get is the typed form of Manager.Get.
func Get[T any](ctx context.Context, m *Manager, prefix, identifier string) (T, bool) {
	var v T
	ok := m.Get(ctx, prefix, identifier, &v)
	return v, ok
}

// decodeInto decodes into a fresh value so a failed decode never leaves dst
// half written.
func (m *Manager) decodeInto(payload string, dst reflect.Value) error {
	fresh := reflect.New(dst.Elem().Type())
	if err := m.codec.Decode(payload, fresh.Interface()); err != nil {
		return err
	}
	dst.Elem().Set(fresh.Elem())
	return nil
}

func (m *Manager) hit(layer, op string, start time.Time) {
	m.resetMu.RLock()
	m.hits.Add(1)
	m.resetMu.RUnlock()
	CacheHits.WithLabelValues(layer).Inc()
	m.perf.Since(op, start)
}

func (m *Manager) miss(start time.Time) {
	m.resetMu.RLock()
	m.misses.Add(1)
	m.resetMu.RUnlock()
	CacheMisses.Inc()
	m.perf.Since(opGetMiss, start)
}

// Delete removes prefix:identifier from both tiers.
func (m *Manager) Delete(ctx context.Context, prefix, identifier string) {
	start := time.Now()
	key := Key(prefix, identifier)

	if m.remote != nil {
		if err := m.remote.Delete(ctx, key); err != nil {
			m.remoteFailed(errDelete, key, err)
		}
	}
	m.local.Delete(key)
	m.refreshGauges()
	m.perf.Since(opDelete, start)
}

// ClearPrefix removes every key under prefix from both tiers. Remote keys are
// found with a pattern scan and removed with one batched delete.
func (m *Manager) ClearPrefix(ctx context.Context, prefix string) {
	start := time.Now()
	var remoteRemoved int64

	if m.remote != nil {
		keys, err := m.remote.ScanKeys(ctx, Pattern(prefix))
		if err != nil {
			m.remoteFailed(errClearPrefix, Pattern(prefix), err)
		} else if remoteRemoved, err = m.remote.DeleteMany(ctx, keys); err != nil {
			m.remoteFailed(errClearPrefix, Pattern(prefix), err)
		}
	}

	localRemoved := m.local.DeleteByPrefix(prefix + KeyDelimiter)
	m.refreshGauges()
	m.perf.Since(opClearPrefix, start)

	m.logger.Info().
		Str(logging.FieldPrefix, prefix).
		Int64("remote_removed", remoteRemoved).
		Int("local_removed", localRemoved).
		Msg("Cleared cache prefix")
}

// remoteFailed logs and counts a remote failure. An absent or disabled
// remote tier is routine and only logged at debug level. Connection losses
// are counted but the adapter already warned when it disabled itself.
func (m *Manager) remoteFailed(op, key string, err error) {
	if errors.Is(err, remote.ErrUnavailable) || errors.Is(err, remote.ErrClosed) {
		logging.Op(m.logger.Debug(), op, key).Msg("Remote cache unavailable, using local fallback")
		return
	}
	m.perf.RecordError(op)
	if remote.IsConnectionError(err) {
		logging.Op(m.logger.Debug(), op, key).Err(err).Msg("Remote connection lost, using local fallback")
		return
	}
	logging.Op(m.logger.Warn(), op, key).Err(err).Msg("Remote cache error, using local fallback")
}

func (m *Manager) refreshGauges() {
	LocalKeys.Set(float64(m.local.Size()))
	LocalMemory.Set(float64(m.local.EstimatedMemoryUsage()))
}

// Stats returns a snapshot. Hits, Misses and LastReset always belong to the
// same reset period; the local tier fields are read live.
func (m *Manager) Stats() Stats {
	m.resetMu.RLock()
	misses := m.misses.Load()
	s := Stats{
		Hits:      m.hits.Load(),
		Misses:    misses,
		LastReset: m.lastReset,
	}
	m.resetMu.RUnlock()

	s.KeyCount = m.local.Size()
	s.MemoryUsageBytes = m.local.EstimatedMemoryUsage()
	s.LocalEvictions = m.local.Evictions()
	s.LocalExpirations = m.local.Expirations()
	return s
}

// ResetStats zeroes the hit and miss counters and the latency windows. The
// local tier's key count, memory estimate and lifetime eviction counters are
// left as they are.
func (m *Manager) ResetStats() {
	m.resetMu.Lock()
	m.hits.Store(0)
	m.misses.Store(0)
	m.lastReset = m.clock.Now()
	m.resetMu.Unlock()

	m.perf.Reset()
}

// HitRate returns the hit percentage since the last reset, 0 with no requests.
func (m *Manager) HitRate() float64 {
	return m.Stats().HitRate()
}

// PerformanceMetrics implements PerformanceReporter.
func (m *Manager) PerformanceMetrics() PerformanceReport {
	state := "absent"
	if m.remote != nil {
		state = m.remote.State().String()
	}
	return PerformanceReport{
		Operations:  m.perf.Snapshot(),
		HitRate:     m.HitRate(),
		RemoteState: state,
	}
}

// HealthCheck pings the remote tier and checks the local tier's bounds.
func (m *Manager) HealthCheck(ctx context.Context) Health {
	remoteOK := m.remote != nil && m.remote.Ping(ctx) == nil

	localOK := m.local.Size() <= m.local.MaxEntries()
	if m.cfg.MaxMemoryMB > 0 {
		localOK = localOK && m.local.EstimatedMemoryUsage() <= int64(m.cfg.MaxMemoryMB)*1024*1024
	}

	h := healthFrom(remoteOK, localOK)
	if h.Status != StatusHealthy {
		m.logger.Debug().
			Str("status", string(h.Status)).
			Bool("remote_available", remoteOK).
			Bool("local_within_bounds", localOK).
			Msg("Cache health check")
	}
	return h
}

// Close releases the remote connection and clears the local tier. It fails
// only when the remote disconnect fails; later calls are no-ops.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if m.remote != nil {
		err = m.remote.Close()
	}
	m.local.Clear()
	m.refreshGauges()

	if err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	m.logger.Info().Msg("Cache closed")
	return nil
}

var _ PerformanceReporter = (*Manager)(nil)
