package fallback

import (
	"container/list"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxEntries bounds the store when no explicit size is configured.
const DefaultMaxEntries = 1000

// ErrInvalidTTL is returned by Put for entries with a non-positive TTL.
var ErrInvalidTTL = errors.New("fallback: ttl must be positive")

// Clock provides the current time to the store.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock, mainly for expiry tests.
func WithClock(c Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithEvictHook registers a callback invoked (under the store lock) for every
// capacity eviction. The hook must not call back into the store.
func WithEvictHook(fn func(key string)) Option {
	return func(s *Store) {
		s.onEvict = fn
	}
}

type item struct {
	key   string
	entry Entry
	size  int64
}

// Store is a bounded, insertion-ordered map with lazy expiry.
// When full, inserting a new key evicts the oldest inserted key (FIFO).
// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // front = oldest insertion
	maxSize  int
	memBytes int64
	clock    Clock
	onEvict  func(key string)

	evictions   atomic.Int64
	expirations atomic.Int64
}

// New creates a store holding at most maxEntries entries.
func New(maxEntries int, opts ...Option) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	s := &Store{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxEntries,
		clock:   realClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores entry under key. A new key arriving at capacity evicts the
// oldest inserted entry first. Overwriting a key keeps its position.
func (s *Store) Put(key string, entry Entry) error {
	if entry.TTLSeconds <= 0 {
		return ErrInvalidTTL
	}
	if entry.StoredAt.IsZero() {
		entry.StoredAt = s.clock.Now()
	}
	size := footprint(key, entry)

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		it := el.Value.(*item)
		s.memBytes += size - it.size
		it.entry = entry
		it.size = size
		return nil
	}

	for s.order.Len() >= s.maxSize {
		s.evictOldest()
	}

	s.items[key] = s.order.PushBack(&item{key: key, entry: entry, size: size})
	s.memBytes += size
	return nil
}

// Get returns the entry for key. Expired entries are removed and reported
// as absent.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return Entry{}, false
	}

	it := el.Value.(*item)
	if it.entry.IsExpired(s.clock.Now()) {
		s.remove(el)
		s.expirations.Add(1)
		return Entry{}, false
	}
	return it.entry, true
}

// Delete removes key if present.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		s.remove(el)
	}
}

// DeleteByPrefix removes every key starting with prefix and returns how many
// were removed.
func (s *Store) DeleteByPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		if strings.HasPrefix(el.Value.(*item).key, prefix) {
			s.remove(el)
			removed++
		}
		el = next
	}
	return removed
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*list.Element)
	s.order.Init()
	s.memBytes = 0
}

// Size returns the number of entries currently held, expired or not.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// MaxEntries returns the configured capacity.
func (s *Store) MaxEntries() int {
	return s.maxSize
}

// EstimatedMemoryUsage returns the approximate bytes held by keys and entries.
func (s *Store) EstimatedMemoryUsage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memBytes
}

// keys returns the current keys in insertion order.
func (s *Store) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*item).key)
	}
	return keys
}

// Evictions returns the number of capacity evictions so far.
func (s *Store) Evictions() int64 {
	return s.evictions.Load()
}

// Expirations returns the number of entries dropped by lazy expiry.
func (s *Store) Expirations() int64 {
	return s.expirations.Load()
}

// evictOldest removes the front element (caller must hold lock).
func (s *Store) evictOldest() {
	el := s.order.Front()
	if el == nil {
		return
	}
	key := el.Value.(*item).key
	s.remove(el)
	s.evictions.Add(1)
	if s.onEvict != nil {
		s.onEvict(key)
	}
}

// remove unlinks el (caller must hold lock).
func (s *Store) remove(el *list.Element) {
	it := el.Value.(*item)
	s.order.Remove(el)
	delete(s.items, it.key)
	s.memBytes -= it.size
}
