// Package cache implements a generic, policy-driven in-process cache with
// lazy TTL expiry, a byte budget enforced through pluggable eviction
// strategies (LRU/LFU/FIFO), and hit/miss/eviction statistics.
package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config fixes the behavior of a Cache for its lifetime.
type Config struct {
	// TTL is the maximum age after which an entry is logically absent.
	TTL time.Duration

	// MaxSize is the byte budget. Exceeding it triggers eviction.
	MaxSize int64

	// Strategy selects the eviction algorithm.
	Strategy Strategy
}

// Cache is a mutex-guarded in-process cache. Expiry is lazy: an entry past
// its TTL is removed when it is next touched by Get, Has, Entries, or
// Cleanup, not eagerly.
type Cache[V any] struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*Entry[V]
	policy  policy
	size    int64

	hits      uint64
	misses    uint64
	evictions uint64

	sizeFn SizeFunc[V]
	now    func() time.Time
	logger zerolog.Logger
	group  string
}

// Option customizes a Cache at construction.
type Option[V any] func(*Cache[V])

// WithSizeFunc replaces the default serialized-length size approximation
// with an exact per-type size hint.
func WithSizeFunc[V any](fn SizeFunc[V]) Option[V] {
	return func(c *Cache[V]) { c.sizeFn = fn }
}

// WithLogger attaches a logger for eviction and oversized-entry warnings.
func WithLogger[V any](logger zerolog.Logger) Option[V] {
	return func(c *Cache[V]) { c.logger = logger }
}

// WithMetricsGroup enables Prometheus instrumentation under the given
// "cache" label value: hits, misses, and evictions are counted, and a lazy
// collector reports entry count and byte size at scrape time.
func WithMetricsGroup[V any](group string) Option[V] {
	return func(c *Cache[V]) { c.group = group }
}

// New creates a Cache from cfg. TTL and MaxSize must be positive and the
// strategy must be one of LRU, LFU, or FIFO.
func New[V any](cfg Config, opts ...Option[V]) (*Cache[V], error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("cache: TTL must be positive")
	}
	if cfg.MaxSize <= 0 {
		return nil, errors.New("cache: MaxSize must be positive")
	}
	pol, err := newPolicy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	c := &Cache[V]{
		cfg:     cfg,
		entries: make(map[string]*Entry[V]),
		policy:  pol,
		sizeFn:  approximateSize[V],
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.group != "" {
		registerStatsCollector(c.group, c.Stats)
	}
	return c, nil
}

// Get returns the value for key. An unseen or expired key is a miss;
// expired entries are removed on this path. A hit bumps the entry's access
// count and recency.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.miss()
		return zero, false
	}
	if c.expiredLocked(e) {
		c.removeLocked(key, e)
		c.miss()
		return zero, false
	}

	c.hit()
	e.AccessCount++
	e.LastAccessedAt = c.now()
	c.policy.onAccess(key)
	return e.Value, true
}

// Set stores value under key, evicting per the configured strategy until the
// new entry fits. Insertion never fails: an entry larger than the entire
// budget is still admitted once everything else has been evicted.
func (c *Cache[V]) Set(key string, value V) {
	size := c.sizeFn(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.removeLocked(key, old)
	}

	for c.size+size > c.cfg.MaxSize && len(c.entries) > 0 {
		victim, ok := c.policy.victim()
		if !ok {
			break
		}
		e := c.entries[victim]
		c.removeLocked(victim, e)
		c.evict()
	}
	if size > c.cfg.MaxSize {
		c.logger.Warn().
			Str("key", key).
			Int64("size", size).
			Int64("max_size", c.cfg.MaxSize).
			Msg("Admitting entry larger than the cache budget")
	}

	now := c.now()
	c.entries[key] = &Entry[V]{
		Key:            key,
		Value:          value,
		InsertedAt:     now,
		Size:           size,
		LastAccessedAt: now,
	}
	c.size += size
	c.policy.onInsert(key)
}

// Has reports whether key holds a live value. Expired entries are removed,
// as with Get, but hit/miss counters are untouched.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.expiredLocked(e) {
		c.removeLocked(key, e)
		return false
	}
	return true
}

// Delete removes key unconditionally and reports whether it existed.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(key, e)
	return true
}

// Clear drops every entry and resets the hit/miss/eviction counters.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry[V])
	c.policy, _ = newPolicy(c.cfg.Strategy)
	c.size = 0
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// Keys returns every tracked key, including expired entries not yet swept.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	return keys
}

// Entries returns all live (key, value) pairs, sweeping expired entries as
// it iterates.
func (c *Cache[V]) Entries() []KeyValue[V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]KeyValue[V], 0, len(c.entries))
	for key, e := range c.entries {
		if c.expiredLocked(e) {
			c.removeLocked(key, e)
			continue
		}
		out = append(out, KeyValue[V]{Key: key, Value: e.Value})
	}
	return out
}

// Cleanup eagerly removes every expired entry and returns how many were
// dropped.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if c.expiredLocked(e) {
			c.removeLocked(key, e)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats snapshots the current entry count, aggregate size, cumulative
// hit/miss rates, and eviction count.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Entries:   len(c.entries),
		Size:      c.size,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
		s.MissRate = float64(c.misses) / float64(total)
	}
	return s
}

// Close unregisters the Prometheus stats collector when instrumentation is
// enabled. The cache remains usable afterwards.
func (c *Cache[V]) Close() error {
	if c.group != "" {
		unregisterStatsCollector(c.group)
	}
	return nil
}

func (c *Cache[V]) expiredLocked(e *Entry[V]) bool {
	return c.now().Sub(e.InsertedAt) > c.cfg.TTL
}

func (c *Cache[V]) removeLocked(key string, e *Entry[V]) {
	delete(c.entries, key)
	c.size -= e.Size
	c.policy.onRemove(key)
}

func (c *Cache[V]) hit() {
	c.hits++
	if c.group != "" {
		HitsTotal.WithLabelValues(c.group).Inc()
	}
}

func (c *Cache[V]) miss() {
	c.misses++
	if c.group != "" {
		MissesTotal.WithLabelValues(c.group).Inc()
	}
}

func (c *Cache[V]) evict() {
	c.evictions++
	if c.group != "" {
		EvictionsTotal.WithLabelValues(c.group).Inc()
	}
}
