package cache

import (
	"testing"
	"time"
)

// testClock is a manually advanced clock for TTL-boundary tests.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(t *testing.T, cfg Config, opts ...Option[string]) (*Cache[string], *testClock) {
	t.Helper()
	c, err := New[string](cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	clock := newTestClock()
	c.now = clock.Now
	return c, clock
}

func TestCache_GetSet(t *testing.T) {
	c, _ := newTestCache(t, Config{TTL: time.Hour, MaxSize: 1 << 20, Strategy: LRU})

	// Miss
	if _, ok := c.Get("key1"); ok {
		t.Fatal("Expected miss for key1")
	}

	// Set + hit
	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("Expected hit for key1")
	}
	if val != "value1" {
		t.Fatalf("Expected value1, got %s", val)
	}

	stats := c.Stats()
	if stats.Entries != 1 {
		t.Fatalf("Expected 1 entry, got %d", stats.Entries)
	}
	if stats.HitRate != 0.5 || stats.MissRate != 0.5 {
		t.Fatalf("Expected hit/miss rate 0.5/0.5, got %v/%v", stats.HitRate, stats.MissRate)
	}
}

func TestCache_ExpiryBoundary(t *testing.T) {
	c, clock := newTestCache(t, Config{TTL: time.Second, MaxSize: 1 << 20, Strategy: LRU})

	c.Set("k", "1")

	clock.Advance(999 * time.Millisecond)
	if v, ok := c.Get("k"); !ok || v != "1" {
		t.Fatalf("Expected hit just before TTL, got (%q, %v)", v, ok)
	}

	clock.Advance(2 * time.Millisecond) // t=1001ms
	if _, ok := c.Get("k"); ok {
		t.Fatal("Expected miss just past TTL")
	}

	// Lazy expiry removed the entry on that Get.
	if c.Len() != 0 {
		t.Fatalf("Expected expired entry to be removed, Len=%d", c.Len())
	}
}

func TestCache_HasDoesNotTouchStats(t *testing.T) {
	c, clock := newTestCache(t, Config{TTL: time.Minute, MaxSize: 1 << 20, Strategy: LRU})

	c.Set("k", "v")
	if !c.Has("k") {
		t.Fatal("Expected Has to report live key")
	}
	if c.Has("absent") {
		t.Fatal("Expected Has to report absent key as false")
	}

	stats := c.Stats()
	if stats.HitRate != 0 || stats.MissRate != 0 {
		t.Fatalf("Has must not mutate hit/miss counters, got %v/%v", stats.HitRate, stats.MissRate)
	}

	// Has applies the same lazy expiry as Get.
	clock.Advance(2 * time.Minute)
	if c.Has("k") {
		t.Fatal("Expected Has to report expired key as absent")
	}
	if c.Len() != 0 {
		t.Fatalf("Expected expired entry to be swept by Has, Len=%d", c.Len())
	}
}

func TestCache_Delete(t *testing.T) {
	c, _ := newTestCache(t, Config{TTL: time.Hour, MaxSize: 1 << 20, Strategy: LRU})

	c.Set("k", "v")
	if !c.Delete("k") {
		t.Fatal("Expected Delete of existing key to return true")
	}
	if c.Delete("k") {
		t.Fatal("Expected Delete of absent key to return false")
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("Expected deleted key to be absent")
	}
}

func TestCache_ClearResetsCounters(t *testing.T) {
	c, _ := newTestCache(t, Config{TTL: time.Hour, MaxSize: 16, Strategy: LRU})

	c.Set("a", "0123456789") // 10 bytes
	c.Set("b", "0123456789") // forces one eviction
	c.Get("b")
	c.Get("absent")

	c.Clear()

	stats := c.Stats()
	if stats.Entries != 0 || stats.Size != 0 {
		t.Fatalf("Expected empty cache after Clear, got %+v", stats)
	}
	if stats.HitRate != 0 || stats.MissRate != 0 || stats.Evictions != 0 {
		t.Fatalf("Expected counters reset after Clear, got %+v", stats)
	}
}

func TestCache_KeysIncludesUnsweptExpired(t *testing.T) {
	c, clock := newTestCache(t, Config{TTL: time.Second, MaxSize: 1 << 20, Strategy: LRU})

	c.Set("live", "v")
	clock.Advance(2 * time.Second)
	c.Set("fresh", "v")

	// Keys does not sweep: the expired entry is still listed.
	if got := len(c.Keys()); got != 2 {
		t.Fatalf("Expected 2 keys including the expired one, got %d", got)
	}

	// Entries sweeps while iterating.
	entries := c.Entries()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 live entry, got %d", len(entries))
	}
	if entries[0].Key != "fresh" {
		t.Fatalf("Expected live entry 'fresh', got %q", entries[0].Key)
	}
	if got := len(c.Keys()); got != 1 {
		t.Fatalf("Expected expired entry swept after Entries, got %d keys", got)
	}
}

func TestCache_Cleanup(t *testing.T) {
	c, clock := newTestCache(t, Config{TTL: time.Second, MaxSize: 1 << 20, Strategy: LRU})

	c.Set("a", "1")
	c.Set("b", "2")
	clock.Advance(2 * time.Second)
	c.Set("c", "3")

	if removed := c.Cleanup(); removed != 2 {
		t.Fatalf("Expected 2 expired entries removed, got %d", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("Expected 1 entry after Cleanup, got %d", c.Len())
	}
}

func TestCache_SizeBudgetInvariant(t *testing.T) {
	c, _ := newTestCache(t, Config{TTL: time.Hour, MaxSize: 64, Strategy: LRU})

	// Each value is 16 bytes; the fifth insert must evict.
	for _, key := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		c.Set(key, "0123456789abcdef")
		if s := c.Stats(); s.Size > 64 {
			t.Fatalf("Size budget exceeded after Set(%q): %d > 64", key, s.Size)
		}
	}
	if s := c.Stats(); s.Evictions != 3 {
		t.Fatalf("Expected 3 evictions, got %d", s.Evictions)
	}
}

func TestCache_OversizedEntryAdmitted(t *testing.T) {
	c, _ := newTestCache(t, Config{TTL: time.Hour, MaxSize: 8, Strategy: LRU})

	c.Set("small", "1234")
	c.Set("huge", "this value is far larger than the whole budget")

	// Make-room, never refuse: everything else is evicted, then the
	// oversized entry is admitted with the budget overrun.
	if _, ok := c.Get("huge"); !ok {
		t.Fatal("Expected oversized entry to be admitted")
	}
	if c.Has("small") {
		t.Fatal("Expected smaller entry to have been evicted first")
	}
}

func TestCache_Overwrite(t *testing.T) {
	c, _ := newTestCache(t, Config{TTL: time.Hour, MaxSize: 1 << 20, Strategy: LRU})

	c.Set("key", "v1")
	c.Set("key", "v2")

	val, ok := c.Get("key")
	if !ok {
		t.Fatal("Expected hit")
	}
	if val != "v2" {
		t.Fatalf("Expected v2, got %s", val)
	}
	if c.Len() != 1 {
		t.Fatalf("Expected Len 1 after overwrite, got %d", c.Len())
	}

	// Overwrite accounts the new size, not the sum of both.
	if s := c.Stats(); s.Size != 2 {
		t.Fatalf("Expected size 2 after overwrite, got %d", s.Size)
	}
}

func TestCache_InvalidConfig(t *testing.T) {
	if _, err := New[string](Config{TTL: time.Hour, MaxSize: 0, Strategy: LRU}); err == nil {
		t.Fatal("Expected error for zero MaxSize")
	}
	if _, err := New[string](Config{TTL: 0, MaxSize: 1, Strategy: LRU}); err == nil {
		t.Fatal("Expected error for zero TTL")
	}
	if _, err := New[string](Config{TTL: time.Hour, MaxSize: 1, Strategy: "random"}); err == nil {
		t.Fatal("Expected error for unknown strategy")
	}
}

func TestCache_WithSizeFunc(t *testing.T) {
	c, err := New[string](
		Config{TTL: time.Hour, MaxSize: 100, Strategy: LRU},
		WithSizeFunc[string](func(string) int64 { return 50 }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	c.Set("a", "x")
	c.Set("b", "y")
	if s := c.Stats(); s.Size != 100 {
		t.Fatalf("Expected size 100 from size hint, got %d", s.Size)
	}
	c.Set("c", "z")
	if s := c.Stats(); s.Evictions != 1 {
		t.Fatalf("Expected 1 eviction at budget, got %d", s.Evictions)
	}
}
