package cache

import "time"

// Entry is the record tracked per key. It is owned exclusively by the Cache
// instance that created it and mutated in place on each Get.
type Entry[V any] struct {
	Key            string
	Value          V
	InsertedAt     time.Time
	Size           int64
	AccessCount    uint64
	LastAccessedAt time.Time
}

// KeyValue is a single live (key, value) pair returned by Entries.
type KeyValue[V any] struct {
	Key   string
	Value V
}

// Stats is a point-in-time snapshot derived from the live entry set and the
// cumulative hit/miss/eviction counters. Counters are never reset by reads.
type Stats struct {
	Entries   int
	Size      int64
	HitRate   float64
	MissRate  float64
	Evictions uint64
}
