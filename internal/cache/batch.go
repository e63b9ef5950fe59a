package cache

import "sync"

type batchOpKind int

const (
	opSet batchOpKind = iota
	opDelete
)

type batchOp[V any] struct {
	kind  batchOpKind
	cache *Cache[V]
	key   string
	value V
}

// Batch defers set/delete operations against one or more engines and replays
// them in insertion order on Execute. It provides no atomicity across
// engines: operations already applied stay applied.
type Batch[V any] struct {
	mu  sync.Mutex
	ops []batchOp[V]
}

// NewBatch creates an empty operation buffer.
func NewBatch[V any]() *Batch[V] {
	return &Batch[V]{}
}

// Set queues a set against c. No engine is touched until Execute.
func (b *Batch[V]) Set(c *Cache[V], key string, value V) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, batchOp[V]{kind: opSet, cache: c, key: key, value: value})
}

// Delete queues a delete against c.
func (b *Batch[V]) Delete(c *Cache[V], key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, batchOp[V]{kind: opDelete, cache: c, key: key})
}

// Len returns the number of queued operations.
func (b *Batch[V]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// Execute replays all queued operations in order, then empties the buffer.
func (b *Batch[V]) Execute() {
	b.mu.Lock()
	ops := b.ops
	b.ops = nil
	b.mu.Unlock()

	for _, op := range ops {
		switch op.kind {
		case opSet:
			op.cache.Set(op.key, op.value)
		case opDelete:
			op.cache.Delete(op.key)
		}
	}
}

// Clear discards all queued operations without executing them.
func (b *Batch[V]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = nil
}
