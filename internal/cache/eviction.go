package cache

import (
	"fmt"
	"math"

	simplelru "github.com/hashicorp/golang-lru/v2/simplelru"
)

// Strategy selects the eviction algorithm used when the byte budget is
// exceeded.
type Strategy string

const (
	// LRU evicts the entry with the oldest last access.
	LRU Strategy = "lru"
	// LFU evicts the entry with the fewest accesses, ties broken by
	// insertion order.
	LFU Strategy = "lfu"
	// FIFO evicts the oldest-inserted entry regardless of access pattern.
	FIFO Strategy = "fifo"
)

// policy is the bookkeeping side of an eviction strategy. The cache tells it
// about inserts, accesses, and removals; it answers which key to evict next.
// All methods are called with the cache mutex held.
type policy interface {
	onInsert(key string)
	onAccess(key string)
	onRemove(key string)
	victim() (string, bool)
}

func newPolicy(s Strategy) (policy, error) {
	switch s {
	case LRU:
		return newLRUPolicy(), nil
	case LFU:
		return newLFUPolicy(), nil
	case FIFO:
		return newFIFOPolicy(), nil
	default:
		return nil, fmt.Errorf("cache: unknown eviction strategy %q", s)
	}
}

// lruPolicy tracks recency with a simplelru list. The list capacity is set
// high enough that it never evicts on its own; victim selection is always
// driven by the cache's byte budget.
type lruPolicy struct {
	order *simplelru.LRU[string, struct{}]
}

func newLRUPolicy() *lruPolicy {
	order, _ := simplelru.NewLRU[string, struct{}](math.MaxInt32, nil)
	return &lruPolicy{order: order}
}

func (p *lruPolicy) onInsert(key string) { p.order.Add(key, struct{}{}) }
func (p *lruPolicy) onAccess(key string) { _, _ = p.order.Get(key) }
func (p *lruPolicy) onRemove(key string) { p.order.Remove(key) }

func (p *lruPolicy) victim() (string, bool) {
	key, _, ok := p.order.GetOldest()
	return key, ok
}

// lfuPolicy counts accesses per key. Victim selection scans for the smallest
// (count, insertion sequence) pair so equally-used keys evict oldest-first.
type lfuPolicy struct {
	meta map[string]*lfuMeta
	seq  uint64
}

type lfuMeta struct {
	count uint64
	seq   uint64
}

func newLFUPolicy() *lfuPolicy {
	return &lfuPolicy{meta: make(map[string]*lfuMeta)}
}

func (p *lfuPolicy) onInsert(key string) {
	p.seq++
	p.meta[key] = &lfuMeta{seq: p.seq}
}

func (p *lfuPolicy) onAccess(key string) {
	if m, ok := p.meta[key]; ok {
		m.count++
	}
}

func (p *lfuPolicy) onRemove(key string) { delete(p.meta, key) }

func (p *lfuPolicy) victim() (string, bool) {
	var (
		victim string
		best   *lfuMeta
	)
	for key, m := range p.meta {
		if best == nil || m.count < best.count || (m.count == best.count && m.seq < best.seq) {
			victim, best = key, m
		}
	}
	return victim, best != nil
}

// fifoPolicy keeps insertion order in a queue. Each queue entry carries the
// sequence number of the insert that produced it, so a position left behind
// by a removed or re-inserted key can never be mistaken for the key's
// current one. Stale entries are dropped lazily when they surface at the
// front.
type fifoPolicy struct {
	queue []fifoEntry
	live  map[string]uint64
	seq   uint64
}

type fifoEntry struct {
	key string
	seq uint64
}

func newFIFOPolicy() *fifoPolicy {
	return &fifoPolicy{live: make(map[string]uint64)}
}

func (p *fifoPolicy) onInsert(key string) {
	if _, ok := p.live[key]; ok {
		return
	}
	p.seq++
	p.queue = append(p.queue, fifoEntry{key: key, seq: p.seq})
	p.live[key] = p.seq
}

func (p *fifoPolicy) onAccess(string) {}

func (p *fifoPolicy) onRemove(key string) { delete(p.live, key) }

// victim peeks at the oldest live entry, skipping positions whose sequence
// no longer matches the key's current insertion.
func (p *fifoPolicy) victim() (string, bool) {
	for len(p.queue) > 0 {
		head := p.queue[0]
		if seq, ok := p.live[head.key]; ok && seq == head.seq {
			return head.key, true
		}
		p.queue = p.queue[1:]
	}
	return "", false
}
