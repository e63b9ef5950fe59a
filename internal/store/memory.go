package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

func init() {
	Register("memory", func(Config) (BlobStore, error) {
		return NewMemoryStore(), nil
	})
}

// MemoryStore is a map-backed BlobStore for tests and environments without
// a durable backend. Records pass through the same envelope codec as the
// redis provider so serialization issues surface in tests too.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	offline bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// SetAvailable toggles the capability probe, letting tests simulate an
// environment where the durable store is absent.
func (s *MemoryStore) SetAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = !available
}

func (s *MemoryStore) Available(context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.offline
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte, storedAt time.Time) error {
	raw, err := encodeRecord(Record{Value: value, StoredAt: storedAt})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = raw
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (Record, bool, error) {
	s.mu.RLock()
	raw, ok := s.records[key]
	s.mu.RUnlock()

	if !ok {
		return Record{}, false, nil
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for key := range s.records {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
