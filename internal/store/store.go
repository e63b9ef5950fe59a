// Package store provides the durable key-value blob capability consumed by
// the durable cache manager. Providers are registered by name; the manager
// is agnostic to which backend serves it.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Record is a stored blob together with the time it was written. StoredAt is
// round-tripped through the backend so age-based cleanup survives restarts.
type Record struct {
	Value    []byte
	StoredAt time.Time
}

// BlobStore is an asynchronous key-value capability addressed by string
// keys. Absent keys are reported through the bool return of Get, not an
// error.
type BlobStore interface {
	// Available probes whether the backend can be reached in the current
	// environment.
	Available(ctx context.Context) bool

	// Put stores value under key, replacing any previous record.
	Put(ctx context.Context, key string, value []byte, storedAt time.Time) error

	// Get retrieves the record for key. Returns false when the key is absent.
	Get(ctx context.Context, key string) (Record, bool, error)

	// Keys lists all keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// Config holds the configuration needed to create a store instance.
type Config struct {
	// RedisAddress is the Redis/Valkey server address (e.g., "localhost:6379").
	RedisAddress string

	// RedisPassword is the password for the Redis/Valkey server.
	RedisPassword string

	// RedisDB is the Redis/Valkey database number.
	RedisDB int

	// Logger receives error reports from store operations.
	Logger zerolog.Logger
}

// Provider is a constructor function that creates a BlobStore from config.
type Provider func(cfg Config) (BlobStore, error)

var (
	mu        sync.RWMutex
	providers = make(map[string]Provider)
)

// Register registers a store provider under the given name.
// It panics if the name is already registered or the provider is nil.
func Register(name string, p Provider) {
	mu.Lock()
	defer mu.Unlock()

	if p == nil {
		panic("store: Register provider is nil")
	}
	if _, exists := providers[name]; exists {
		panic(fmt.Sprintf("store: provider %q already registered", name))
	}
	providers[name] = p
}

// New creates a BlobStore using the named provider and the given config.
func New(name string, cfg Config) (BlobStore, error) {
	mu.RLock()
	p, ok := providers[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("store: unknown provider %q (registered: %v)", name, RegisteredProviders())
	}
	return p(cfg)
}

// RegisteredProviders returns a sorted list of registered provider names.
func RegisteredProviders() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
