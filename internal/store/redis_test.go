package store

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// TestRedisStore requires a running Redis/Valkey server.
// Set REDIS_ADDRESS (e.g., "localhost:6379") to enable these tests.
// They are skipped by default.

func skipIfNoRedis(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("Skipping Redis tests: set REDIS_ADDRESS to enable")
	}
	return addr
}

// flushTestRedisDB clears all data in DB 15 so tests start with a clean slate.
func flushTestRedisDB(t *testing.T, addr string) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush Redis test DB: %v", err)
	}
}

func newTestRedisStore(t *testing.T) BlobStore {
	t.Helper()
	addr := skipIfNoRedis(t)
	flushTestRedisDB(t, addr)
	s, err := New("redis", Config{
		RedisAddress: addr,
		RedisDB:      15, // use a high DB number for tests
		Logger:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New redis store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStore_RoundTrip(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	storedAt := time.Now().Truncate(time.Millisecond)

	if _, found, err := s.Get(ctx, "absent"); err != nil || found {
		t.Fatalf("Expected clean miss, got found=%v err=%v", found, err)
	}

	if err := s.Put(ctx, "ns://queries/q1", []byte(`{"rows":[1,2,3]}`), storedAt); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rec, found, err := s.Get(ctx, "ns://queries/q1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("Expected hit")
	}
	if !bytes.Equal(rec.Value, []byte(`{"rows":[1,2,3]}`)) {
		t.Fatalf("Expected value round-trip, got %s", rec.Value)
	}
	if !rec.StoredAt.Equal(storedAt) {
		t.Fatalf("Expected StoredAt %v, got %v", storedAt, rec.StoredAt)
	}
}

func TestRedisStore_KeysAndDelete(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	_ = s.Put(ctx, "ns://queries/a", []byte("1"), now)
	_ = s.Put(ctx, "ns://queries/b", []byte("2"), now)
	_ = s.Put(ctx, "ns://files/c", []byte("3"), now)

	keys, err := s.Keys(ctx, "ns://queries/")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Expected 2 query keys, got %v", keys)
	}

	if err := s.Delete(ctx, "ns://queries/a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := s.Get(ctx, "ns://queries/a"); found {
		t.Fatal("Expected deleted key to be absent")
	}
}

func TestRedisStore_Available(t *testing.T) {
	s := newTestRedisStore(t)
	if !s.Available(context.Background()) {
		t.Fatal("Expected reachable store to report available")
	}
}
