package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrStoreUnavailable(t *testing.T) {
	err := NewStoreUnavailableError("redis")
	if err.Error() != `durable store "redis" is unavailable` {
		t.Fatalf("Unexpected message: %s", err.Error())
	}
	if !errors.Is(err, &ErrStoreUnavailable{}) {
		t.Fatal("Expected errors.Is to match ErrStoreUnavailable")
	}

	wrapped := fmt.Errorf("initialize: %w", err)
	if !errors.Is(wrapped, &ErrStoreUnavailable{}) {
		t.Fatal("Expected errors.Is to match through wrapping")
	}
}

func TestErrStoreUnavailable_NoProvider(t *testing.T) {
	err := &ErrStoreUnavailable{}
	if err.Error() != "durable store is unavailable" {
		t.Fatalf("Unexpected message: %s", err.Error())
	}
}

func TestErrNotInitialized(t *testing.T) {
	err := NewNotInitializedError("CacheQuery")
	if err.Error() != `durable cache manager not initialized (operation "CacheQuery")` {
		t.Fatalf("Unexpected message: %s", err.Error())
	}
	if !errors.Is(err, &ErrNotInitialized{}) {
		t.Fatal("Expected errors.Is to match ErrNotInitialized")
	}
	if errors.Is(err, &ErrStoreUnavailable{}) {
		t.Fatal("Expected distinct error types not to match")
	}
}
