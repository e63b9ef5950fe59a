package cache

import (
	"encoding/json"
	"testing"
)

func TestApproximateSize(t *testing.T) {
	if got := approximateSize("hello"); got != 5 {
		t.Fatalf("Expected string size 5, got %d", got)
	}
	if got := approximateSize([]byte("abc")); got != 3 {
		t.Fatalf("Expected byte slice size 3, got %d", got)
	}
	if got := approximateSize(42); got != 8 {
		t.Fatalf("Expected int size 8, got %d", got)
	}
	if got := approximateSize(true); got != 1 {
		t.Fatalf("Expected bool size 1, got %d", got)
	}
	if got := approximateSize(json.RawMessage(`{"a":1}`)); got != 7 {
		t.Fatalf("Expected raw message size 7, got %d", got)
	}
}

func TestApproximateSize_StructBySerialization(t *testing.T) {
	type row struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	v := row{Name: "x", Count: 1}
	want := int64(len(`{"name":"x","count":1}`))
	if got := approximateSize(v); got != want {
		t.Fatalf("Expected serialized length %d, got %d", want, got)
	}
}

func TestApproximateSize_UnserializableFallback(t *testing.T) {
	// Channels cannot be JSON-serialized; the fixed fallback is charged
	// instead of failing the measurement.
	if got := approximateSize(make(chan int)); got != fallbackValueSize {
		t.Fatalf("Expected fallback size %d, got %d", fallbackValueSize, got)
	}
}
