package cache

import (
	"encoding/json"
	"time"
)

// SizeFunc reports the approximate in-memory size of a value in bytes.
// Stored types with a cheap exact answer should supply their own via
// WithSizeFunc; the default falls back to serialized length.
type SizeFunc[V any] func(V) int64

// fallbackValueSize is charged when a value cannot be serialized for
// measurement (cycles, channels, functions). The set still succeeds.
const fallbackValueSize = 512

// approximateSize measures primitives by fixed width, strings and byte
// slices by length, and everything else by JSON-encoded length. The result
// is an approximation: values with shared substructure are overcounted.
func approximateSize[V any](v V) int64 {
	switch x := any(v).(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return 8
	case string:
		return int64(len(x))
	case []byte:
		return int64(len(x))
	case json.RawMessage:
		return int64(len(x))
	case time.Time:
		return 24
	case error:
		return int64(len(x.Error()))
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fallbackValueSize
		}
		return int64(len(b))
	}
}
