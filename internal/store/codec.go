package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Records are stored as a zstd-compressed JSON envelope so large query
// results and thumbnails stay cheap in the backend. EncodeAll/DecodeAll on
// shared coders are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
}

type recordEnvelope struct {
	StoredAt int64  `json:"stored_at"` // unix milliseconds
	Value    []byte `json:"value"`
}

func encodeRecord(rec Record) ([]byte, error) {
	raw, err := json.Marshal(recordEnvelope{
		StoredAt: rec.StoredAt.UnixMilli(),
		Value:    rec.Value,
	})
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

func decodeRecord(data []byte) (Record, error) {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return Record{}, fmt.Errorf("decompress record: %w", err)
	}
	var env recordEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return Record{
		Value:    env.Value,
		StoredAt: time.UnixMilli(env.StoredAt),
	}, nil
}
