package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/queryscope/cachekit/internal/apperrors"
)

func init() {
	Register("redis", newRedisStore)
}

// redisStore implements BlobStore over Redis/Valkey. Each record is a single
// Redis string key holding a compressed envelope; listing uses SCAN with a
// prefix match. Transient failures are retried with a short backoff before
// being reported.
type redisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

const (
	redisOpTimeout = 2 * time.Second
	retryAttempts  = 2
	retryDelay     = 50 * time.Millisecond
)

// newRetryPolicy builds the store-wide retry policy. redis.Nil is a normal
// absent-key result and must not be retried.
func newRetryPolicy[R any]() retrypolicy.RetryPolicy[R] {
	return retrypolicy.NewBuilder[R]().
		HandleIf(func(_ R, err error) bool {
			return err != nil && !errors.Is(err, redis.Nil)
		}).
		WithDelay(retryDelay).
		WithMaxRetries(retryAttempts).
		Build()
}

func newRedisStore(cfg Config) (BlobStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Verify connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping failed: %s", apperrors.NewStoreUnavailableError("redis"), err)
	}

	return &redisStore{client: client, logger: cfg.Logger}, nil
}

func (s *redisStore) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("Durable store unavailable")
		return false
	}
	return true
}

func (s *redisStore) Put(ctx context.Context, key string, value []byte, storedAt time.Time) error {
	raw, err := encodeRecord(Record{Value: value, StoredAt: storedAt})
	if err != nil {
		return err
	}

	err = failsafe.With[any](newRetryPolicy[any]()).WithContext(ctx).Run(func() error {
		opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
		defer cancel()
		return s.client.Set(opCtx, key, raw, 0).Err()
	})
	if err != nil {
		return fmt.Errorf("redis put %q: %w", key, err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, key string) (Record, bool, error) {
	raw, err := failsafe.With[[]byte](newRetryPolicy[[]byte]()).WithContext(ctx).Get(func() ([]byte, error) {
		opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
		defer cancel()
		return s.client.Get(opCtx, key).Bytes()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		return Record{}, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return rec, true, nil
}

func (s *redisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := failsafe.With[[]string](newRetryPolicy[[]string]()).WithContext(ctx).Get(func() ([]string, error) {
		opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
		defer cancel()

		var out []string
		iter := s.client.Scan(opCtx, 0, prefix+"*", 0).Iterator()
		for iter.Next(opCtx) {
			out = append(out, iter.Val())
		}
		return out, iter.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("redis keys %q: %w", prefix, err)
	}
	return keys, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	err := failsafe.With[any](newRetryPolicy[any]()).WithContext(ctx).Run(func() error {
		opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
		defer cancel()
		return s.client.Del(opCtx, key).Err()
	})
	if err != nil {
		return fmt.Errorf("redis delete %q: %w", key, err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
