package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultKey derives a cache key from an argument by structural JSON
// serialization, falling back to fmt formatting for unserializable values.
func DefaultKey[A any](arg A) string {
	b, err := json.Marshal(arg)
	if err != nil {
		return fmt.Sprintf("%v", arg)
	}
	return string(b)
}

// Memoize wraps fn so results are served from c. On a miss fn is invoked and
// its result stored; on a hit fn is not called. Panics from fn propagate and
// nothing is cached for that call. keyFn may be nil to use DefaultKey.
func Memoize[A, R any](fn func(A) R, c *Cache[R], keyFn func(A) string) func(A) R {
	if keyFn == nil {
		keyFn = DefaultKey[A]
	}
	return func(arg A) R {
		key := keyFn(arg)
		if v, ok := c.Get(key); ok {
			return v
		}
		v := fn(arg)
		c.Set(key, v)
		return v
	}
}

// defaultErrorTTL bounds how long a cached failure short-circuits retries
// when CtxOptions.ErrorTTL is left zero.
const defaultErrorTTL = 30 * time.Second

// CtxOptions configures MemoizeCtx.
type CtxOptions[A any] struct {
	// KeyFn derives the cache key from the argument. Nil means DefaultKey.
	KeyFn func(A) string

	// CacheErrors enables caching failures in a separate engine with a
	// shorter TTL. Calls inside that window re-see the cached error without
	// invoking fn; once it lapses, the call is retried. A short-circuit
	// backoff expressed as caching.
	CacheErrors bool

	// ErrorTTL is the failure-cache TTL. Zero means defaultErrorTTL.
	ErrorTTL time.Duration
}

// MemoizeCtx wraps a context-aware fallible function with caching through c.
// Successful results are stored under the derived key. Concurrent misses for
// the same key are collapsed into a single in-flight call.
func MemoizeCtx[A, R any](fn func(context.Context, A) (R, error), c *Cache[R], opts CtxOptions[A]) func(context.Context, A) (R, error) {
	keyFn := opts.KeyFn
	if keyFn == nil {
		keyFn = DefaultKey[A]
	}

	var errCache *Cache[error]
	if opts.CacheErrors {
		ttl := opts.ErrorTTL
		if ttl <= 0 {
			ttl = defaultErrorTTL
		}
		// Config is statically valid, so the error is impossible here.
		errCache, _ = New[error](Config{TTL: ttl, MaxSize: 1 << 20, Strategy: LRU})
	}

	var flight singleflight.Group
	return func(ctx context.Context, arg A) (R, error) {
		var zero R
		key := keyFn(arg)

		if v, ok := c.Get(key); ok {
			return v, nil
		}
		if errCache != nil {
			if cachedErr, ok := errCache.Get(key); ok {
				return zero, cachedErr
			}
		}

		v, err, _ := flight.Do(key, func() (any, error) {
			// A waiter may arrive after the leader stored the result.
			if v, ok := c.Get(key); ok {
				return v, nil
			}
			res, err := fn(ctx, arg)
			if err != nil {
				if errCache != nil {
					errCache.Set(key, err)
				}
				return nil, err
			}
			c.Set(key, res)
			return res, nil
		})
		if err != nil {
			return zero, err
		}
		return v.(R), nil
	}
}
