// Package manager implements the durable cache manager: it persists query
// results, file metadata, and user preferences through an external blob
// store, applies per-domain TTLs at read time, enforces a global size
// budget, and runs periodic cleanup.
//
// Storage failures are never propagated as panics. Boolean-returning writes
// report false; reads return a structured (value, ok, err) triple so callers
// can distinguish a plain miss from a failed read while the default
// fall-back-to-live-computation behavior stays the same.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/queryscope/cachekit/internal/apperrors"
	"github.com/queryscope/cachekit/internal/metrics"
	"github.com/queryscope/cachekit/internal/models"
	"github.com/queryscope/cachekit/internal/store"
)

// Storage domains. Every key is namespaced as {namespace}://{domain}/{id}.
const (
	domainQueries     = "queries"
	domainFiles       = "files"
	domainPreferences = "preferences"
	domainMeta        = "meta"
)

const (
	// queryTTL is the read-time expiry for cached query results.
	queryTTL = 7 * 24 * time.Hour

	// fileTTL is the read-time expiry for cached file metadata, measured
	// against the file's upload date rather than storage time.
	fileTTL = 30 * 24 * time.Hour

	// defaultMaxCacheSize is the global byte budget for the namespace.
	defaultMaxCacheSize = 50 << 20

	// sizeHeadroom is the fraction of the budget that size enforcement
	// shrinks to once the budget is exceeded.
	sizeHeadroom = 0.8

	// defaultCleanupInterval is how often the scheduled cleanup runs.
	defaultCleanupInterval = 6 * time.Hour

	preferencesKey = "user"
	lastCleanupKey = "last-cleanup"
)

type state int

const (
	stateUninitialized state = iota
	stateInitialized
	stateActive
)

// Reporter receives storage errors the manager swallows, so resilience does
// not cost observability. Wired to Sentry in the daemon.
type Reporter func(error)

// Manager is the durable cache manager. Construct with NewManager, then call
// Initialize before use; all operations degrade to no-ops/misses while the
// store capability is absent.
type Manager struct {
	store     store.BlobStore
	namespace string
	logger    zerolog.Logger
	report    Reporter

	maxCacheSize    int64
	cleanupInterval time.Duration
	evictionScope   []string

	now func() time.Time

	stateMu sync.Mutex
	state   state

	// cleanupMu serializes CleanupCache and size enforcement so concurrent
	// passes cannot double-evict or evict a just-reinserted entry.
	cleanupMu sync.Mutex

	done     chan struct{}
	stopOnce sync.Once
}

// Option customizes a Manager at construction.
type Option func(*Manager)

// WithLogger attaches a structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithReporter forwards swallowed storage errors to an external reporter.
func WithReporter(r Reporter) Option {
	return func(m *Manager) { m.report = r }
}

// WithMaxCacheSize overrides the default 50MB namespace budget.
func WithMaxCacheSize(size int64) Option {
	return func(m *Manager) {
		if size > 0 {
			m.maxCacheSize = size
		}
	}
}

// WithCleanupInterval overrides the default 6h scheduled cleanup interval.
func WithCleanupInterval(interval time.Duration) Option {
	return func(m *Manager) {
		if interval > 0 {
			m.cleanupInterval = interval
		}
	}
}

// WithEvictionScope names the domains subject to size-budget eviction.
// The default scope is queries only: file metadata and preferences are
// deliberately exempt, and widening the scope is an explicit policy choice.
func WithEvictionScope(domains ...string) Option {
	return func(m *Manager) {
		if len(domains) > 0 {
			m.evictionScope = domains
		}
	}
}

// NewManager creates a Manager over the given blob store and namespace.
func NewManager(st store.BlobStore, namespace string, opts ...Option) *Manager {
	m := &Manager{
		store:           st,
		namespace:       namespace,
		logger:          zerolog.Nop(),
		maxCacheSize:    defaultMaxCacheSize,
		cleanupInterval: defaultCleanupInterval,
		evictionScope:   []string{domainQueries},
		now:             time.Now,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize probes the durable store capability. It returns false, without
// raising, when the store is absent or unreachable; every subsequent
// operation then no-ops. Safe to call more than once.
func (m *Manager) Initialize(ctx context.Context) bool {
	if m.store == nil || !m.store.Available(ctx) {
		m.logger.Warn().Str("namespace", m.namespace).Msg("Durable store capability absent, cache disabled")
		return false
	}

	m.stateMu.Lock()
	if m.state == stateUninitialized {
		m.state = stateInitialized
	}
	m.stateMu.Unlock()

	m.logger.Info().Str("namespace", m.namespace).Msg("Durable cache initialized")
	return true
}

// StartScheduledCleanup launches the periodic cleanup loop. It reports false
// when the manager was never initialized. The loop stops when ctx is
// canceled or Close is called.
func (m *Manager) StartScheduledCleanup(ctx context.Context) bool {
	m.stateMu.Lock()
	if m.state == stateUninitialized {
		m.stateMu.Unlock()
		return false
	}
	if m.state == stateActive {
		m.stateMu.Unlock()
		return true
	}
	m.state = stateActive
	m.stateMu.Unlock()

	go m.cleanupLoop(ctx)
	return true
}

// Close stops the scheduled cleanup loop. It does not close the underlying
// store, whose lifecycle belongs to the caller.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

// CacheQuery persists a query result under the deterministic digest of
// (query, fileID). Re-caching the same pair overwrites the same slot.
// Returns false on any storage failure.
func (m *Manager) CacheQuery(ctx context.Context, query string, results json.RawMessage, fileID string) bool {
	if !m.ready("CacheQuery") {
		return false
	}

	now := m.now()
	entry := models.CachedQuery{
		ID:        models.QueryID(query, fileID),
		Query:     query,
		Results:   results,
		Timestamp: now.UnixMilli(),
		FileID:    fileID,
		Cached:    true,
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		m.fail("cache_query", fmt.Errorf("marshal cached query: %w", err))
		return false
	}
	if err := m.store.Put(ctx, m.key(domainQueries, entry.ID), payload, now); err != nil {
		m.fail("cache_query", err)
		return false
	}
	m.ok("cache_query")
	return true
}

// GetCachedQuery looks up the cached result for (query, fileID). A record
// older than seven days is a miss; the record itself is left in place for
// cleanup to remove. The error return distinguishes a failed read from a
// plain miss and is nil in both miss cases.
func (m *Manager) GetCachedQuery(ctx context.Context, query, fileID string) (models.CachedQuery, bool, error) {
	var zero models.CachedQuery
	if !m.ready("GetCachedQuery") {
		return zero, false, apperrors.NewNotInitializedError("GetCachedQuery")
	}

	rec, found, err := m.store.Get(ctx, m.key(domainQueries, models.QueryID(query, fileID)))
	if err != nil {
		m.fail("get_query", err)
		return zero, false, err
	}
	if !found {
		return zero, false, nil
	}

	var entry models.CachedQuery
	if err := json.Unmarshal(rec.Value, &entry); err != nil {
		m.fail("get_query", fmt.Errorf("unmarshal cached query: %w", err))
		return zero, false, err
	}
	if m.now().UnixMilli()-entry.Timestamp >= queryTTL.Milliseconds() {
		return zero, false, nil
	}
	m.ok("get_query")
	return entry, true, nil
}

// CacheFile persists file metadata under its ID. Returns false on any
// storage failure or when the file has no ID.
func (m *Manager) CacheFile(ctx context.Context, file models.CachedFile) bool {
	if !m.ready("CacheFile") {
		return false
	}
	if file.ID == "" {
		m.fail("cache_file", fmt.Errorf("cached file has empty ID"))
		return false
	}

	file.Cached = true
	payload, err := json.Marshal(file)
	if err != nil {
		m.fail("cache_file", fmt.Errorf("marshal cached file: %w", err))
		return false
	}
	if err := m.store.Put(ctx, m.key(domainFiles, file.ID), payload, m.now()); err != nil {
		m.fail("cache_file", err)
		return false
	}
	m.ok("cache_file")
	return true
}

// GetCachedFile looks up file metadata by ID. A file whose upload date is
// more than thirty days old is a miss regardless of when it was stored.
func (m *Manager) GetCachedFile(ctx context.Context, id string) (models.CachedFile, bool, error) {
	var zero models.CachedFile
	if !m.ready("GetCachedFile") {
		return zero, false, apperrors.NewNotInitializedError("GetCachedFile")
	}

	rec, found, err := m.store.Get(ctx, m.key(domainFiles, id))
	if err != nil {
		m.fail("get_file", err)
		return zero, false, err
	}
	if !found {
		return zero, false, nil
	}

	var file models.CachedFile
	if err := json.Unmarshal(rec.Value, &file); err != nil {
		m.fail("get_file", fmt.Errorf("unmarshal cached file: %w", err))
		return zero, false, err
	}
	if m.now().UnixMilli()-file.UploadDate >= fileTTL.Milliseconds() {
		return zero, false, nil
	}
	m.ok("get_file")
	return file, true, nil
}

// AllQueries lists every live cached query, filtering out expired records at
// read time without deleting them.
func (m *Manager) AllQueries(ctx context.Context) ([]models.CachedQuery, error) {
	if !m.ready("AllQueries") {
		return nil, nil
	}

	keys, err := m.store.Keys(ctx, m.prefix(domainQueries))
	if err != nil {
		m.fail("all_queries", err)
		return nil, err
	}

	nowMs := m.now().UnixMilli()
	out := make([]models.CachedQuery, 0, len(keys))
	for _, key := range keys {
		rec, found, err := m.store.Get(ctx, key)
		if err != nil {
			m.fail("all_queries", err)
			continue
		}
		if !found {
			continue
		}
		var entry models.CachedQuery
		if err := json.Unmarshal(rec.Value, &entry); err != nil {
			m.fail("all_queries", fmt.Errorf("unmarshal cached query %q: %w", key, err))
			continue
		}
		if nowMs-entry.Timestamp >= queryTTL.Milliseconds() {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// AllFiles lists every live cached file, filtering by the thirty-day upload
// age without deleting expired records.
func (m *Manager) AllFiles(ctx context.Context) ([]models.CachedFile, error) {
	if !m.ready("AllFiles") {
		return nil, nil
	}

	keys, err := m.store.Keys(ctx, m.prefix(domainFiles))
	if err != nil {
		m.fail("all_files", err)
		return nil, err
	}

	nowMs := m.now().UnixMilli()
	out := make([]models.CachedFile, 0, len(keys))
	for _, key := range keys {
		rec, found, err := m.store.Get(ctx, key)
		if err != nil {
			m.fail("all_files", err)
			continue
		}
		if !found {
			continue
		}
		var file models.CachedFile
		if err := json.Unmarshal(rec.Value, &file); err != nil {
			m.fail("all_files", fmt.Errorf("unmarshal cached file %q: %w", key, err))
			continue
		}
		if nowMs-file.UploadDate >= fileTTL.Milliseconds() {
			continue
		}
		out = append(out, file)
	}
	return out, nil
}

// StoreUserPreferences persists the single preferences slot. Preferences
// have no TTL and are exempt from size-budget eviction.
func (m *Manager) StoreUserPreferences(ctx context.Context, prefs json.RawMessage) bool {
	if !m.ready("StoreUserPreferences") {
		return false
	}
	if err := m.store.Put(ctx, m.key(domainPreferences, preferencesKey), prefs, m.now()); err != nil {
		m.fail("store_preferences", err)
		return false
	}
	m.ok("store_preferences")
	return true
}

// UserPreferences reads the single preferences slot.
func (m *Manager) UserPreferences(ctx context.Context) (json.RawMessage, bool, error) {
	if !m.ready("UserPreferences") {
		return nil, false, apperrors.NewNotInitializedError("UserPreferences")
	}

	rec, found, err := m.store.Get(ctx, m.key(domainPreferences, preferencesKey))
	if err != nil {
		m.fail("get_preferences", err)
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return rec.Value, true, nil
}

// Stats re-measures the namespace: it reads back every stored value and
// sums its byte size, counts queries and files, and reports the last
// recorded cleanup time.
func (m *Manager) Stats(ctx context.Context) (models.StorageStats, error) {
	var stats models.StorageStats
	if !m.ready("Stats") {
		return stats, apperrors.NewNotInitializedError("Stats")
	}

	keys, err := m.store.Keys(ctx, m.namespace+"://")
	if err != nil {
		m.fail("stats", err)
		return stats, err
	}

	queryPrefix := m.prefix(domainQueries)
	filePrefix := m.prefix(domainFiles)
	for _, key := range keys {
		rec, found, err := m.store.Get(ctx, key)
		if err != nil {
			m.fail("stats", err)
			continue
		}
		if !found {
			continue
		}
		stats.TotalSize += int64(len(rec.Value))
		switch {
		case strings.HasPrefix(key, queryPrefix):
			stats.QueryCount++
		case strings.HasPrefix(key, filePrefix):
			stats.FileCount++
		}
	}

	if rec, found, err := m.store.Get(ctx, m.key(domainMeta, lastCleanupKey)); err == nil && found {
		var ts int64
		if json.Unmarshal(rec.Value, &ts) == nil {
			stats.LastCleanup = ts
		}
	}
	return stats, nil
}

// ClearAll wipes every key under the namespace. Returns false if listing or
// any deletion fails.
func (m *Manager) ClearAll(ctx context.Context) bool {
	if !m.ready("ClearAll") {
		return false
	}

	keys, err := m.store.Keys(ctx, m.namespace+"://")
	if err != nil {
		m.fail("clear_all", err)
		return false
	}
	ok := true
	for _, key := range keys {
		if err := m.store.Delete(ctx, key); err != nil {
			m.fail("clear_all", err)
			ok = false
		}
	}
	if ok {
		m.ok("clear_all")
	}
	return ok
}

func (m *Manager) key(domain, id string) string {
	return fmt.Sprintf("%s://%s/%s", m.namespace, domain, id)
}

func (m *Manager) prefix(domain string) string {
	return fmt.Sprintf("%s://%s/", m.namespace, domain)
}

// ready reports whether the manager has been initialized, logging the
// skipped operation when it has not.
func (m *Manager) ready(operation string) bool {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.state == stateUninitialized {
		m.logger.Debug().Str("operation", operation).Msg("Durable cache not initialized, skipping")
		return false
	}
	return true
}

func (m *Manager) fail(operation string, err error) {
	m.logger.Warn().Err(err).Str("operation", operation).Msg("Durable cache operation failed")
	metrics.DurableOperationsTotal.WithLabelValues(operation, "error").Inc()
	if m.report != nil {
		m.report(err)
	}
}

func (m *Manager) ok(operation string) {
	metrics.DurableOperationsTotal.WithLabelValues(operation, "ok").Inc()
}
