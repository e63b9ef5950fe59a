package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/queryscope/cachekit/internal/metrics"
	"github.com/queryscope/cachekit/internal/models"
)

// CleanupCache runs one full reclamation pass: expired queries, expired
// files, size-budget enforcement, then the last-cleanup marker. The pass is
// serialized against concurrent cleanups and size enforcement. Returns false
// if any step failed; later steps still run.
func (m *Manager) CleanupCache(ctx context.Context) bool {
	if !m.ready("CleanupCache") {
		return false
	}

	m.cleanupMu.Lock()
	defer m.cleanupMu.Unlock()

	ok := true
	if err := m.sweepExpiredQueries(ctx); err != nil {
		m.fail("cleanup", err)
		ok = false
	}
	if err := m.sweepExpiredFiles(ctx); err != nil {
		m.fail("cleanup", err)
		ok = false
	}
	if err := m.enforceSizeLimit(ctx); err != nil {
		m.fail("cleanup", err)
		ok = false
	}
	if err := m.recordCleanupTime(ctx); err != nil {
		m.fail("cleanup", err)
		ok = false
	}

	metrics.DurableCleanupsTotal.Inc()
	if ok {
		m.ok("cleanup")
	}
	return ok
}

// EnforceSizeLimit runs size-budget enforcement on its own, outside a full
// cleanup pass, under the same single-writer guard.
func (m *Manager) EnforceSizeLimit(ctx context.Context) error {
	if !m.ready("EnforceSizeLimit") {
		return nil
	}
	m.cleanupMu.Lock()
	defer m.cleanupMu.Unlock()
	return m.enforceSizeLimit(ctx)
}

func (m *Manager) sweepExpiredQueries(ctx context.Context) error {
	keys, err := m.store.Keys(ctx, m.prefix(domainQueries))
	if err != nil {
		return fmt.Errorf("sweep queries: %w", err)
	}

	nowMs := m.now().UnixMilli()
	removed := 0
	for _, key := range keys {
		rec, found, err := m.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("sweep queries: %w", err)
		}
		if !found {
			continue
		}
		var entry models.CachedQuery
		if err := json.Unmarshal(rec.Value, &entry); err != nil {
			// A record we cannot decode will never be readable; drop it.
			m.logger.Warn().Err(err).Str("key", key).Msg("Dropping undecodable cached query")
		} else if nowMs-entry.Timestamp < queryTTL.Milliseconds() {
			continue
		}
		if err := m.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("sweep queries: %w", err)
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info().Int("removed", removed).Msg("Swept expired cached queries")
	}
	return nil
}

func (m *Manager) sweepExpiredFiles(ctx context.Context) error {
	keys, err := m.store.Keys(ctx, m.prefix(domainFiles))
	if err != nil {
		return fmt.Errorf("sweep files: %w", err)
	}

	nowMs := m.now().UnixMilli()
	removed := 0
	for _, key := range keys {
		rec, found, err := m.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("sweep files: %w", err)
		}
		if !found {
			continue
		}
		var file models.CachedFile
		if err := json.Unmarshal(rec.Value, &file); err != nil {
			m.logger.Warn().Err(err).Str("key", key).Msg("Dropping undecodable cached file")
		} else if nowMs-file.UploadDate < fileTTL.Milliseconds() {
			continue
		}
		if err := m.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("sweep files: %w", err)
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info().Int("removed", removed).Msg("Swept expired cached files")
	}
	return nil
}

// enforceSizeLimit deletes the oldest stored entry within the eviction
// scope, one at a time with the total re-measured after each deletion, until
// aggregate size falls to the headroom target. Callers must hold cleanupMu.
func (m *Manager) enforceSizeLimit(ctx context.Context) error {
	total, err := m.measureSize(ctx)
	if err != nil {
		return fmt.Errorf("enforce size limit: %w", err)
	}
	if total <= m.maxCacheSize {
		return nil
	}

	target := int64(float64(m.maxCacheSize) * sizeHeadroom)
	m.logger.Info().
		Int64("total", total).
		Int64("budget", m.maxCacheSize).
		Int64("target", target).
		Msg("Durable cache over budget, evicting oldest entries")

	for total > target {
		key, found, err := m.oldestInScope(ctx)
		if err != nil {
			return fmt.Errorf("enforce size limit: %w", err)
		}
		if !found {
			// Scope exhausted; entries outside it keep the overrun.
			m.logger.Warn().Int64("total", total).Msg("Eviction scope exhausted with cache still over target")
			break
		}
		if err := m.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("enforce size limit: %w", err)
		}
		metrics.DurableSizeEvictionsTotal.Inc()

		total, err = m.measureSize(ctx)
		if err != nil {
			return fmt.Errorf("enforce size limit: %w", err)
		}
	}
	return nil
}

// measureSize sums the byte size of every stored value in the namespace,
// read back from the store.
func (m *Manager) measureSize(ctx context.Context) (int64, error) {
	keys, err := m.store.Keys(ctx, m.namespace+"://")
	if err != nil {
		return 0, err
	}

	var total int64
	for _, key := range keys {
		rec, found, err := m.store.Get(ctx, key)
		if err != nil {
			return 0, err
		}
		if found {
			total += int64(len(rec.Value))
		}
	}
	return total, nil
}

// oldestInScope finds the evictable key with the earliest storage time
// across the configured eviction domains.
func (m *Manager) oldestInScope(ctx context.Context) (string, bool, error) {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for _, domain := range m.evictionScope {
		keys, err := m.store.Keys(ctx, m.prefix(domain))
		if err != nil {
			return "", false, err
		}
		for _, key := range keys {
			rec, ok, err := m.store.Get(ctx, key)
			if err != nil {
				return "", false, err
			}
			if !ok {
				continue
			}
			if !found || rec.StoredAt.Before(oldestAt) {
				oldestKey, oldestAt, found = key, rec.StoredAt, true
			}
		}
	}
	return oldestKey, found, nil
}

func (m *Manager) recordCleanupTime(ctx context.Context) error {
	now := m.now()
	payload, err := json.Marshal(now.UnixMilli())
	if err != nil {
		return fmt.Errorf("record cleanup time: %w", err)
	}
	if err := m.store.Put(ctx, m.key(domainMeta, lastCleanupKey), payload, now); err != nil {
		return fmt.Errorf("record cleanup time: %w", err)
	}
	return nil
}

// cleanupLoop drives the scheduled reclamation until the context is
// canceled or the manager is closed.
func (m *Manager) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.cleanupInterval).Msg("Scheduled cache cleanup started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.CleanupCache(ctx)
		}
	}
}
