// Package models holds the domain records persisted by the durable cache
// manager.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CachedQuery is a persisted query result. ID is a deterministic digest of
// (query, fileID), so repeated identical queries collide to the same slot
// and re-caching overwrites in place. FileID is a soft reference: it is used
// for lookup only and never validated against the cached files.
type CachedQuery struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	Results   json.RawMessage `json:"results"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds at caching time
	FileID    string          `json:"fileId,omitempty"`
	Cached    bool            `json:"cached"`
}

// QueryID computes the deterministic slot ID for a (query, fileID) pair.
func QueryID(query, fileID string) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(fileID))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// CachedFile is persisted metadata for an uploaded file. Expiry is measured
// against UploadDate, not the time the record was stored.
type CachedFile struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Size       int64           `json:"size"`
	Type       string          `json:"type"`
	UploadDate int64           `json:"uploadDate"` // unix milliseconds
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	Thumbnail  string          `json:"thumbnail,omitempty"`
	Cached     bool            `json:"cached"`
}

// StorageStats summarizes the durable cache: total stored bytes re-measured
// from the backend, live entry counts per domain, and the last cleanup time.
type StorageStats struct {
	TotalSize   int64 `json:"totalSize"`
	QueryCount  int   `json:"queryCount"`
	FileCount   int   `json:"fileCount"`
	LastCleanup int64 `json:"lastCleanup"` // unix milliseconds, zero if never
}
