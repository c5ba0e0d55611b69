// Package pagecache provides a Redis-backed caching decorator for cursor
// page sources, with TTL entries and single-flight fetch de-duplication.
package pagecache

import (
	"encoding/json"
	"time"
)

// Entry is a cached page as stored in Redis.
type Entry struct {
	// Items is the JSON-encoded page payload.
	Items json.RawMessage `json:"items"`

	// NextCursor addresses the page after this one.
	NextCursor string `json:"next_cursor"`

	// HasMore indicates whether further items were available when the
	// page was cached.
	HasMore bool `json:"has_more"`

	// CachedAt is when the page was stored.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
