package cache

import (
	"encoding/json"
	"time"
)

// Entry represents one cached upstream response.
type Entry struct {
	// Payload is the upstream JSON body, stored verbatim.
	Payload json.RawMessage `json:"payload"`

	// ExpiresAt is when the entry becomes logically absent. The row may
	// physically outlive this moment; readers must check it.
	ExpiresAt time.Time `json:"expires_at"`

	// HitCount is an advisory counter of cache hits. It is incremented
	// best-effort and may undercount under concurrent access.
	HitCount int64 `json:"hit_count"`

	// StoredAt is when the entry was written.
	StoredAt time.Time `json:"stored_at"`
}

// IsExpired returns true if the entry has passed its expiry time.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.ExpiresAt)
}

// TTL returns the remaining time until expiry, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
