package domain

import "time"

// FraudDecision is the verdict of the anti-fraud service for a user.
type FraudDecision struct {
	OK         bool       `json:"ok"`
	CacheUntil *time.Time `json:"cache_until,omitempty"`
}

// CacheTTL returns how long the decision may be cached relative to now.
// Decisions without an expiry or with an expiry not in the future are not
// cacheable.
func (d FraudDecision) CacheTTL(now time.Time) (time.Duration, bool) {
	if d.CacheUntil == nil {
		return 0, false
	}
	ttl := d.CacheUntil.Sub(now)
	if ttl <= 0 {
		return 0, false
	}
	return ttl, true
}
