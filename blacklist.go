package auth

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultBlacklistCapacity bounds how many revoked tokens we hold at once.
const DefaultBlacklistCapacity = 100_000

// DefaultBlacklistSafetyMargin pads each entry's lifetime past the access
// token TTL so an entry always outlives the token it suppresses.
const DefaultBlacklistSafetyMargin = 5 * time.Minute

// Blacklist is a bounded, write-expiring set of revoked token strings. Entries
// live for the configured access token TTL plus a safety margin; once the
// token would fail its own expiry check the entry can be dropped without
// weakening anything.
//
// Beyond capacity the oldest writes are evicted first. Under extreme logout
// volume that slightly widens the replay window for near-expiry tokens, which
// we accept: those tokens are about to die on their own.
//
// The store is process local. A multi-process deployment gets per-node
// revocation only; a shared store can be swapped in behind RevocationStore.
type Blacklist struct {
	cache *expirable.LRU[string, struct{}]
}

var _ RevocationStore = (*Blacklist)(nil)

// NewBlacklist creates a revocation store sized for the given access token
// lifetime. Zero or negative capacity falls back to the default; the margin
// falls back likewise.
func NewBlacklist(accessTokenTTL, safetyMargin time.Duration, capacity int) *Blacklist {
	if capacity <= 0 {
		capacity = DefaultBlacklistCapacity
	}
	if safetyMargin <= 0 {
		safetyMargin = DefaultBlacklistSafetyMargin
	}

	return &Blacklist{
		cache: expirable.NewLRU[string, struct{}](capacity, nil, accessTokenTTL+safetyMargin),
	}
}

// Revoke records the token as invalid for the rest of its validity window.
// Revoking twice is harmless.
func (b *Blacklist) Revoke(token string) {
	if token == "" {
		return
	}
	b.cache.Add(token, struct{}{})
}

// IsRevoked reports whether the token has been revoked and not yet aged out.
func (b *Blacklist) IsRevoked(token string) bool {
	if token == "" {
		return false
	}
	return b.cache.Contains(token)
}

// Len returns the current number of revoked entries, for monitoring.
func (b *Blacklist) Len() int {
	return b.cache.Len()
}
