package auth

import (
	"context"
	"time"

	"coursehub/internal/cache"
)

const revokedTokenKeyPrefix = "denylist:token:"

// Denylist records revoked token ids in redis until the token would have
// expired anyway.
type Denylist struct {
	cache *cache.Client
}

// NewDenylist creates a denylist backed by c.
func NewDenylist(c *cache.Client) *Denylist {
	return &Denylist{cache: c}
}

// Revoke marks tokenID as revoked for ttl. A non-positive ttl is a no-op since
// the token is already expired. Write failures are returned.
func (d *Denylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if d == nil || tokenID == "" || ttl <= 0 {
		return nil
	}
	return d.cache.SetStrict(ctx, revokedTokenKeyPrefix+tokenID, []byte("1"), ttl)
}

// IsRevoked reports whether tokenID was revoked. Lookup failures read as not
// revoked.
func (d *Denylist) IsRevoked(ctx context.Context, tokenID string) bool {
	if d == nil || tokenID == "" {
		return false
	}
	data, _ := d.cache.Get(ctx, revokedTokenKeyPrefix+tokenID)
	return data != nil
}
