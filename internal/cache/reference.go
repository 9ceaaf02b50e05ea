package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "walletcore:webhook:"

// ReferenceCache remembers webhook references that already reached a
// terminal status, so replayed deliveries are acked without a database
// round trip. Entries are written only after the ledger transaction has
// committed; the database unique constraint remains the authority, so a
// cache miss or Redis outage is always safe.
type ReferenceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReferenceCache(client *redis.Client, ttl time.Duration) *ReferenceCache {
	return &ReferenceCache{client: client, ttl: ttl}
}

// Seen reports whether reference was finalized before. Fails open.
func (c *ReferenceCache) Seen(ctx context.Context, reference string) bool {
	n, err := c.client.Exists(ctx, keyPrefix+reference).Result()
	return err == nil && n > 0
}

// Mark records a finalized reference.
func (c *ReferenceCache) Mark(ctx context.Context, reference string) error {
	return c.client.Set(ctx, keyPrefix+reference, "1", c.ttl).Err()
}
