package wallet

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "wallet:balance:"

// Cache keeps balance snapshots in Redis for the read path. It is strictly
// best-effort: misses and Redis outages fall through to the store, and every
// committed mutation invalidates the owner's key.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache wraps a Redis client. A zero ttl defaults to one minute.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// GetSnapshot returns the cached snapshot for an owner, if present.
func (c *Cache) GetSnapshot(ctx context.Context, ownerID string) (*BalanceSnapshot, bool) {
	payload, err := c.client.Get(ctx, snapshotKeyPrefix+ownerID).Bytes()
	if err != nil {
		return nil, false
	}
	var snap BalanceSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, false
	}
	return &snap, true
}

// SetSnapshot stores a snapshot. Failures are dropped; the store remains the
// source of truth.
func (c *Cache) SetSnapshot(ctx context.Context, ownerID string, snap *BalanceSnapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, snapshotKeyPrefix+ownerID, payload, c.ttl).Err()
}

// Invalidate drops the owner's snapshot after a committed mutation.
func (c *Cache) Invalidate(ctx context.Context, ownerID string) {
	_ = c.client.Del(ctx, snapshotKeyPrefix+ownerID).Err()
}
