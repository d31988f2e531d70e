// Package cache is a read-through redis cache for the active-provider listing,
// the hottest read in the admin assignment UI. Entries are short-lived and
// invalidated on any directory mutation, so stale reads are bounded.
package cache

import (
	"context"
	"encoding/json"
	"time"

	platformredis "habita/internal/platform/redis"
	"habita/internal/provider/models"
)

const activeKey = "habita:providers:active"

// Cache stores serialized provider listings in redis.
type Cache struct {
	client *platformredis.Client
	ttl    time.Duration
}

func New(client *platformredis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetActive returns the cached active listing, (nil, false) on miss. Redis
// errors are treated as misses; a cache failure never fails a read, the
// caller falls through to the store.
func (c *Cache) GetActive(ctx context.Context) ([]*models.Provider, bool) {
	raw, err := c.client.Get(ctx, activeKey).Bytes()
	if err != nil {
		return nil, false
	}
	var providers []*models.Provider
	if err := json.Unmarshal(raw, &providers); err != nil {
		return nil, false
	}
	return providers, true
}

// SetActive caches the active listing. Best-effort.
func (c *Cache) SetActive(ctx context.Context, providers []*models.Provider) {
	raw, err := json.Marshal(providers)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, activeKey, raw, c.ttl).Err()
}

// Invalidate drops the cached listing after a directory mutation.
func (c *Cache) Invalidate(ctx context.Context) {
	_ = c.client.Del(ctx, activeKey).Err()
}
