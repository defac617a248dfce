package prefs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type backend interface {
	LoadViewPreference(ctx context.Context, viewKey string) ([]byte, error)
	SaveViewPreference(ctx context.Context, viewKey string, blob []byte) error
}

// Cache wraps a preference store with a Redis read cache. Redis failures never fail
// a call; they fall through to the backing store.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("prefs.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) LoadViewPreference(ctx context.Context, viewKey string) ([]byte, error) {
	if blob, ok := c.load(ctx, viewKey); ok {
		return blob, nil
	}
	blob, err := c.base.LoadViewPreference(ctx, viewKey)
	if err != nil {
		return nil, err
	}
	c.store(ctx, viewKey, blob)
	return blob, nil
}

func (c *Cache) SaveViewPreference(ctx context.Context, viewKey string, blob []byte) error {
	if err := c.base.SaveViewPreference(ctx, viewKey, blob); err != nil {
		c.evict(ctx, viewKey)
		return err
	}
	c.store(ctx, viewKey, blob)
	return nil
}

func (c *Cache) load(ctx context.Context, viewKey string) ([]byte, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, cacheKey(viewKey)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, cacheKey(viewKey)).Err()
		}
		return nil, false
	}
	return data, true
}

func (c *Cache) store(ctx context.Context, viewKey string, blob []byte) {
	if c.redis == nil || c.ttl == 0 || len(blob) == 0 {
		return
	}
	_ = c.redis.Set(ctx, cacheKey(viewKey), blob, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, viewKey string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, cacheKey(viewKey)).Err()
}

func cacheKey(viewKey string) string {
	return "view_prefs:" + viewKey
}
