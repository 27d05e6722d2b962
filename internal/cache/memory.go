package cache

import (
	"context"
	"time"

	platformcache "github.com/rentzentro/platform/pkg/cache"
)

// MemoryCache serves the ListingCache contract from process memory.
// Used when no Redis address is configured; entries are per-instance.
type MemoryCache struct {
	cache *platformcache.Cache
}

// NewMemoryCache builds an in-process cache. ttl <= 0 uses DefaultTTL.
// Stale entries are revalidated in the background for one extra TTL
// window so a slow database read does not stall the public page.
func NewMemoryCache(ttl time.Duration, hooks platformcache.MetricsHooks) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		cache: platformcache.New(platformcache.Options{
			TTL:                  ttl,
			StaleWhileRevalidate: ttl,
			MaxEntries:           512,
		}, hooks),
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string, loader Loader) ([]byte, bool, error) {
	val, ok, err := m.cache.Get(ctx, key, func(ctx context.Context, _ string) (interface{}, bool, error) {
		payload, ok, err := loader(ctx)
		if err != nil || !ok {
			return nil, false, err
		}
		return payload, true, nil
	})
	if err != nil || !ok {
		return nil, false, err
	}
	return val.([]byte), true, nil
}

func (m *MemoryCache) Invalidate(_ context.Context, keys ...string) {
	for _, key := range keys {
		m.cache.Delete(key)
	}
}
