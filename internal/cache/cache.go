// Package cache caches rendered public-listing payloads. Redis backs
// it when configured so all instances share entries; otherwise an
// in-process cache serves the same contract for single-node deploys.
package cache

import (
	"context"
	"time"
)

// DefaultTTL bounds how stale a public listing page can get. Writes
// invalidate eagerly; the TTL is the backstop.
const DefaultTTL = 60 * time.Second

// Loader fetches the payload on a cache miss. ok=false means the
// entity does not exist or is not public; that result is surfaced as a
// miss and never cached.
type Loader func(ctx context.Context) ([]byte, bool, error)

// ListingCache is the read-through cache in front of the public
// listings surface. Implementations degrade to the loader on backend
// errors rather than failing the request.
type ListingCache interface {
	Get(ctx context.Context, key string, loader Loader) ([]byte, bool, error)
	Invalidate(ctx context.Context, keys ...string)
}

// ListingKey is the cache key for one public listing detail page.
func ListingKey(listingID string) string {
	return "public:listing:" + listingID
}

// ListingIndexKey is the cache key for the unfiltered first page of
// public listings. Filtered and cursored pages go straight to the
// database; invalidation stays a two-key delete that way.
const ListingIndexKey = "public:listings:first"
