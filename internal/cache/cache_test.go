package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	platformcache "github.com/rentzentro/platform/pkg/cache"
)

var (
	_ ListingCache = (*RedisCache)(nil)
	_ ListingCache = (*MemoryCache)(nil)
)

func TestMemoryCache_GetCachesLoaderResult(t *testing.T) {
	mc := NewMemoryCache(time.Minute, platformcache.MetricsHooks{})
	calls := 0
	loader := func(ctx context.Context) ([]byte, bool, error) {
		calls++
		return []byte(`{"id":"lst_1"}`), true, nil
	}

	for i := 0; i < 3; i++ {
		payload, ok, err := mc.Get(context.Background(), ListingKey("lst_1"), loader)
		if err != nil {
			t.Fatalf("get %d: unexpected error: %v", i, err)
		}
		if !ok {
			t.Fatalf("get %d: expected hit", i)
		}
		if string(payload) != `{"id":"lst_1"}` {
			t.Fatalf("get %d: unexpected payload %q", i, payload)
		}
	}
	if calls != 1 {
		t.Errorf("expected loader to run once, ran %d times", calls)
	}
}

func TestMemoryCache_InvalidateForcesReload(t *testing.T) {
	mc := NewMemoryCache(time.Minute, platformcache.MetricsHooks{})
	calls := 0
	loader := func(ctx context.Context) ([]byte, bool, error) {
		calls++
		return []byte("v"), true, nil
	}

	if _, _, err := mc.Get(context.Background(), ListingKey("lst_1"), loader); err != nil {
		t.Fatalf("warm get: %v", err)
	}
	mc.Invalidate(context.Background(), ListingKey("lst_1"), ListingIndexKey)
	if _, _, err := mc.Get(context.Background(), ListingKey("lst_1"), loader); err != nil {
		t.Fatalf("reload get: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected loader to run twice after invalidation, ran %d times", calls)
	}
}

func TestMemoryCache_NotFoundIsNotCached(t *testing.T) {
	mc := NewMemoryCache(time.Minute, platformcache.MetricsHooks{})
	calls := 0
	loader := func(ctx context.Context) ([]byte, bool, error) {
		calls++
		return nil, false, nil
	}

	for i := 0; i < 2; i++ {
		payload, ok, err := mc.Get(context.Background(), ListingKey("lst_missing"), loader)
		if err != nil {
			t.Fatalf("get %d: unexpected error: %v", i, err)
		}
		if ok || payload != nil {
			t.Fatalf("get %d: expected miss, got ok=%v payload=%q", i, ok, payload)
		}
	}
	if calls != 2 {
		t.Errorf("expected loader to run on every miss, ran %d times", calls)
	}
}

func TestMemoryCache_LoaderErrorPropagates(t *testing.T) {
	mc := NewMemoryCache(time.Minute, platformcache.MetricsHooks{})
	wantErr := errors.New("database down")
	_, ok, err := mc.Get(context.Background(), ListingKey("lst_1"), func(ctx context.Context) ([]byte, bool, error) {
		return nil, false, wantErr
	})
	if ok {
		t.Error("expected miss on loader error")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("expected loader error, got %v", err)
	}
}

func TestListingKeys(t *testing.T) {
	if got := ListingKey("lst_42"); got != "public:listing:lst_42" {
		t.Errorf("unexpected listing key %q", got)
	}
	if ListingIndexKey != "public:listings:first" {
		t.Errorf("unexpected index key %q", ListingIndexKey)
	}
	if ListingKey("lst_42") == ListingIndexKey {
		t.Error("detail and index keys must not collide")
	}
}
