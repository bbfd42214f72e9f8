package okapi_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

func TestMemoryCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		t.Parallel()

		cache := okapi.NewMemoryCache(10)
		defer cache.Close()

		entry := &okapi.CacheEntry{
			Data:      []byte(`{"kind":"PodList"}`),
			ExpiresAt: time.Now().Add(time.Minute),
			ETag:      `"abc"`,
		}
		require.NoError(t, cache.Set(ctx, "GET:/api/v1beta3/pods", entry))

		got, err := cache.Get(ctx, "GET:/api/v1beta3/pods")
		require.NoError(t, err)
		assert.Equal(t, entry.Data, got.Data)
		assert.Equal(t, `"abc"`, got.ETag)
		assert.True(t, cache.Has(ctx, "GET:/api/v1beta3/pods"))
	})

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()

		cache := okapi.NewMemoryCache(10)
		defer cache.Close()

		_, err := cache.Get(ctx, "nope")
		require.Error(t, err)
		assert.ErrorIs(t, err, okapi.ErrCacheKeyNotFound)
		assert.False(t, cache.Has(ctx, "nope"))
	})

	t.Run("expired entry removed on read", func(t *testing.T) {
		t.Parallel()

		cache := okapi.NewMemoryCache(10)
		defer cache.Close()

		require.NoError(t, cache.Set(ctx, "stale", &okapi.CacheEntry{
			Data:      []byte("old"),
			ExpiresAt: time.Now().Add(-time.Second),
		}))

		_, err := cache.Get(ctx, "stale")
		require.Error(t, err)
		assert.ErrorIs(t, err, okapi.ErrCacheEntryExpired)

		// A second read reports not-found: the entry was dropped.
		_, err = cache.Get(ctx, "stale")
		assert.ErrorIs(t, err, okapi.ErrCacheKeyNotFound)
	})

	t.Run("eviction at capacity", func(t *testing.T) {
		t.Parallel()

		cache := okapi.NewMemoryCache(2)
		defer cache.Close()

		require.NoError(t, cache.Set(ctx, "oldest", &okapi.CacheEntry{ExpiresAt: time.Now().Add(time.Minute)}))
		require.NoError(t, cache.Set(ctx, "newer", &okapi.CacheEntry{ExpiresAt: time.Now().Add(2 * time.Minute)}))
		require.NoError(t, cache.Set(ctx, "newest", &okapi.CacheEntry{ExpiresAt: time.Now().Add(3 * time.Minute)}))

		assert.False(t, cache.Has(ctx, "oldest"))
		assert.True(t, cache.Has(ctx, "newer"))
		assert.True(t, cache.Has(ctx, "newest"))
	})

	t.Run("delete and clear", func(t *testing.T) {
		t.Parallel()

		cache := okapi.NewMemoryCache(10)
		defer cache.Close()

		require.NoError(t, cache.Set(ctx, "a", &okapi.CacheEntry{ExpiresAt: time.Now().Add(time.Minute)}))
		require.NoError(t, cache.Set(ctx, "b", &okapi.CacheEntry{ExpiresAt: time.Now().Add(time.Minute)}))

		require.NoError(t, cache.Delete(ctx, "a"))
		assert.False(t, cache.Has(ctx, "a"))
		assert.True(t, cache.Has(ctx, "b"))

		require.NoError(t, cache.Clear(ctx))
		assert.False(t, cache.Has(ctx, "b"))
	})

	t.Run("cleanup drops expired entries", func(t *testing.T) {
		t.Parallel()

		cache := okapi.NewMemoryCache(10)
		defer cache.Close()

		require.NoError(t, cache.Set(ctx, "live", &okapi.CacheEntry{ExpiresAt: time.Now().Add(time.Minute)}))
		require.NoError(t, cache.Set(ctx, "dead", &okapi.CacheEntry{ExpiresAt: time.Now().Add(-time.Minute)}))

		cache.Cleanup()

		assert.True(t, cache.Has(ctx, "live"))
		assert.False(t, cache.Has(ctx, "dead"))
	})
}

func TestCacheManager(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("stats track hits and misses", func(t *testing.T) {
		t.Parallel()

		cache := okapi.NewMemoryCache(10)
		defer cache.Close()

		manager := okapi.NewCacheManager(cache, nil)

		_, err := manager.Get(ctx, "k")
		require.Error(t, err)

		require.NoError(t, manager.Set(ctx, "k", []byte("v"), time.Minute))

		data, err := manager.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), data)

		require.NoError(t, manager.Invalidate(ctx, "k"))

		stats := manager.GetStats()
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
		assert.Equal(t, int64(1), stats.Sets)
		assert.Equal(t, int64(1), stats.Invalidations)
		assert.InDelta(t, 0.5, stats.GetHitRate(), 0.001)
	})

	t.Run("nil cache is a no-op", func(t *testing.T) {
		t.Parallel()

		manager := okapi.NewCacheManager(nil, nil)

		require.NoError(t, manager.Set(ctx, "k", []byte("v"), time.Minute))
		require.NoError(t, manager.Invalidate(ctx, "k"))
		require.NoError(t, manager.Clear(ctx))

		_, err := manager.Get(ctx, "k")
		assert.ErrorIs(t, err, okapi.ErrCacheKeyNotFound)
	})

	t.Run("etag and version round through entries", func(t *testing.T) {
		t.Parallel()

		cache := okapi.NewMemoryCache(10)
		defer cache.Close()

		manager := okapi.NewCacheManager(cache, nil)

		require.NoError(t, manager.SetWithETag(ctx, "a", []byte("x"), `"tag"`, time.Minute))
		require.NoError(t, manager.SetWithVersion(ctx, "b", []byte("y"), "1042", time.Minute))

		entry, err := manager.GetEntry(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, `"tag"`, entry.ETag)

		entry, err = manager.GetEntry(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, "1042", entry.ResourceVersion)
	})
}

func TestCacheManagerGetCacheKey(t *testing.T) {
	t.Parallel()

	manager := okapi.NewCacheManager(okapi.NewNoOpCache(), nil)

	assert.Equal(t, "GET:/api/v1/pods", manager.GetCacheKey("GET", "/api/v1/pods", nil))

	// Parameter order does not change the key.
	key1 := manager.GetCacheKey("GET", "/api/v1/pods", map[string]string{"a": "1", "b": "2"})
	key2 := manager.GetCacheKey("GET", "/api/v1/pods", map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, key1, key2)
	assert.Equal(t, "GET:/api/v1/pods:a=1&b=2", key1)
}

func TestCachingPolicyShouldCache(t *testing.T) {
	t.Parallel()

	t.Run("default policy", func(t *testing.T) {
		t.Parallel()

		policy := okapi.DefaultCachingPolicy()

		assert.True(t, policy.ShouldCache("GET", "/api/v1beta3/pods", 200))
		assert.False(t, policy.ShouldCache("POST", "/api/v1beta3/pods", 200))
		assert.False(t, policy.ShouldCache("DELETE", "/api/v1beta3/pods/a", 200))
		assert.False(t, policy.ShouldCache("GET", "/api/v1beta3/pods", 404))

		// Never cache streams or secret material.
		assert.False(t, policy.ShouldCache("GET", "/api/v1beta3/namespaces/x/secrets", 200))
		assert.False(t, policy.ShouldCache("GET", "/api/v1beta3/events", 200))
		assert.False(t, policy.ShouldCache("GET", "/oapi/v1beta3/oauthaccesstokens", 200))
	})

	t.Run("include paths restrict caching", func(t *testing.T) {
		t.Parallel()

		policy := &okapi.CachingPolicy{
			CacheGET:     true,
			IncludePaths: []string{"/pods"},
		}

		assert.True(t, policy.ShouldCache("GET", "/api/v1beta3/pods", 200))
		assert.False(t, policy.ShouldCache("GET", "/api/v1beta3/services", 200))
	})

	t.Run("errors cacheable when enabled", func(t *testing.T) {
		t.Parallel()

		policy := &okapi.CachingPolicy{CacheGET: true, CacheErrors: true}
		assert.True(t, policy.ShouldCache("GET", "/api/v1beta3/pods/gone", 404))
	})
}
