package okapi

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

// MetadataCachedResponse is the request metadata key under which a cache hit
// is stashed by CacheInterceptor. The HTTP layer short-circuits the network
// call when it finds an entry here.
const MetadataCachedResponse = "cached_response"

// CacheInterceptor returns the interceptor pair implementing read-through
// caching: the request side surfaces cache hits through request metadata,
// the response side stores cacheable responses.
func CacheInterceptor(manager *CacheManager, policy *CachingPolicy) (RequestInterceptor, ResponseInterceptor) {
	if policy == nil {
		policy = DefaultCachingPolicy()
	}

	requestInterceptor := func(ctx context.Context, req *Request) error {
		if !policy.ShouldCache(req.Method, req.Path, 200) {
			return nil
		}

		key := manager.GetCacheKey(req.Method, req.Path, req.QueryParams())

		entry, err := manager.GetEntry(ctx, key)
		if err != nil {
			// Miss or expired entry; the request proceeds to the network.
			return nil
		}

		if req.Metadata == nil {
			req.Metadata = make(map[string]interface{})
		}

		req.Metadata[MetadataCachedResponse] = entry

		return nil
	}

	responseInterceptor := func(ctx context.Context, req *Request, resp *Response) error {
		if resp.Error != nil || !policy.ShouldCache(req.Method, req.Path, resp.StatusCode) {
			return nil
		}

		key := manager.GetCacheKey(req.Method, req.Path, req.QueryParams())

		return manager.SetWithETag(ctx, key, resp.Body, resp.Headers.Get("ETag"), policy.DefaultTTL)
	}

	return requestInterceptor, responseInterceptor
}

// ConditionalRequestInterceptor attaches If-None-Match to GET requests when
// a cached entry with an entity tag exists, letting the server answer 304.
func ConditionalRequestInterceptor(manager *CacheManager) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Method != "GET" {
			return nil
		}

		key := manager.GetCacheKey(req.Method, req.Path, req.QueryParams())

		entry, err := manager.GetEntry(ctx, key)
		if err != nil || entry.ETag == "" {
			return nil
		}

		req.Headers.Set("If-None-Match", entry.ETag)

		return nil
	}
}

// CacheInvalidationInterceptor drops cached reads made stale by a successful
// mutation: the item's own GET entry and its parent collection's list entry.
func CacheInvalidationInterceptor(manager *CacheManager) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		switch req.Method {
		case "POST", "PUT", "PATCH", "DELETE":
		default:
			return nil
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil
		}

		var errs error

		errs = errors.Join(errs, manager.Invalidate(ctx, manager.GetCacheKey("GET", req.Path, nil)))

		if parent := path.Dir(req.Path); parent != "." && parent != "/" {
			errs = errors.Join(errs, manager.Invalidate(ctx, manager.GetCacheKey("GET", parent, nil)))
		}

		return errs
	}
}

// SmartCacheConfig tunes the composed caching behavior installed by
// ConfigureSmartCache.
type SmartCacheConfig struct {
	// EnableSmartInvalidation installs mutation-driven invalidation.
	EnableSmartInvalidation bool

	// EnableConditionalRequests installs If-None-Match revalidation.
	EnableConditionalRequests bool

	// EnableMetrics installs request metrics collection.
	EnableMetrics bool

	// ResourceTTLs overrides the entry lifetime per resource path fragment.
	// Volatile collections get short lifetimes, near-static ones longer.
	ResourceTTLs map[string]time.Duration
}

// DefaultSmartCacheConfig returns lifetimes tuned to how quickly each
// resource kind typically changes.
func DefaultSmartCacheConfig() *SmartCacheConfig {
	return &SmartCacheConfig{
		EnableSmartInvalidation:   true,
		EnableConditionalRequests: true,
		EnableMetrics:             true,
		ResourceTTLs: map[string]time.Duration{
			"/pods":                   30 * time.Second,
			"/replicationcontrollers": time.Minute,
			"/services":               2 * time.Minute,
			"/routes":                 2 * time.Minute,
			"/imagestreams":           2 * time.Minute,
			"/nodes":                  5 * time.Minute,
			"/namespaces":             10 * time.Minute,
			"/projects":               10 * time.Minute,
		},
	}
}

// TTLForPath returns the configured lifetime for a path, falling back to the
// default when no resource fragment matches.
func (c *SmartCacheConfig) TTLForPath(path string, fallback time.Duration) time.Duration {
	for fragment, ttl := range c.ResourceTTLs {
		if strings.Contains(path, fragment) {
			return ttl
		}
	}

	return fallback
}

// ConfigureSmartCache installs the caching interceptors on the chain
// according to the config.
func ConfigureSmartCache(chain *InterceptorChain, manager *CacheManager, config *SmartCacheConfig) {
	if config == nil {
		config = DefaultSmartCacheConfig()
	}

	policy := manager.Policy()

	requestInterceptor, _ := CacheInterceptor(manager, policy)
	chain.AddRequestInterceptor(requestInterceptor)

	chain.AddResponseInterceptor(func(ctx context.Context, req *Request, resp *Response) error {
		if resp.Error != nil || !policy.ShouldCache(req.Method, req.Path, resp.StatusCode) {
			return nil
		}

		key := manager.GetCacheKey(req.Method, req.Path, req.QueryParams())
		ttl := config.TTLForPath(req.Path, policy.DefaultTTL)

		return manager.SetWithETag(ctx, key, resp.Body, resp.Headers.Get("ETag"), ttl)
	})

	if config.EnableConditionalRequests {
		chain.AddRequestInterceptor(ConditionalRequestInterceptor(manager))
	}

	if config.EnableSmartInvalidation {
		chain.AddResponseInterceptor(CacheInvalidationInterceptor(manager))
	}

	if config.EnableMetrics {
		collector := NewMetricsCollector()
		chain.AddRequestInterceptor(MetricsRequestInterceptor(collector))
		chain.AddResponseInterceptor(MetricsResponseInterceptor(collector))
	}
}

// CacheWarmer pre-populates the cache by listing resources through the
// client's ordinary read path.
type CacheWarmer struct {
	client  Client
	manager *CacheManager
}

// NewCacheWarmer creates a warmer over the given client and manager.
func NewCacheWarmer(client Client, manager *CacheManager) *CacheWarmer {
	return &CacheWarmer{client: client, manager: manager}
}

// Warm lists each named resource once so subsequent reads hit the cache.
// Failures are collected rather than aborting the remaining resources.
func (w *CacheWarmer) Warm(ctx context.Context, resources ...string) error {
	var errs error

	for _, name := range resources {
		resourceClient, err := w.client.Resource(name)
		if err != nil {
			errs = errors.Join(errs, err)

			continue
		}

		_, err = resourceClient.List(ctx, nil)
		if err != nil {
			errs = errors.Join(errs, err)
		}
	}

	return errs
}
