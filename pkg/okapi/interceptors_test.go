package okapi_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

func TestInterceptorChainOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	chain := okapi.NewInterceptorChain()

	var order []string

	chain.AddRequestInterceptor(func(ctx context.Context, req *okapi.Request) error {
		order = append(order, "req-1")

		return nil
	})
	chain.AddRequestInterceptor(func(ctx context.Context, req *okapi.Request) error {
		order = append(order, "req-2")

		return nil
	})
	chain.AddResponseInterceptor(func(ctx context.Context, req *okapi.Request, resp *okapi.Response) error {
		order = append(order, "resp-1")

		return nil
	})

	req := &okapi.Request{Method: "GET", Path: "/api/v1beta3/pods"}
	require.NoError(t, chain.ExecuteRequestInterceptors(ctx, req))
	require.NoError(t, chain.ExecuteResponseInterceptors(ctx, req, &okapi.Response{StatusCode: 200}))

	assert.Equal(t, []string{"req-1", "req-2", "resp-1"}, order)
}

func TestInterceptorChainStopsOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	chain := okapi.NewInterceptorChain()
	errReject := errors.New("rejected")

	reached := false

	chain.AddRequestInterceptor(func(ctx context.Context, req *okapi.Request) error {
		return errReject
	})
	chain.AddRequestInterceptor(func(ctx context.Context, req *okapi.Request) error {
		reached = true

		return nil
	})

	err := chain.ExecuteRequestInterceptors(ctx, &okapi.Request{})
	require.ErrorIs(t, err, errReject)
	assert.False(t, reached)
}

func TestAuthenticationInterceptor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("attaches bearer token", func(t *testing.T) {
		t.Parallel()

		interceptor := okapi.AuthenticationInterceptor(func(ctx context.Context) (string, error) {
			return "sha256~abc", nil
		})

		req := &okapi.Request{}
		require.NoError(t, interceptor(ctx, req))
		assert.Equal(t, "Bearer sha256~abc", req.Headers.Get("Authorization"))
	})

	t.Run("empty token leaves request anonymous", func(t *testing.T) {
		t.Parallel()

		interceptor := okapi.AuthenticationInterceptor(func(ctx context.Context) (string, error) {
			return "", nil
		})

		req := &okapi.Request{}
		require.NoError(t, interceptor(ctx, req))
		assert.Empty(t, req.Headers.Get("Authorization"))
	})

	t.Run("provider error propagates", func(t *testing.T) {
		t.Parallel()

		errNoToken := errors.New("no token")
		interceptor := okapi.AuthenticationInterceptor(func(ctx context.Context) (string, error) {
			return "", errNoToken
		})

		err := interceptor(ctx, &okapi.Request{})
		assert.ErrorIs(t, err, errNoToken)
	})
}

func TestHeaderInterceptor(t *testing.T) {
	t.Parallel()

	interceptor := okapi.HeaderInterceptor(map[string]string{
		"X-Custom":     "value",
		"X-Request-ID": "abc123",
	})

	req := &okapi.Request{}
	require.NoError(t, interceptor(context.Background(), req))
	assert.Equal(t, "value", req.Headers.Get("X-Custom"))
	assert.Equal(t, "abc123", req.Headers.Get("X-Request-ID"))
}

func TestRateLimitInterceptor(t *testing.T) {
	t.Parallel()

	interceptor := okapi.RateLimitInterceptor(1)
	req := &okapi.Request{Method: "GET", Path: "/api/v1/pods"}

	require.NoError(t, interceptor(context.Background(), req))

	// Bucket drained: a request whose context has already ended gives up
	// instead of waiting for a refill.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := interceptor(ctx, req)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRequestQueryParams(t *testing.T) {
	t.Parallel()

	req := &okapi.Request{Query: url.Values{
		"labelSelector": []string{"env=prod"},
		"watch":         []string{"true"},
	}}

	params := req.QueryParams()
	assert.Equal(t, "env=prod", params["labelSelector"])
	assert.Equal(t, "true", params["watch"])

	empty := &okapi.Request{}
	assert.Nil(t, empty.QueryParams())
}

func TestMetricsInterceptors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	collector := okapi.NewMetricsCollector()

	changed := 0

	collector.SetOnChange(func(endpoint string, metrics *okapi.Metrics) {
		changed++
	})

	requestInterceptor := okapi.MetricsRequestInterceptor(collector)
	responseInterceptor := okapi.MetricsResponseInterceptor(collector)

	req := &okapi.Request{Method: "GET", Path: "/api/v1beta3/pods"}
	require.NoError(t, requestInterceptor(ctx, req))
	require.NoError(t, responseInterceptor(ctx, req, &okapi.Response{StatusCode: 200}))
	require.NoError(t, requestInterceptor(ctx, req))
	require.NoError(t, responseInterceptor(ctx, req, &okapi.Response{StatusCode: 500}))

	metrics := collector.GetMetrics("GET /api/v1beta3/pods")
	require.NotNil(t, metrics)
	assert.Equal(t, int64(2), metrics.TotalRequests)
	assert.Equal(t, int64(1), metrics.TotalErrors)
	assert.False(t, metrics.LastRequestTime.IsZero())
	assert.Equal(t, 2, changed)

	assert.Nil(t, collector.GetMetrics("GET /unseen"))
}
