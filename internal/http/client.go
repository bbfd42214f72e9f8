// Package http implements the low-level request dispatch for the API client:
// path-relative requests, bearer-token attachment, one-shot re-authentication
// on 401, typed error classification, and streaming connections for watches.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/okapi/internal/auth"
	"github.com/fivetwenty-io/okapi/internal/constants"
	"github.com/fivetwenty-io/okapi/pkg/okapi"
	"github.com/hashicorp/go-retryablehttp"
)

// maxErrorBodyBytes caps how much of a failed streaming response is read for
// error context.
const maxErrorBodyBytes = 512 * 1024

// Logger is the logging interface this package emits through.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Request describes one API call relative to the client's base URL.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    interface{}
}

// Response is a fully-read API response.
type Response struct {
	StatusCode int
	Headers    nethttp.Header
	Body       []byte
}

// StreamResponse is an API response whose body remains open for incremental
// consumption. The caller owns closing Body.
type StreamResponse struct {
	StatusCode int
	Headers    nethttp.Header
	Body       io.ReadCloser
}

// Client performs HTTP requests against a single API endpoint.
type Client struct {
	baseURL      string
	tokenManager auth.TokenManager
	httpClient   *retryablehttp.Client
	logger       Logger
	debug        bool
	userAgent    string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response debug logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig enables transport-level retries for transient failures
// (5xx, 429, connection resets). Off by default.
func WithRetryConfig(retryMax int, retryWaitMin, retryWaitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax
		c.httpClient.RetryWaitMin = retryWaitMin
		c.httpClient.RetryWaitMax = retryWaitMax
	}
}

// WithTimeout bounds each ordinary request. Zero leaves requests unbounded;
// streaming requests are never subject to this timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithHTTPClient swaps the underlying standard client, typically to install
// a custom TLS configuration.
func WithHTTPClient(httpClient *nethttp.Client) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient = httpClient
	}
}

// NewClient creates a client for the given base URL. A nil tokenManager means
// requests go out unauthenticated. Requests carry no timeout unless the
// caller opts in through WithTimeout; deadlines otherwise come from the
// request context.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.Logger = nil
	retryClient.CheckRetry = checkRetry
	retryClient.HTTPClient.Timeout = 0

	client := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		tokenManager: tokenManager,
		httpClient:   retryClient,
		userAgent:    constants.DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// checkRetry follows the default transient-failure policy except for host
// resolution errors, which are fatal rather than transient.
func checkRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return false, err
	}

	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Do executes a request. Responses with status >= 400 return both the
// response and a typed error. A 401 triggers exactly one re-authentication
// and retry; the second outcome is returned as-is.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.doOnce(ctx, req, token)
	if err == nil || !okapi.IsUnauthorized(err) || c.tokenManager == nil {
		return resp, err
	}

	// The token may simply have expired; force a fresh one and retry once.
	c.tokenManager.Invalidate()

	token, tokenErr := c.tokenManager.GetToken(ctx)
	if tokenErr != nil {
		return resp, fmt.Errorf("re-authenticating after 401: %w", tokenErr)
	}

	return c.doOnce(ctx, req, token)
}

// Stream executes a request whose response body stays open for the caller.
// The ordinary request timeout does not apply; watch connections live until
// the server or the network ends them. The 401-retry-once rule applies here
// exactly as in Do.
func (c *Client) Stream(ctx context.Context, req *Request) (*StreamResponse, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.streamOnce(ctx, req, token)
	if err == nil || !okapi.IsUnauthorized(err) || c.tokenManager == nil {
		return resp, err
	}

	c.tokenManager.Invalidate()

	token, tokenErr := c.tokenManager.GetToken(ctx)
	if tokenErr != nil {
		return nil, fmt.Errorf("re-authenticating after 401: %w", tokenErr)
	}

	return c.streamOnce(ctx, req, token)
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodGet, Path: path, Query: query})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodDelete, Path: path})
}

// BaseURL returns the endpoint this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) currentToken(ctx context.Context) (string, error) {
	if c.tokenManager == nil {
		return "", nil
	}

	token, err := c.tokenManager.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("getting token: %w", err)
	}

	return token, nil
}

func (c *Client) doOnce(ctx context.Context, req *Request, token string) (*Response, error) {
	fullURL := c.requestURL(req)

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	var rawBody interface{}
	if body != nil {
		rawBody = body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, rawBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.setHeaders(httpReq.Header, req, token, body != nil)
	c.logRequest(req, fullURL)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.classifyTransportError(req, err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}

	c.logResponse(resp)

	if httpResp.StatusCode >= nethttp.StatusBadRequest {
		return resp, okapi.NewStatusError(httpResp.StatusCode, respBody)
	}

	return resp, nil
}

func (c *Client) streamOnce(ctx context.Context, req *Request, token string) (*StreamResponse, error) {
	fullURL := c.requestURL(req)

	httpReq, err := nethttp.NewRequestWithContext(ctx, req.Method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.setHeaders(httpReq.Header, req, token, false)
	c.logRequest(req, fullURL)

	httpResp, err := c.streamHTTPClient().Do(httpReq)
	if err != nil {
		return nil, c.classifyTransportError(req, err)
	}

	if httpResp.StatusCode >= nethttp.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodyBytes))
		_ = httpResp.Body.Close()

		return nil, okapi.NewStatusError(httpResp.StatusCode, body)
	}

	return &StreamResponse{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       httpResp.Body,
	}, nil
}

// streamHTTPClient shares the configured transport but drops the overall
// timeout, which would sever long-lived streams mid-watch.
func (c *Client) streamHTTPClient() *nethttp.Client {
	return &nethttp.Client{
		Transport: c.httpClient.HTTPClient.Transport,
	}
}

func (c *Client) requestURL(req *Request) string {
	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	return fullURL
}

func (c *Client) setHeaders(header nethttp.Header, req *Request, token string, hasBody bool) {
	header.Set("Accept", "application/json")

	if hasBody {
		header.Set("Content-Type", "application/json")
	}

	if c.userAgent != "" {
		header.Set("User-Agent", c.userAgent)
	}

	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	// Caller headers win, including Content-Type overrides.
	for key, value := range req.Headers {
		header.Set(key, value)
	}
}

// classifyTransportError turns low-level failures into the client's error
// taxonomy. Host resolution failures get their own recognizable error; they
// indicate misconfiguration, not a flaky network.
func (c *Client) classifyTransportError(req *Request, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if c.logger != nil {
			c.logger.Error("API host could not be resolved", map[string]interface{}{
				"host": dnsErr.Name,
				"path": req.Path,
			})
		}

		return fmt.Errorf("%w: %s", okapi.ErrHostNotFound, dnsErr.Name)
	}

	return fmt.Errorf("executing %s %s: %w", req.Method, req.Path, err)
}

func (c *Client) logRequest(req *Request, fullURL string) {
	if !c.debug || c.logger == nil {
		return
	}

	c.logger.Debug("HTTP Request", map[string]interface{}{
		"method": req.Method,
		"url":    fullURL,
	})
}

func (c *Client) logResponse(resp *Response) {
	if !c.debug || c.logger == nil {
		return
	}

	c.logger.Debug("HTTP Response", map[string]interface{}{
		"status": resp.StatusCode,
		"size":   len(resp.Body),
	})
}

// encodeBody renders a request body to bytes. Byte slices and raw JSON pass
// through untouched; anything else is marshaled as JSON.
func encodeBody(body interface{}) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		if len(b) == 0 {
			return nil, nil
		}

		return b, nil
	case json.RawMessage:
		if len(b) == 0 {
			return nil, nil
		}

		return b, nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling body: %w", err)
		}

		return data, nil
	}
}
