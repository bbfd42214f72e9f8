package client

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/okapi/internal/http"
	"github.com/fivetwenty-io/okapi/internal/watch"
	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

// resourceClient is the generic okapi.ResourceClient implementation. One
// instance serves one endpoint; every call is gated on the endpoint's
// registered verbs before any path is resolved.
type resourceClient struct {
	client   *Client
	endpoint okapi.Endpoint
}

// Endpoint implements okapi.ResourceClient.Endpoint.
func (r *resourceClient) Endpoint() okapi.Endpoint {
	return r.endpoint
}

// resolve gates the verb and maps the call onto a request path and query.
func (r *resourceClient) resolve(verb okapi.Verb, name string, opts *okapi.RequestOptions) (string, url.Values, error) {
	if !r.endpoint.Supports(verb) {
		return "", nil, fmt.Errorf("%w: %s does not support %q", okapi.ErrVerbNotSupported, r.endpoint.Name, verb)
	}

	subresource := ""

	if opts != nil && opts.Subresource != "" {
		if !r.endpoint.HasSubresource(opts.Subresource) {
			return "", nil, &okapi.ParameterError{
				Param:  "subresource",
				Detail: fmt.Sprintf("%s has no subresource %q", r.endpoint.Name, opts.Subresource),
			}
		}

		subresource = opts.Subresource
	}

	version := r.client.version
	prefix := r.endpoint.Prefix
	namespace := ""

	if r.endpoint.Namespaced {
		namespace = r.client.namespace
	}

	if opts != nil {
		if opts.Version != "" {
			version = opts.Version
		}

		if opts.Prefix != "" {
			prefix = opts.Prefix
		}

		if r.endpoint.Namespaced {
			switch {
			case opts.AllNamespaces:
				namespace = ""
			case opts.Namespace != "":
				namespace = opts.Namespace
			}
		}
	}

	path, query, err := okapi.ResolvePath(okapi.PathOptions{
		Prefix:      prefix,
		Version:     version,
		Resource:    r.endpoint.Name,
		Name:        name,
		Subresource: subresource,
		Namespace:   namespace,
	})
	if err != nil {
		return "", nil, err
	}

	// Call-level query values win over everything the resolver produced.
	if opts != nil {
		for key, values := range opts.Params.ToValues() {
			query[key] = values
		}

		for key, values := range opts.Query {
			query[key] = values
		}
	}

	return path, query, nil
}

// Get implements okapi.ResourceClient.Get.
func (r *resourceClient) Get(ctx context.Context, name string, opts *okapi.RequestOptions) (*okapi.Object, error) {
	if name == "" {
		return nil, &okapi.ParameterError{Param: "name", Detail: "object name is required"}
	}

	path, query, err := r.resolve(okapi.VerbGet, name, opts)
	if err != nil {
		return nil, err
	}

	envelope, err := r.client.execute(ctx, "GET", path, query, headersOf(opts), nil)
	if err != nil {
		return nil, fmt.Errorf("getting %s %q: %w", r.endpoint.Kind, name, err)
	}

	return decodeObject(envelope.Body)
}

// List implements okapi.ResourceClient.List.
func (r *resourceClient) List(ctx context.Context, opts *okapi.RequestOptions) (*okapi.List, error) {
	path, query, err := r.resolve(okapi.VerbList, "", opts)
	if err != nil {
		return nil, err
	}

	envelope, err := r.client.execute(ctx, "GET", path, query, headersOf(opts), nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.endpoint.Name, err)
	}

	return decodeList(envelope.Body)
}

// Create implements okapi.ResourceClient.Create.
func (r *resourceClient) Create(ctx context.Context, obj *okapi.Object, opts *okapi.RequestOptions) (*okapi.Object, error) {
	if obj == nil {
		return nil, &okapi.ParameterError{Param: "obj", Detail: "object is required"}
	}

	path, query, err := r.resolve(okapi.VerbCreate, "", opts)
	if err != nil {
		return nil, err
	}

	envelope, err := r.client.execute(ctx, "POST", path, query, headersOf(opts), obj)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", r.endpoint.Kind, err)
	}

	return decodeObject(envelope.Body)
}

// Update implements okapi.ResourceClient.Update.
func (r *resourceClient) Update(ctx context.Context, name string, obj *okapi.Object, opts *okapi.RequestOptions) (*okapi.Object, error) {
	if name == "" {
		return nil, &okapi.ParameterError{Param: "name", Detail: "object name is required"}
	}

	if obj == nil {
		return nil, &okapi.ParameterError{Param: "obj", Detail: "object is required"}
	}

	path, query, err := r.resolve(okapi.VerbUpdate, name, opts)
	if err != nil {
		return nil, err
	}

	envelope, err := r.client.execute(ctx, "PUT", path, query, headersOf(opts), obj)
	if err != nil {
		return nil, fmt.Errorf("updating %s %q: %w", r.endpoint.Kind, name, err)
	}

	return decodeObject(envelope.Body)
}

// Patch implements okapi.ResourceClient.Patch. Partial updates ride on the
// update verb; the content type defaults to a JSON merge patch and can be
// overridden per call.
func (r *resourceClient) Patch(ctx context.Context, name string, patch interface{}, opts *okapi.RequestOptions) (*okapi.Object, error) {
	if name == "" {
		return nil, &okapi.ParameterError{Param: "name", Detail: "object name is required"}
	}

	path, query, err := r.resolve(okapi.VerbUpdate, name, opts)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"Content-Type": "application/merge-patch+json"}
	for key, value := range headersOf(opts) {
		headers[key] = value
	}

	envelope, err := r.client.execute(ctx, "PATCH", path, query, headers, patch)
	if err != nil {
		return nil, fmt.Errorf("patching %s %q: %w", r.endpoint.Kind, name, err)
	}

	return decodeObject(envelope.Body)
}

// Delete implements okapi.ResourceClient.Delete.
func (r *resourceClient) Delete(ctx context.Context, name string, opts *okapi.RequestOptions) error {
	if name == "" {
		return &okapi.ParameterError{Param: "name", Detail: "object name is required"}
	}

	path, query, err := r.resolve(okapi.VerbDelete, name, opts)
	if err != nil {
		return err
	}

	_, err = r.client.execute(ctx, "DELETE", path, query, headersOf(opts), nil)
	if err != nil {
		return fmt.Errorf("deleting %s %q: %w", r.endpoint.Kind, name, err)
	}

	return nil
}

// Watch implements okapi.ResourceClient.Watch.
func (r *resourceClient) Watch(ctx context.Context, name string, opts *okapi.RequestOptions) (okapi.WatchSession, error) {
	// Resolve once up front so unsupported verbs and bad options fail here
	// rather than inside the session's reader.
	_, _, err := r.resolve(okapi.VerbWatch, name, opts)
	if err != nil {
		return nil, err
	}

	session := watch.NewSession(&watchSource{resource: r, name: name, opts: opts}, r.client.logger, r.endpoint.Name)

	err = session.TakeSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// Raw implements okapi.ResourceClient.Raw.
func (r *resourceClient) Raw(ctx context.Context, verb okapi.Verb, name string, body interface{}, opts *okapi.RequestOptions) (*okapi.Envelope, error) {
	path, query, err := r.resolve(verb, name, opts)
	if err != nil {
		return nil, err
	}

	if verb == okapi.VerbWatch {
		query.Set("watch", "true")
	}

	return r.client.execute(ctx, methodForVerb(verb), path, query, headersOf(opts), body)
}

// watchSource adapts a resource client to the watch session's needs: a
// snapshot list and a resumable event stream. Both re-resolve the path and
// re-derive the token on every call, so reconnections pick up credential
// changes.
type watchSource struct {
	resource *resourceClient
	name     string
	opts     *okapi.RequestOptions
}

func (s *watchSource) List(ctx context.Context) (*okapi.List, error) {
	if s.name == "" {
		return s.resource.List(ctx, s.opts)
	}

	// A named watch snapshots just that item.
	obj, err := s.resource.Get(ctx, s.name, s.opts)
	if err != nil {
		return nil, err
	}

	return &okapi.List{
		TypeMeta: okapi.TypeMeta{Kind: obj.Kind + "List", APIVersion: obj.APIVersion},
		Metadata: okapi.ListMeta{ResourceVersion: obj.ResourceVersion()},
		Items:    []okapi.Object{*obj},
	}, nil
}

func (s *watchSource) Connect(ctx context.Context, resourceVersion string) (*http.StreamResponse, error) {
	path, query, err := s.resource.resolve(okapi.VerbWatch, s.name, s.opts)
	if err != nil {
		return nil, err
	}

	query.Set("watch", "true")

	if resourceVersion != "" {
		query.Set("resourceVersion", resourceVersion)
	}

	return s.resource.client.httpClient.Stream(ctx, &http.Request{
		Method:  "GET",
		Path:    path,
		Query:   query,
		Headers: headersOf(s.opts),
	})
}

// nodesClient decorates the generic node client with proxy access.
type nodesClient struct {
	*resourceClient
}

// Proxy implements okapi.NodesClient.Proxy.
func (n *nodesClient) Proxy(ctx context.Context, name string, path string) (*okapi.Envelope, error) {
	if !n.endpoint.Supports(okapi.VerbProxy) {
		return nil, fmt.Errorf("%w: %s does not support %q", okapi.ErrVerbNotSupported, n.endpoint.Name, okapi.VerbProxy)
	}

	if name == "" {
		return nil, &okapi.ParameterError{Param: "name", Detail: "node name is required"}
	}

	resolved, query, err := okapi.ResolvePath(okapi.PathOptions{
		Prefix:      n.endpoint.Prefix,
		Version:     n.client.version,
		Resource:    okapi.ProxyMarker + "/" + n.endpoint.Name,
		Name:        name,
		Subresource: strings.Trim(path, "/"),
	})
	if err != nil {
		return nil, err
	}

	envelope, err := n.client.execute(ctx, "GET", resolved, query, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("proxying to %s %q: %w", n.endpoint.Name, name, err)
	}

	return envelope, nil
}

// replicationControllersClient decorates the generic controller client with
// scaling.
type replicationControllersClient struct {
	*resourceClient
}

// Scale implements okapi.ReplicationControllersClient.Scale as a
// read-modify-write of the controller's desired replica count.
func (c *replicationControllersClient) Scale(ctx context.Context, name string, replicas int, opts *okapi.RequestOptions) (*okapi.Object, error) {
	if replicas < 0 {
		return nil, &okapi.ParameterError{Param: "replicas", Detail: "replica count must not be negative"}
	}

	controller, err := c.Get(ctx, name, opts)
	if err != nil {
		return nil, err
	}

	if controller.Spec == nil {
		controller.Spec = make(map[string]interface{})
	}

	controller.Spec["replicas"] = replicas

	updated, err := c.Update(ctx, name, controller, opts)
	if err != nil {
		return nil, fmt.Errorf("scaling %s %q to %d replicas: %w", c.endpoint.Kind, name, replicas, err)
	}

	return updated, nil
}

// buildConfigsClient decorates the generic build config client with build
// instantiation.
type buildConfigsClient struct {
	*resourceClient
}

// Instantiate implements okapi.BuildConfigsClient.Instantiate.
func (b *buildConfigsClient) Instantiate(ctx context.Context, name string, req *okapi.BuildRequest, opts *okapi.RequestOptions) (*okapi.Object, error) {
	if name == "" {
		return nil, &okapi.ParameterError{Param: "name", Detail: "build config name is required"}
	}

	request := okapi.BuildRequest{}
	if req != nil {
		request = *req
	}

	if request.Kind == "" {
		request.Kind = "BuildRequest"
	}

	if request.Metadata.Name == "" {
		request.Metadata.Name = name
	}

	withSubresource := okapi.RequestOptions{}
	if opts != nil {
		withSubresource = *opts
	}

	withSubresource.Subresource = "instantiate"

	path, query, err := b.resolve(okapi.VerbCreate, name, &withSubresource)
	if err != nil {
		return nil, err
	}

	envelope, err := b.client.execute(ctx, "POST", path, query, headersOf(&withSubresource), &request)
	if err != nil {
		return nil, fmt.Errorf("instantiating build from %s %q: %w", b.endpoint.Kind, name, err)
	}

	return decodeObject(envelope.Body)
}

// execute performs one API request, routing it through the interceptor chain
// when a response cache is configured.
func (c *Client) execute(ctx context.Context, method, path string, query url.Values, headers map[string]string, body interface{}) (*okapi.Envelope, error) {
	if c.interceptors == nil {
		resp, err := c.httpClient.Do(ctx, &http.Request{
			Method:  method,
			Path:    path,
			Query:   query,
			Headers: headers,
			Body:    body,
		})

		return envelopeOf(resp), err
	}

	return c.executeIntercepted(ctx, method, path, query, headers, body)
}

func (c *Client) executeIntercepted(ctx context.Context, method, path string, query url.Values, headers map[string]string, body interface{}) (*okapi.Envelope, error) {
	interceptorReq := &okapi.Request{
		Method:  method,
		Path:    path,
		Query:   query,
		Headers: make(nethttp.Header),
	}

	for key, value := range headers {
		interceptorReq.Headers.Set(key, value)
	}

	err := c.interceptors.ExecuteRequestInterceptors(ctx, interceptorReq)
	if err != nil {
		return nil, err
	}

	// A cache hit short-circuits the network call entirely.
	if entry, ok := interceptorReq.Metadata[okapi.MetadataCachedResponse].(*okapi.CacheEntry); ok {
		return &okapi.Envelope{StatusCode: nethttp.StatusOK, Body: entry.Data}, nil
	}

	finalHeaders := make(map[string]string, len(interceptorReq.Headers))
	for key := range interceptorReq.Headers {
		finalHeaders[key] = interceptorReq.Headers.Get(key)
	}

	resp, err := c.httpClient.Do(ctx, &http.Request{
		Method:  method,
		Path:    path,
		Query:   query,
		Headers: finalHeaders,
		Body:    body,
	})

	interceptorResp := &okapi.Response{Error: err}
	if resp != nil {
		interceptorResp.StatusCode = resp.StatusCode
		interceptorResp.Headers = resp.Headers
		interceptorResp.Body = resp.Body
	}

	interceptorErr := c.interceptors.ExecuteResponseInterceptors(ctx, interceptorReq, interceptorResp)
	if interceptorErr != nil && c.logger != nil {
		c.logger.Warn("response interceptor failed", map[string]interface{}{
			"error": interceptorErr.Error(),
		})
	}

	if err == nil && resp != nil && resp.StatusCode == nethttp.StatusNotModified {
		if served := c.serveNotModified(ctx, method, path, interceptorReq, resp); served != nil {
			return served, nil
		}
	}

	return envelopeOf(resp), err
}

// serveNotModified answers a 304 revalidation with the cached body.
func (c *Client) serveNotModified(ctx context.Context, method, path string, req *okapi.Request, resp *http.Response) *okapi.Envelope {
	if c.cacheManager == nil {
		return nil
	}

	key := c.cacheManager.GetCacheKey(method, path, req.QueryParams())

	entry, err := c.cacheManager.GetEntry(ctx, key)
	if err != nil {
		return nil
	}

	return &okapi.Envelope{StatusCode: nethttp.StatusOK, Headers: resp.Headers, Body: entry.Data}
}

func envelopeOf(resp *http.Response) *okapi.Envelope {
	if resp == nil {
		return nil
	}

	return &okapi.Envelope{StatusCode: resp.StatusCode, Headers: resp.Headers, Body: resp.Body}
}

func headersOf(opts *okapi.RequestOptions) map[string]string {
	if opts == nil {
		return nil
	}

	return opts.Headers
}

func methodForVerb(verb okapi.Verb) string {
	switch verb {
	case okapi.VerbCreate:
		return "POST"
	case okapi.VerbUpdate:
		return "PUT"
	case okapi.VerbDelete:
		return "DELETE"
	case okapi.VerbGet, okapi.VerbList, okapi.VerbWatch, okapi.VerbProxy:
		return "GET"
	default:
		return "GET"
	}
}

func decodeObject(body []byte) (*okapi.Object, error) {
	var obj okapi.Object

	err := json.Unmarshal(body, &obj)
	if err != nil {
		return nil, fmt.Errorf("parsing object response: %w", err)
	}

	return &obj, nil
}

func decodeList(body []byte) (*okapi.List, error) {
	var list okapi.List

	err := json.Unmarshal(body, &list)
	if err != nil {
		return nil, fmt.Errorf("parsing list response: %w", err)
	}

	return &list, nil
}
