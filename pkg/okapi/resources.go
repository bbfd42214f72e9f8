package okapi

import (
	"context"
	"net/http"
	"net/url"
)

// RequestOptions carries per-call overrides for one resource operation.
// Call-level values win over client-level defaults. A nil *RequestOptions is
// valid and means "use the defaults everywhere".
type RequestOptions struct {
	// Namespace overrides the client's default namespace. Ignored for
	// cluster-scoped resources.
	Namespace string

	// AllNamespaces drops the namespace scope entirely, addressing the
	// resource across all namespaces. Only meaningful for list and watch.
	AllNamespaces bool

	// Version overrides the client's API version for this call.
	Version string

	// Prefix overrides the endpoint's API prefix for this call.
	Prefix string

	// Subresource addresses a path suffix under the item, e.g. "instantiate".
	Subresource string

	// Params supplies list/watch query parameters.
	Params *QueryParams

	// Query carries additional raw query values, merged over Params.
	// Useful for parameters the typed builder does not know.
	Query url.Values

	// Headers carries additional request headers for this call only.
	Headers map[string]string
}

// Envelope is the undecoded response to a resource operation: status code,
// headers, and raw body. Returned by Raw for callers that need more than the
// decoded object.
type Envelope struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// ResourceClient performs operations on one resource collection. Implementations
// gate every call on the endpoint's registered verbs and resolve paths
// according to the client's API version, so the same interface serves both
// current and legacy versions.
type ResourceClient interface {
	// Endpoint returns the registry entry this client operates on.
	Endpoint() Endpoint

	// Get fetches one item by name.
	Get(ctx context.Context, name string, opts *RequestOptions) (*Object, error)

	// List fetches the collection.
	List(ctx context.Context, opts *RequestOptions) (*List, error)

	// Create submits a new item.
	Create(ctx context.Context, obj *Object, opts *RequestOptions) (*Object, error)

	// Update replaces the named item.
	Update(ctx context.Context, name string, obj *Object, opts *RequestOptions) (*Object, error)

	// Patch applies a partial update to the named item.
	Patch(ctx context.Context, name string, patch interface{}, opts *RequestOptions) (*Object, error)

	// Delete removes the named item.
	Delete(ctx context.Context, name string, opts *RequestOptions) error

	// Watch takes a snapshot of the collection (or the named item when name
	// is non-empty) and returns a session streaming changes from the
	// snapshot's resource version onward. The session is idle until Start.
	Watch(ctx context.Context, name string, opts *RequestOptions) (WatchSession, error)

	// Raw performs the verb without decoding the response, returning the
	// full envelope. The body, when non-nil, is JSON-encoded.
	Raw(ctx context.Context, verb Verb, name string, body interface{}, opts *RequestOptions) (*Envelope, error)
}

// NodesClient extends the node resource client with proxy access to the
// node's own endpoint through the API server.
type NodesClient interface {
	ResourceClient

	// Proxy issues a GET through the API server's proxy path to the named
	// node, e.g. path "healthz". The response is returned undecoded.
	Proxy(ctx context.Context, name string, path string) (*Envelope, error)
}

// ReplicationControllersClient extends the replication controller client
// with scaling.
type ReplicationControllersClient interface {
	ResourceClient

	// Scale reads the named controller, sets its desired replica count, and
	// writes it back. Returns the updated controller.
	Scale(ctx context.Context, name string, replicas int, opts *RequestOptions) (*Object, error)
}

// BuildConfigsClient extends the build config client with build
// instantiation.
type BuildConfigsClient interface {
	ResourceClient

	// Instantiate requests a new build from the named build config via its
	// instantiate subresource. Returns the created build.
	Instantiate(ctx context.Context, name string, req *BuildRequest, opts *RequestOptions) (*Object, error)
}

// BuildRequest is the payload posted to a build config's instantiate
// subresource.
type BuildRequest struct {
	TypeMeta `yaml:",inline"`

	Metadata ObjectMeta `json:"metadata" yaml:"metadata"`

	// TriggeredByCauses records why the build was requested.
	TriggeredByCauses []BuildTriggerCause `json:"triggeredBy,omitempty" yaml:"triggeredBy,omitempty"`
}

// BuildTriggerCause describes one reason a build was triggered.
type BuildTriggerCause struct {
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}
