package okapi

import (
	"context"
	"time"
)

// KubernetesResources provides access to the resource clients served under
// the "api" prefix.
type KubernetesResources interface {
	Pods() ResourceClient
	Services() ResourceClient
	ReplicationControllers() ReplicationControllersClient
	Nodes() NodesClient
	Events() ResourceClient
	Endpoints() ResourceClient
	Namespaces() ResourceClient
	Secrets() ResourceClient
	ResourceQuotas() ResourceClient
	LimitRanges() ResourceClient
}

// OriginResources provides access to the resource clients served under the
// "oapi" prefix.
type OriginResources interface {
	Builds() ResourceClient
	BuildConfigs() BuildConfigsClient
	DeploymentConfigs() ResourceClient
	ImageStreams() ResourceClient
	Routes() ResourceClient
	Projects() ResourceClient
	Users() ResourceClient
	OAuthAccessTokens() ResourceClient
}

// DiscoveryClient provides access to unversioned server endpoints.
type DiscoveryClient interface {
	// ServerVersion fetches the server's build information from /version.
	ServerVersion(ctx context.Context) (*VersionInfo, error)
}

type Client interface {
	KubernetesResources
	OriginResources
	DiscoveryClient

	// Resource returns a client for any registered resource by name,
	// including resources added through a custom Registry.
	Resource(name string) (ResourceClient, error)
}

// VersionInfo represents the server's /version response.
type VersionInfo struct {
	Major      string `json:"major"      yaml:"major"`
	Minor      string `json:"minor"      yaml:"minor"`
	GitVersion string `json:"gitVersion" yaml:"gitVersion"`
	GitCommit  string `json:"gitCommit"  yaml:"gitCommit"`
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building an okapi.Client.
//
// # Authentication precedence
//
// The following precedence is applied by the concrete client implementation
// (see pkg/oclient and internal/client):
//  1. AccessToken: if set, it is used directly as a static Bearer token.
//  2. AccessToken + Username/Password: the token is tried first; if the
//     server rejects it with 401, the client falls back to the OAuth
//     challenge exchange to obtain a fresh token.
//  3. Username/Password: performs the OAuth challenge exchange against the
//     authorize endpoint with the challenging client ID.
//  4. No credentials: requests are sent without authentication. This is not
//     an error; the server decides what anonymous callers may do.
//
// # Authorize URL discovery
//
// If credentials are configured and AuthorizeURL is empty, oclient.New
// discovers the authorization endpoint from the server's
// /.well-known/oauth-authorization-server document and falls back to
// "<endpoint>/oauth/authorize" when the document is unavailable.
//
// # Timeouts, retries, and TLS
//
// Per-request timeouts should generally be controlled via context passed to
// client methods; HTTPTimeout applies only when no context deadline is set.
// RetryMax controls transport-level retries for transient failures and
// defaults to 0: the only built-in retry is the single re-authentication
// attempt after a 401, plus watch-stream reconnection. SkipTLSVerify is only
// honored during endpoint discovery and only when the environment variable
// OKAPI_DEV_MODE is set to "true" or "1"; do not use it in production.
type Config struct {
	// Required fields
	// APIEndpoint: base URL for the API server (e.g., "https://openshift.example.com:8443").
	// oclient.New normalizes this value by trimming a trailing slash and
	// adding "https://" if no scheme is present.
	APIEndpoint string

	// Authentication options (provide one)
	// Username: account username for the OAuth challenge exchange.
	Username string
	// Password: account password for the OAuth challenge exchange.
	Password string
	// AccessToken: if set, used directly as a Bearer token. When combined
	// with Username/Password, the token is tried first, then the client
	// falls back to the challenge exchange if a 401 is encountered.
	AccessToken string
	// AuthorizeURL: full OAuth authorize endpoint. If empty and
	// authentication is required, oclient.New discovers it from the server
	// (preferred).
	AuthorizeURL string
	// ClientID: OAuth client ID presented during the challenge exchange.
	// Defaults to the server's challenging client.
	ClientID string
	// AllowInsecureAuth: permits the challenge exchange against a non-HTTPS
	// authorize endpoint. Without it, authentication over an insecure
	// scheme fails before any network call.
	AllowInsecureAuth bool
	// DiscardCredentials: clears Username/Password from memory after the
	// first successful exchange. Later 401s then surface to the caller
	// instead of triggering a new exchange.
	DiscardCredentials bool

	// API addressing defaults (overridable per call)
	// Version: API version used when a call does not override it.
	// Defaults to "v1". Valid values: v1beta1, v1beta2, v1beta3, v1.
	Version string
	// Namespace: namespace applied to namespaced resources when a call
	// does not override it.
	Namespace string

	// Optional configurations
	// HTTPTimeout: optional default HTTP timeout where supported. Most
	// client calls should rely on context timeouts; watch connections are
	// exempt from it.
	HTTPTimeout time.Duration
	// RetryMax: maximum transport-level retries for transient failures.
	// 0 disables them, which is the default.
	RetryMax int
	// RetryWaitMin: minimum backoff between retries. Applied when RetryMax > 0.
	RetryWaitMin time.Duration
	// RetryWaitMax: maximum backoff between retries. Applied when RetryMax > 0.
	RetryWaitMax time.Duration
	// Debug: enables verbose HTTP request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger used by the HTTP layer and helpers.
	Logger Logger
	// SkipTLSVerify: if true, TLS verification is skipped during endpoint
	// discovery only, and only when OKAPI_DEV_MODE is set. Intended for
	// local development.
	SkipTLSVerify bool
	// UserAgent: overrides the default User-Agent header sent by the client.
	UserAgent string
	// Registry: resource table consulted for path resolution and verb
	// gating. Nil selects the built-in table.
	Registry *Registry
	// Cache: optional response cache configuration for read operations.
	Cache *CacheConfig
}
