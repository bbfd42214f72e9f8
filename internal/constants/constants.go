package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts. Ordinary API requests carry no default
// timeout; callers bound them through the request context or an explicit
// client timeout.
const (
	// AuthHTTPTimeout bounds the OAuth challenge exchange.
	AuthHTTPTimeout = 15 * time.Second

	// DiscoveryTimeout bounds endpoint discovery requests.
	DiscoveryTimeout = 10 * time.Second
)

// Retry limits for the transport layer. Transient-failure retry is off by
// default; the only built-in recovery is 401 re-authentication and watch
// reconnection.
const (
	// DefaultRetryMax is the default maximum number of transport retries.
	DefaultRetryMax = 0

	// DefaultRetryWaitMin is the minimum wait between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Authentication constants.
const (
	// TokenExpirationBuffer is the buffer time before token expiration.
	TokenExpirationBuffer = 30 * time.Second

	// ChallengingClientID is the OAuth client ID that requests challenge
	// authentication from the server.
	ChallengingClientID = "openshift-challenging-client"
)

// Watch stream constants.
const (
	// WatchEventBufferSize is the event channel capacity of a watch session.
	WatchEventBufferSize = 100

	// MaxFrameBytes bounds the pending buffer for one watch frame. A frame
	// that never completes within this bound is reported as an error
	// instead of buffering forever.
	MaxFrameBytes = 4 * 1024 * 1024

	// StreamReadBufferSize is the chunk size for reading watch streams.
	StreamReadBufferSize = 32 * 1024
)

// Concurrency and batching limits.
const (
	// DefaultBatchConcurrency limits concurrent batch operations.
	DefaultBatchConcurrency = 5

	// DefaultBatchTimeout bounds one operation within a batch so a stuck
	// call cannot stall the whole run.
	DefaultBatchTimeout = 30 * time.Second
)

// Pagination limits.
const (
	// DefaultPageSize is the item limit requested per list page.
	DefaultPageSize = 500
)

// Cache constants.
const (
	// DefaultCacheSize is the default cache size limit.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is the default cache time-to-live.
	DefaultCacheTTL = 1 * time.Minute

	// DefaultNATSBucket is the key-value bucket name for the NATS cache.
	DefaultNATSBucket = "okapi_cache"

	// NATSConnectTimeout bounds NATS connection establishment.
	NATSConnectTimeout = 5 * time.Second
)

// API addressing defaults.
const (
	// DefaultNamespace is used for namespaced resources when no namespace
	// is configured.
	DefaultNamespace = "default"

	// DefaultUserAgent identifies the client in request headers.
	DefaultUserAgent = "okapi-go-client"
)

// Output format constants.
const (
	// FormatTable for tabular output.
	FormatTable = "table"

	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"
)
