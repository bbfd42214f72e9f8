// Package oclient provides the main entry point for creating OpenShift API clients
package oclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/fivetwenty-io/okapi/internal/client"
	"github.com/fivetwenty-io/okapi/internal/constants"
	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

// discoveryPath is the authorization server metadata document (RFC 8414).
const discoveryPath = "/.well-known/oauth-authorization-server"

// New creates a new API client with automatic authorize-endpoint discovery.
func New(ctx context.Context, config *okapi.Config) (okapi.Client, error) {
	if config == nil {
		return nil, okapi.ErrConfigRequired
	}

	if config.APIEndpoint == "" {
		return nil, okapi.ErrAPIEndpointRequired
	}

	// Normalize API endpoint
	apiEndpoint := strings.TrimSuffix(config.APIEndpoint, "/")
	if !strings.HasPrefix(apiEndpoint, "http://") && !strings.HasPrefix(apiEndpoint, "https://") {
		apiEndpoint = "https://" + apiEndpoint
	}

	config.APIEndpoint = apiEndpoint

	// If credentials could trigger a challenge exchange and no authorize URL
	// was given, discover it from the server metadata.
	if needsAuth(config) && config.AuthorizeURL == "" {
		authorizeURL, err := discoverAuthorizeEndpoint(ctx, apiEndpoint, config.SkipTLSVerify)
		if err != nil {
			return nil, fmt.Errorf("discovering authorize endpoint: %w", err)
		}

		config.AuthorizeURL = authorizeURL
	}

	// Use the internal client implementation
	apiClient, err := client.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return apiClient, nil
}

// needsAuth checks if the config can reach the challenge exchange.
func needsAuth(config *okapi.Config) bool {
	return config.Username != "" && config.Password != ""
}

// isDevelopmentEnvironment checks if we're in a development environment.
func isDevelopmentEnvironment() bool {
	devMode := os.Getenv("OKAPI_DEV_MODE")

	return devMode == "true" || devMode == "1"
}

// createDiscoveryHTTPClient creates an HTTP client for authorize-endpoint discovery.
func createDiscoveryHTTPClient(skipTLS bool) (*http.Client, error) {
	httpClient := &http.Client{
		Timeout: constants.DiscoveryTimeout,
	}

	if skipTLS {
		// Only allow insecure TLS in explicit development environments
		if isDevelopmentEnvironment() {
			httpClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- Protected by development environment check above
			}
		} else {
			return nil, fmt.Errorf("%w (set OKAPI_DEV_MODE=true)", okapi.ErrSkipTLSOnlyInDev)
		}
	}

	return httpClient, nil
}

// fetchAuthServerMetadata fetches the authorization server metadata document
// and returns the authorize endpoint it names.
func fetchAuthServerMetadata(ctx context.Context, httpClient *http.Client, apiEndpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiEndpoint+discoveryPath, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("getting authorization server metadata: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			// Log error but don't return it to avoid masking original error
			fmt.Fprintf(os.Stderr, "Warning: failed to close response body: %v\n", err)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		// Older servers predate the metadata document; the authorize endpoint
		// lives at its conventional location.
		return apiEndpoint + "/oauth/authorize", nil
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return "", fmt.Errorf("%w with status %d: %s", okapi.ErrDiscoveryFailed, resp.StatusCode, string(body))
	}

	var metadata struct {
		Issuer                string `json:"issuer"`
		AuthorizationEndpoint string `json:"authorization_endpoint"`
		TokenEndpoint         string `json:"token_endpoint"`
	}

	err = json.NewDecoder(resp.Body).Decode(&metadata)
	if err != nil {
		return "", fmt.Errorf("parsing authorization server metadata: %w", err)
	}

	if metadata.AuthorizationEndpoint == "" {
		return "", okapi.ErrNoAuthorizeEndpoint
	}

	return metadata.AuthorizationEndpoint, nil
}

func discoverAuthorizeEndpoint(ctx context.Context, apiEndpoint string, skipTLS bool) (string, error) {
	httpClient, err := createDiscoveryHTTPClient(skipTLS)
	if err != nil {
		return "", err
	}

	return fetchAuthServerMetadata(ctx, httpClient, apiEndpoint)
}

// NewWithEndpoint creates a new client with just an API endpoint (no auth).
func NewWithEndpoint(ctx context.Context, endpoint string) (okapi.Client, error) {
	return New(ctx, &okapi.Config{
		APIEndpoint: endpoint,
	})
}

// NewWithToken creates a new client with an API endpoint and access token.
func NewWithToken(ctx context.Context, endpoint, token string) (okapi.Client, error) {
	return New(ctx, &okapi.Config{
		APIEndpoint: endpoint,
		AccessToken: token,
	})
}

// NewWithPassword creates a new client using username/password authentication.
func NewWithPassword(ctx context.Context, endpoint, username, password string) (okapi.Client, error) {
	return New(ctx, &okapi.Config{
		APIEndpoint: endpoint,
		Username:    username,
		Password:    password,
	})
}

// NewWithFallback creates a new client that presents an existing token and
// falls back to a username/password challenge exchange when the server
// rejects it.
func NewWithFallback(ctx context.Context, endpoint, token, username, password string) (okapi.Client, error) {
	return New(ctx, &okapi.Config{
		APIEndpoint: endpoint,
		AccessToken: token,
		Username:    username,
		Password:    password,
	})
}
