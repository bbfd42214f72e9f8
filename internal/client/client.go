package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/okapi/internal/auth"
	"github.com/fivetwenty-io/okapi/internal/constants"
	"github.com/fivetwenty-io/okapi/internal/http"
	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

// Client implements the okapi.Client interface.
type Client struct {
	httpClient   *http.Client
	tokenManager auth.TokenManager
	baseURL      string
	logger       okapi.Logger
	registry     *okapi.Registry
	version      string
	namespace    string

	interceptors *okapi.InterceptorChain
	cacheManager *okapi.CacheManager

	// Resource clients
	pods                   okapi.ResourceClient
	services               okapi.ResourceClient
	replicationControllers okapi.ReplicationControllersClient
	nodes                  okapi.NodesClient
	events                 okapi.ResourceClient
	endpoints              okapi.ResourceClient
	namespaces             okapi.ResourceClient
	secrets                okapi.ResourceClient
	resourceQuotas         okapi.ResourceClient
	limitRanges            okapi.ResourceClient
	builds                 okapi.ResourceClient
	buildConfigs           okapi.BuildConfigsClient
	deploymentConfigs      okapi.ResourceClient
	imageStreams           okapi.ResourceClient
	routes                 okapi.ResourceClient
	projects               okapi.ResourceClient
	users                  okapi.ResourceClient
	oauthAccessTokens      okapi.ResourceClient
}

// createTokenManager creates appropriate token manager based on config.
func createTokenManager(config *okapi.Config) auth.TokenManager {
	if config.AccessToken != "" && config.Username != "" && config.Password != "" {
		return createFallbackTokenManager(config)
	}

	if config.AccessToken != "" {
		return &staticTokenManager{token: config.AccessToken}
	}

	if config.Username != "" && config.Password != "" {
		return createChallengeTokenManager(config)
	}

	return nil // No authentication
}

// createFallbackTokenManager creates a manager that serves the configured
// token until the server rejects it, then switches to the challenge exchange.
func createFallbackTokenManager(config *okapi.Config) auth.TokenManager {
	return &fallbackTokenManager{
		staticToken:      config.AccessToken,
		challengeManager: createChallengeTokenManager(config),
	}
}

// createChallengeTokenManager creates a challenge token manager from config.
func createChallengeTokenManager(config *okapi.Config) auth.TokenManager {
	return auth.NewChallengeTokenManager(&auth.ChallengeConfig{
		AuthorizeURL:       getAuthorizeURL(config),
		ClientID:           config.ClientID,
		Username:           config.Username,
		Password:           config.Password,
		AllowInsecure:      config.AllowInsecureAuth,
		DiscardCredentials: config.DiscardCredentials,
	})
}

// getAuthorizeURL returns the authorize URL from config or fallback.
func getAuthorizeURL(config *okapi.Config) string {
	if config.AuthorizeURL != "" {
		return config.AuthorizeURL
	}

	return config.APIEndpoint + "/oauth/authorize" // Fallback, but should be discovered
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *okapi.Config) []http.Option {
	var httpOpts []http.Option

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(&loggerAdapter{logger: config.Logger}))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.HTTPTimeout))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, http.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	return httpOpts
}

func New(config *okapi.Config) (*Client, error) {
	if config == nil {
		return nil, okapi.ErrConfigRequired
	}

	if config.APIEndpoint == "" {
		return nil, okapi.ErrAPIEndpointRequired
	}

	version, err := defaultVersion(config)
	if err != nil {
		return nil, err
	}

	// Create token manager based on available credentials
	tokenManager := createTokenManager(config)

	// Create HTTP client options
	httpOpts := createHTTPClientOptions(config)

	// Create HTTP client
	httpClient := http.NewClient(config.APIEndpoint, tokenManager, httpOpts...)

	registry := config.Registry
	if registry == nil {
		registry = okapi.NewRegistry()
	}

	client := &Client{
		httpClient:   httpClient,
		tokenManager: tokenManager,
		baseURL:      config.APIEndpoint,
		logger:       config.Logger,
		registry:     registry,
		version:      version,
		namespace:    config.Namespace,
	}

	err = client.configureCache(config.Cache)
	if err != nil {
		return nil, err
	}

	// Initialize resource clients
	client.initializeResourceClients()

	return client, nil
}

// NewWithTokenManager creates a new API client with a custom token manager.
func NewWithTokenManager(config *okapi.Config, tokenManager auth.TokenManager) (*Client, error) {
	if config == nil {
		return nil, okapi.ErrConfigRequired
	}

	if config.APIEndpoint == "" {
		return nil, okapi.ErrAPIEndpointRequired
	}

	version, err := defaultVersion(config)
	if err != nil {
		return nil, err
	}

	// Create HTTP client with the provided token manager
	httpOpts := createHTTPClientOptions(config)
	httpClient := http.NewClient(config.APIEndpoint, tokenManager, httpOpts...)

	registry := config.Registry
	if registry == nil {
		registry = okapi.NewRegistry()
	}

	client := &Client{
		httpClient:   httpClient,
		tokenManager: tokenManager,
		baseURL:      config.APIEndpoint,
		logger:       config.Logger,
		registry:     registry,
		version:      version,
		namespace:    config.Namespace,
	}

	err = client.configureCache(config.Cache)
	if err != nil {
		return nil, err
	}

	// Initialize resource clients
	client.initializeResourceClients()

	return client, nil
}

// defaultVersion validates the configured API version, applying the current
// one when the config leaves it empty.
func defaultVersion(config *okapi.Config) (string, error) {
	if config.Version == "" {
		return okapi.VersionV1, nil
	}

	for _, valid := range okapi.ValidVersions() {
		if config.Version == valid {
			return config.Version, nil
		}
	}

	return "", &okapi.VersionError{Version: config.Version, Valid: okapi.ValidVersions()}
}

// configureCache installs the read-through response cache when configured.
func (c *Client) configureCache(cacheConfig *okapi.CacheConfig) error {
	if cacheConfig == nil || cacheConfig.Type == okapi.CacheTypeNone {
		return nil
	}

	cache, err := okapi.NewCacheFromConfig(cacheConfig)
	if err != nil {
		return fmt.Errorf("configuring response cache: %w", err)
	}

	options := cacheConfig.Options
	if options == nil {
		options = okapi.DefaultCacheOptions()
	}

	manager := okapi.NewCacheManager(cache, options.Policy)
	chain := okapi.NewInterceptorChain()
	okapi.ConfigureSmartCache(chain, manager, nil)

	c.cacheManager = manager
	c.interceptors = chain

	return nil
}

// GetTokenManager returns the token manager for this client.
func (c *Client) GetTokenManager() auth.TokenManager {
	return c.tokenManager
}

// GetToken returns the current access token from the token manager.
func (c *Client) GetToken(ctx context.Context) (string, error) {
	if c.tokenManager == nil {
		return "", okapi.ErrNoTokenManager
	}

	token, err := c.tokenManager.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}

	return token, nil
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// ServerVersion implements okapi.Client.ServerVersion.
func (c *Client) ServerVersion(ctx context.Context) (*okapi.VersionInfo, error) {
	envelope, err := c.execute(ctx, "GET", "/version", nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting server version: %w", err)
	}

	var info okapi.VersionInfo

	err = json.Unmarshal(envelope.Body, &info)
	if err != nil {
		return nil, fmt.Errorf("parsing version response: %w", err)
	}

	return &info, nil
}

// Resource implements okapi.Client.Resource.
func (c *Client) Resource(name string) (okapi.ResourceClient, error) {
	endpoint, err := c.registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	return &resourceClient{client: c, endpoint: endpoint}, nil
}

// Resource client accessors

// Pods implements okapi.Client.Pods.
func (c *Client) Pods() okapi.ResourceClient {
	return c.pods
}

// Services implements okapi.Client.Services.
func (c *Client) Services() okapi.ResourceClient {
	return c.services
}

// ReplicationControllers implements okapi.Client.ReplicationControllers.
func (c *Client) ReplicationControllers() okapi.ReplicationControllersClient {
	return c.replicationControllers
}

// Nodes implements okapi.Client.Nodes.
func (c *Client) Nodes() okapi.NodesClient {
	return c.nodes
}

// Events implements okapi.Client.Events.
func (c *Client) Events() okapi.ResourceClient {
	return c.events
}

// Endpoints implements okapi.Client.Endpoints.
func (c *Client) Endpoints() okapi.ResourceClient {
	return c.endpoints
}

// Namespaces implements okapi.Client.Namespaces.
func (c *Client) Namespaces() okapi.ResourceClient {
	return c.namespaces
}

// Secrets implements okapi.Client.Secrets.
func (c *Client) Secrets() okapi.ResourceClient {
	return c.secrets
}

// ResourceQuotas implements okapi.Client.ResourceQuotas.
func (c *Client) ResourceQuotas() okapi.ResourceClient {
	return c.resourceQuotas
}

// LimitRanges implements okapi.Client.LimitRanges.
func (c *Client) LimitRanges() okapi.ResourceClient {
	return c.limitRanges
}

// Builds implements okapi.Client.Builds.
func (c *Client) Builds() okapi.ResourceClient {
	return c.builds
}

// BuildConfigs implements okapi.Client.BuildConfigs.
func (c *Client) BuildConfigs() okapi.BuildConfigsClient {
	return c.buildConfigs
}

// DeploymentConfigs implements okapi.Client.DeploymentConfigs.
func (c *Client) DeploymentConfigs() okapi.ResourceClient {
	return c.deploymentConfigs
}

// ImageStreams implements okapi.Client.ImageStreams.
func (c *Client) ImageStreams() okapi.ResourceClient {
	return c.imageStreams
}

// Routes implements okapi.Client.Routes.
func (c *Client) Routes() okapi.ResourceClient {
	return c.routes
}

// Projects implements okapi.Client.Projects.
func (c *Client) Projects() okapi.ResourceClient {
	return c.projects
}

// Users implements okapi.Client.Users.
func (c *Client) Users() okapi.ResourceClient {
	return c.users
}

// OAuthAccessTokens implements okapi.Client.OAuthAccessTokens.
func (c *Client) OAuthAccessTokens() okapi.ResourceClient {
	return c.oauthAccessTokens
}

// initializeResourceClients initializes all resource-specific clients.
// Endpoints missing from a custom registry fall back to the built-in table so
// the typed accessors always work.
func (c *Client) initializeResourceClients() {
	builtin := okapi.NewRegistry()

	lookup := func(name string) *resourceClient {
		endpoint, err := c.registry.Lookup(name)
		if err != nil {
			endpoint, _ = builtin.Lookup(name)
		}

		return &resourceClient{client: c, endpoint: endpoint}
	}

	c.pods = lookup("pods")
	c.services = lookup("services")
	c.replicationControllers = &replicationControllersClient{resourceClient: lookup("replicationcontrollers")}
	c.nodes = &nodesClient{resourceClient: lookup("nodes")}
	c.events = lookup("events")
	c.endpoints = lookup("endpoints")
	c.namespaces = lookup("namespaces")
	c.secrets = lookup("secrets")
	c.resourceQuotas = lookup("resourcequotas")
	c.limitRanges = lookup("limitranges")
	c.builds = lookup("builds")
	c.buildConfigs = &buildConfigsClient{resourceClient: lookup("buildconfigs")}
	c.deploymentConfigs = lookup("deploymentconfigs")
	c.imageStreams = lookup("imagestreams")
	c.routes = lookup("routes")
	c.projects = lookup("projects")
	c.users = lookup("users")
	c.oauthAccessTokens = lookup("oauthaccesstokens")
}

// staticTokenManager serves a fixed token. Invalidation is permanent: there
// are no credentials to derive a replacement from.
type staticTokenManager struct {
	mu          sync.Mutex
	token       string
	invalidated bool
}

func (m *staticTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.invalidated {
		return "", okapi.ErrStaticTokenInvalidated
	}

	return m.token, nil
}

func (m *staticTokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.invalidated = true
}

func (m *staticTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
	m.invalidated = false
}

// fallbackTokenManager serves the configured token until it is invalidated,
// then falls back to the challenge exchange.
type fallbackTokenManager struct {
	mu               sync.Mutex
	staticToken      string
	challengeManager auth.TokenManager
	usingChallenge   bool
}

func (m *fallbackTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	usingChallenge := m.usingChallenge
	m.mu.Unlock()

	// Until the static token fails we never spend the credentials.
	if !usingChallenge {
		return m.staticToken, nil
	}

	token, err := m.challengeManager.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get challenge token: %w", err)
	}

	return token, nil
}

func (m *fallbackTokenManager) Invalidate() {
	m.mu.Lock()
	m.usingChallenge = true
	m.mu.Unlock()

	m.challengeManager.Invalidate()
}

func (m *fallbackTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mu.Lock()
	m.usingChallenge = true
	m.mu.Unlock()

	m.challengeManager.SetToken(token, expiresAt)
}

// loggerAdapter adapts okapi.Logger to http.Logger.
type loggerAdapter struct {
	logger okapi.Logger
}

func (l *loggerAdapter) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, fields)
}

func (l *loggerAdapter) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, fields)
}

func (l *loggerAdapter) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, fields)
}

func (l *loggerAdapter) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, fields)
}
