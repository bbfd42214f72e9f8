package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/fivetwenty-io/okapi/internal/constants"
	"github.com/fivetwenty-io/okapi/pkg/okapi"
	"github.com/google/uuid"
)

// Static errors for err113 compliance.
var (
	ErrChallengeFailed = errors.New("challenge authorization failed")
)

// ChallengeConfig holds the settings for the browserless token exchange
// against the OAuth authorize endpoint.
type ChallengeConfig struct {
	// AuthorizeURL is the authorize endpoint, for example
	// https://openshift.example.com/oauth/authorize.
	AuthorizeURL string
	// ClientID defaults to the challenging client the server hands implicit
	// tokens to.
	ClientID string
	Username string
	Password string
	// AccessToken seeds the manager with an existing token. The exchange
	// only runs once that token is gone or expired.
	AccessToken string
	// AllowInsecure permits the exchange over plain http. Credentials travel
	// in an Authorization header, so this is refused by default.
	AllowInsecure bool
	// DiscardCredentials drops the username and password after the first
	// successful exchange. A later 401 then surfaces to the caller instead
	// of triggering a new exchange.
	DiscardCredentials bool
}

// ChallengeTokenManager obtains tokens by issuing a challenge request to the
// authorize endpoint and reading the implicit-grant token off the redirect
// it answers with. No browser is involved.
type ChallengeTokenManager struct {
	config     *ChallengeConfig
	store      *TokenStore
	httpClient *http.Client
	mu         sync.Mutex
}

// NewChallengeTokenManager creates a token manager for the challenge flow.
func NewChallengeTokenManager(config *ChallengeConfig) *ChallengeTokenManager {
	if config.ClientID == "" {
		config.ClientID = constants.ChallengingClientID
	}

	manager := &ChallengeTokenManager{
		config: config,
		store:  NewTokenStore(),
		httpClient: &http.Client{
			Timeout: constants.AuthHTTPTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// The token rides on the redirect itself; never follow it.
				return http.ErrUseLastResponse
			},
		},
	}

	if config.AccessToken != "" {
		manager.store.Set(&Token{
			AccessToken: config.AccessToken,
			TokenType:   "bearer",
		})
	}

	return manager
}

// GetToken returns a valid access token, running the challenge exchange when
// the stored token is missing or expired and credentials are available.
// Without credentials the stored token is returned as-is, possibly empty;
// deciding what an unauthenticated request means is the caller's business.
func (m *ChallengeTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if token := m.store.Get(); token.Valid() {
		return token.AccessToken, nil
	}

	if m.config.Username == "" || m.config.Password == "" {
		if token := m.store.Get(); token != nil {
			return token.AccessToken, nil
		}

		return "", nil
	}

	token, err := m.requestToken(ctx)
	if err != nil {
		// Keep whatever was stored; a failed exchange must not destroy a
		// token the caller may still want to present.
		return "", err
	}

	m.store.Set(token)

	if m.config.DiscardCredentials {
		m.config.Username = ""
		m.config.Password = ""
	}

	return token.AccessToken, nil
}

// Invalidate discards the cached token. The next GetToken runs a fresh
// exchange if credentials are still available.
func (m *ChallengeTokenManager) Invalidate() {
	m.store.Clear()
}

// SetToken replaces the cached token.
func (m *ChallengeTokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

// requestToken performs the challenge exchange. The authorize endpoint is
// asked for an implicit token with basic-auth credentials attached; it
// answers with a redirect whose fragment carries the token.
func (m *ChallengeTokenManager) requestToken(ctx context.Context) (*Token, error) {
	if m.config.AuthorizeURL == "" {
		return nil, okapi.ErrNoAuthorizeEndpoint
	}

	authorizeURL, err := url.Parse(m.config.AuthorizeURL)
	if err != nil {
		return nil, fmt.Errorf("parsing authorize URL: %w", err)
	}

	// Refuse to put credentials on the wire in the clear. This check runs
	// before any network activity.
	if authorizeURL.Scheme != "https" && !m.config.AllowInsecure {
		return nil, fmt.Errorf("%w: %s", okapi.ErrInsecureAuthEndpoint, authorizeURL.Scheme)
	}

	query := authorizeURL.Query()
	query.Set("client_id", m.config.ClientID)
	query.Set("response_type", "token")
	authorizeURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authorizeURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating authorize request: %w", err)
	}

	req.SetBasicAuth(m.config.Username, m.config.Password)
	req.Header.Set("X-CSRF-Token", uuid.NewString())

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting token: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		// Credential values, usernames included, stay out of error context.
		return nil, fmt.Errorf("%w: server rejected credentials (status %d)",
			ErrChallengeFailed, resp.StatusCode)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, &okapi.TokenParseError{
			Detail: fmt.Sprintf("authorize response (status %d) carried no Location header", resp.StatusCode),
		}
	}

	return parseTokenFromLocation(location)
}

// parseTokenFromLocation extracts the implicit-grant token from the redirect
// target. The token travels in the URL fragment, not the query.
func parseTokenFromLocation(location string) (*Token, error) {
	redirect, err := url.Parse(location)
	if err != nil {
		return nil, &okapi.TokenParseError{Detail: "redirect location is not a valid URL"}
	}

	fragment, err := url.ParseQuery(redirect.Fragment)
	if err != nil {
		return nil, &okapi.TokenParseError{Detail: "redirect fragment is not parseable"}
	}

	accessToken := fragment.Get("access_token")
	if accessToken == "" {
		return nil, &okapi.TokenParseError{Detail: "redirect fragment carries no access_token"}
	}

	token := &Token{
		AccessToken: accessToken,
		TokenType:   "bearer",
	}

	if tokenType := fragment.Get("token_type"); tokenType != "" {
		token.TokenType = tokenType
	}

	if raw := fragment.Get("expires_in"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			token.ExpiresIn = seconds
			token.ExpiresAt = time.Now().Add(time.Duration(seconds) * time.Second)
		}
	}

	return token, nil
}
