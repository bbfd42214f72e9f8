package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrNoTokenPersister = errors.New("no token persister configured")
)

// TokenPersister saves tokens obtained during a session so later invocations
// can reuse them without re-entering credentials.
type TokenPersister interface {
	SaveToken(endpoint, token string, expiresAt time.Time) error
}

// PersistingTokenManager wraps a ChallengeTokenManager and writes every newly
// obtained token through the persister. The CLI uses it to keep the config
// file in step with tokens acquired mid-session.
type PersistingTokenManager struct {
	manager    *ChallengeTokenManager
	persister  TokenPersister
	endpoint   string
	mutex      sync.Mutex
	lastToken  string
	lastExpiry time.Time
}

// NewPersistingTokenManager creates a persisting wrapper around manager. An
// initial token, typically read back from the config file, seeds the manager
// so the exchange only runs once it expires.
func NewPersistingTokenManager(manager *ChallengeTokenManager, persister TokenPersister, endpoint, initialToken string, initialExpiry time.Time) *PersistingTokenManager {
	if initialToken != "" {
		manager.SetToken(initialToken, initialExpiry)
	}

	return &PersistingTokenManager{
		manager:    manager,
		persister:  persister,
		endpoint:   endpoint,
		lastToken:  initialToken,
		lastExpiry: initialExpiry,
	}
}

// GetToken returns a valid access token, persisting it when the underlying
// manager handed back a different one than last seen.
func (m *PersistingTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	token, err := m.manager.GetToken(ctx)
	if err != nil {
		return "", err
	}

	current := m.manager.store.Get()
	if current != nil && (current.AccessToken != m.lastToken || !current.ExpiresAt.Equal(m.lastExpiry)) {
		m.lastToken = current.AccessToken
		m.lastExpiry = current.ExpiresAt

		// Persist off the request path; a slow disk must not stall API calls.
		go func(saved *Token) {
			if persistErr := m.persistToken(saved); persistErr != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Warning: failed to persist token: %v\n", persistErr)
			}
		}(current)
	}

	return token, nil
}

// Invalidate discards the cached token in the underlying manager.
func (m *PersistingTokenManager) Invalidate() {
	m.manager.Invalidate()
}

// SetToken manually sets the access token and records it as already seen so
// it is not persisted again.
func (m *PersistingTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.manager.SetToken(token, expiresAt)
	m.lastToken = token
	m.lastExpiry = expiresAt
}

// TokenExpiringSoon reports whether the stored token expires within the
// given duration. A missing token counts as expiring.
func (m *PersistingTokenManager) TokenExpiringSoon(within time.Duration) bool {
	token := m.manager.store.Get()
	if token == nil {
		return true
	}

	if token.ExpiresAt.IsZero() {
		return false
	}

	return time.Now().Add(within).After(token.ExpiresAt)
}

// TokenExpiry returns the stored token's expiration time, zero when no token
// is stored.
func (m *PersistingTokenManager) TokenExpiry() time.Time {
	token := m.manager.store.Get()
	if token == nil {
		return time.Time{}
	}

	return token.ExpiresAt
}

// persistToken saves the token through the configured persister.
func (m *PersistingTokenManager) persistToken(token *Token) error {
	if m.persister == nil {
		return ErrNoTokenPersister
	}

	err := m.persister.SaveToken(m.endpoint, token.AccessToken, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}
