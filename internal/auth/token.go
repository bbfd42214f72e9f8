package auth

import (
	"context"
	"sync"
	"time"

	"github.com/fivetwenty-io/okapi/internal/constants"
)

// TokenManager supplies bearer tokens for API requests. Implementations
// decide how tokens are obtained; callers only ask, invalidate, and replace.
type TokenManager interface {
	// GetToken returns a token for the Authorization header. An empty token
	// with a nil error means the request proceeds unauthenticated.
	GetToken(ctx context.Context) (string, error)
	// Invalidate discards the cached token so the next GetToken must obtain
	// a fresh one.
	Invalidate()
	// SetToken replaces the cached token.
	SetToken(token string, expiresAt time.Time)
}

// Token holds a bearer token obtained from the authorization server.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
	ExpiresAt   time.Time
}

// Valid reports whether the token exists and is not about to expire. A zero
// ExpiresAt means the token never expires. Tokens within the expiration
// buffer count as invalid so they are replaced before the server rejects
// them mid-request.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(constants.TokenExpirationBuffer).Before(t.ExpiresAt)
}

// TokenStore is a concurrency-safe holder for the current token.
type TokenStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the current token, or nil when none is stored.
func (s *TokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set replaces the current token.
func (s *TokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
}

// Clear removes the current token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
}
