package commands

import (
	"sync"
	"time"
)

// ConfigPersister implements the auth.TokenPersister interface, writing
// tokens obtained mid-session back to the CLI config file.
type ConfigPersister struct {
	mutex sync.Mutex
}

// NewConfigPersister creates a new config persister.
func NewConfigPersister() *ConfigPersister {
	return &ConfigPersister{}
}

// SaveToken records the token for the endpoint in the config file. Tokens for
// a different endpoint than the configured one are ignored.
func (p *ConfigPersister) SaveToken(endpoint, token string, expiresAt time.Time) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config := loadConfig()
	if config.Server != "" && config.Server != endpoint {
		return nil
	}

	config.Server = endpoint
	config.Token = token

	if expiresAt.IsZero() {
		config.TokenExpiresAt = nil
	} else {
		config.TokenExpiresAt = &expiresAt
	}

	return saveConfig(config)
}
