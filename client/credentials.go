// Package client is a Go client for an authcore server. It registers and logs
// in accounts, keeps the issued token per server in a CredentialStore and
// attaches it to outgoing requests.
package client

import (
	"time"
)

// ServerCredential holds authentication info for a single server
type ServerCredential struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	UserEmail   string    `json:"user_email,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsExpired returns true if the access token has expired
func (c *ServerCredential) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// ExpiresWithin returns true if the token expires within the given duration.
// Tokens cannot be refreshed, so callers use this to prompt for a new login.
func (c *ServerCredential) ExpiresWithin(d time.Duration) bool {
	return time.Now().Add(d).After(c.ExpiresAt)
}

// CredentialStore defines the interface for storing and retrieving credentials
type CredentialStore interface {
	// GetCredential retrieves a credential for a server URL
	// Returns nil, nil if no credential exists for the server
	GetCredential(serverURL string) (*ServerCredential, error)

	// SetCredential stores a credential for a server URL
	SetCredential(serverURL string, cred *ServerCredential) error

	// RemoveCredential removes a credential for a server URL
	RemoveCredential(serverURL string) error

	// ListServers returns all server URLs with stored credentials
	ListServers() ([]string, error)

	// Save persists any pending changes (for stores that batch writes)
	Save() error
}
