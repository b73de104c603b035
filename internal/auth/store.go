// Package auth implements the authorization layer: dynamic client
// registration, the connect (authorization code + PKCE) flow, token
// issuance and verification, user-bound API keys, and the credential
// resolution middleware that guards protected endpoints.
package auth

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

import (
	"time"

	"github.com/alexjbarnes/status-mcp/internal/models"
)

// ClientStore persists registered clients. SaveClient refuses a new
// client with state.ErrClientLimit once maxClients are stored; zero
// means no cap.
type ClientStore interface {
	SaveClient(c models.Client, maxClients int) error
	GetClient(clientID string) (*models.Client, error)
}

// CodeStore persists connections and their authorization codes.
type CodeStore interface {
	SaveConnectionWithCode(c models.Connection, ac models.AuthorizationCode) error
	RedeemCode(codeHash string, now time.Time, check func(*models.AuthorizationCode) error) (*models.AuthorizationCode, error)
}

// ConnectionStore loads and deletes connections by ID. Deleting a
// connection also deletes its authorization codes.
type ConnectionStore interface {
	GetConnection(id string) (*models.Connection, error)
	DeleteConnection(id string) error
}

// SessionStore persists sessions for the session token mode.
type SessionStore interface {
	SaveSession(sess models.Session) error
	GetSession(id string) (*models.Session, error)
	RevokeSession(id string) error
}

// APIKeyStore persists user-bound API keys.
type APIKeyStore interface {
	SaveConnectionWithAPIKey(c models.Connection, ak models.APIKey) error
	GetAPIKey(keyHash string) (*models.APIKey, error)
	TouchAPIKey(keyHash string, at time.Time) error
	RevokeAPIKey(id string, at time.Time) (bool, error)
	RevokeInactiveAPIKeys(cutoff, at time.Time) (int, error)
}

// ConfigCipher seals and opens tenant configuration.
type ConfigCipher interface {
	Encrypt(cfg models.TenantConfig) (string, error)
	Decrypt(blob string) (models.TenantConfig, error)
	Ready() bool
}
