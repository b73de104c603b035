// Package models defines types shared across internal packages.
package models

import "time"

// Token endpoint authentication methods accepted at registration.
const (
	AuthMethodNone             = "none"
	AuthMethodClientSecretPost = "client_secret_post"
	CodeChallengeMethodS256    = "S256"
	GrantTypeAuthorizationCode = "authorization_code"
	ResponseTypeCode           = "code"
)

// Client represents a dynamically registered OAuth client.
type Client struct {
	ClientID                string    `json:"client_id"`
	ClientName              string    `json:"client_name,omitempty"`
	RedirectURIs            []string  `json:"redirect_uris"`
	TokenEndpointAuthMethod string    `json:"token_endpoint_auth_method"`
	GrantTypes              []string  `json:"grant_types"`
	ResponseTypes           []string  `json:"response_types"`
	Scope                   string    `json:"scope,omitempty"`
	SecretHash              string    `json:"secret_hash,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// HasRedirectURI reports whether uri is byte-identical to one of the
// client's registered redirect URIs.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}

	return false
}

// Connection is a tenant's stored configuration. Only the ciphertext is
// persisted; the plaintext never reaches disk.
type Connection struct {
	ID              string    `json:"id"`
	DisplayName     string    `json:"display_name"`
	EncryptedConfig string    `json:"encrypted_config"`
	ConfigVersion   int       `json:"config_version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AuthorizationCode is a pending, single-use, PKCE-bound code. The raw
// code is never stored, only its hash.
type AuthorizationCode struct {
	CodeHash            string     `json:"code_hash"`
	ConnectionID        string     `json:"connection_id"`
	ClientID            string     `json:"client_id"`
	RedirectURI         string     `json:"redirect_uri"`
	State               string     `json:"state,omitempty"`
	CodeChallenge       string     `json:"code_challenge"`
	CodeChallengeMethod string     `json:"code_challenge_method"`
	ExpiresAt           time.Time  `json:"expires_at"`
	UsedAt              *time.Time `json:"used_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// Expired reports whether the code is past its expiry at now.
func (ac *AuthorizationCode) Expired(now time.Time) bool {
	return !now.Before(ac.ExpiresAt)
}

// Session is a persisted bearer credential used in session token mode.
type Session struct {
	ID           string    `json:"id"`
	TokenHash    string    `json:"token_hash"`
	ConnectionID string    `json:"connection_id"`
	ClientID     string    `json:"client_id,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Revoked      bool      `json:"revoked"`
	CreatedAt    time.Time `json:"created_at"`
}

// APIKey is a user-bound API key. Persisted keyed by KeyHash so raw keys
// never reach disk.
type APIKey struct {
	ID           string     `json:"id"`
	ConnectionID string     `json:"connection_id"`
	KeyHash      string     `json:"key_hash"`
	CreatedIP    string     `json:"created_ip,omitempty"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Active reports whether the key has not been revoked.
func (ak *APIKey) Active() bool {
	return ak.RevokedAt == nil
}

// TenantConfig is the decrypted per-tenant configuration. Its keys are
// described by the connect field table.
type TenantConfig map[string]string
