// Package secrets derives the server master key and encrypts tenant
// configuration at rest with it.
package secrets

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	autherrors "github.com/alexjbarnes/status-mcp/internal/errors"
)

// KeySize is the length in bytes of every derived key.
const KeySize = 32

// placeholderSecrets are values shipped in sample configs. They are
// accepted but logged, since anyone reading the docs knows them.
var placeholderSecrets = map[string]struct{}{
	"change-me":       {},
	"changeme":        {},
	"secret":          {},
	"default":         {},
	"dev-secret":      {},
	"your-secret-key": {},
}

// MasterKey derives symmetric keys from the operator-supplied secret.
type MasterKey struct {
	secret string
	logger *slog.Logger
}

// NewMasterKey wraps the operator secret. The secret may be empty; in
// that case HasKey reports false and derivation fails with ErrConfig.
func NewMasterKey(secret string, logger *slog.Logger) *MasterKey {
	return &MasterKey{secret: secret, logger: logger}
}

// HasKey reports whether a non-blank secret is configured.
func (m *MasterKey) HasKey() bool {
	return strings.TrimSpace(m.secret) != ""
}

// DeriveKeyBytes returns the 32-byte key. A secret of exactly 64 hex
// characters (after trimming) is decoded directly; anything else is
// treated as a passphrase and hashed with SHA-256.
func (m *MasterKey) DeriveKeyBytes() ([]byte, error) {
	secret := strings.TrimSpace(m.secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: MASTER_KEY is not set", autherrors.ErrConfig)
	}

	if _, ok := placeholderSecrets[strings.ToLower(secret)]; ok && m.logger != nil {
		m.logger.Warn("MASTER_KEY is a known placeholder value; generate a random secret with `status-mcp gen-secret`")
	}

	if len(secret) == 2*KeySize {
		if raw, err := hex.DecodeString(secret); err == nil {
			return raw, nil
		}
	}

	sum := sha256.Sum256([]byte(secret))

	return sum[:], nil
}

// LegacyKeyBytes returns the key used before derivation was
// standardised: the raw secret right-padded with '0' or truncated to
// 32 bytes. Only the cipher's decrypt fallback uses it.
func (m *MasterKey) LegacyKeyBytes() ([]byte, error) {
	if !m.HasKey() {
		return nil, fmt.Errorf("%w: MASTER_KEY is not set", autherrors.ErrConfig)
	}

	key := []byte(m.secret)
	if len(key) >= KeySize {
		return key[:KeySize], nil
	}

	padded := make([]byte, KeySize)
	copy(padded, key)

	for i := len(key); i < KeySize; i++ {
		padded[i] = '0'
	}

	return padded, nil
}
