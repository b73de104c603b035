package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	autherrors "github.com/alexjbarnes/status-mcp/internal/errors"
	"github.com/alexjbarnes/status-mcp/internal/models"
)

// Source is where a candidate credential was found.
type Source int

const (
	SourceBearer Source = iota + 1
	SourceHeader
	SourceQuery
)

func (s Source) String() string {
	switch s {
	case SourceBearer:
		return "authorization"
	case SourceHeader:
		return "x-api-key"
	case SourceQuery:
		return "query"
	default:
		return "none"
	}
}

// Candidate is the single credential considered for a request.
type Candidate struct {
	Value  string
	Source Source
}

// ExtractCredential picks at most one credential from r. The
// Authorization bearer header wins over x-api-key, which wins over the
// apiKey query parameter. Lower priority sources are never consulted
// once a higher one is present.
func ExtractCredential(r *http.Request) (Candidate, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return Candidate{Value: token, Source: SourceBearer}, true
			}
		}
	}

	if k := strings.TrimSpace(r.Header.Get("x-api-key")); k != "" {
		return Candidate{Value: k, Source: SourceHeader}, true
	}

	if k := strings.TrimSpace(r.URL.Query().Get("apiKey")); k != "" {
		return Candidate{Value: k, Source: SourceQuery}, true
	}

	return Candidate{}, false
}

// Resolution schemes.
const (
	SchemeUserKey   = "user_key"
	SchemeBearer    = "bearer"
	SchemeGlobalKey = "global_key"
)

// Resolution is the authenticated tenant for a request.
type Resolution struct {
	Scheme       string
	ConnectionID string
	// KeyID is set for user keys and global keys.
	KeyID  string
	Config models.TenantConfig
}

// Identity is the per-credential rate limit key.
func (r *Resolution) Identity() string {
	switch r.Scheme {
	case SchemeBearer:
		return SchemeBearer + ":" + r.ConnectionID
	default:
		return r.Scheme + ":" + r.KeyID
	}
}

// Resolver turns a candidate into a Resolution. It returns nil, nil when
// the candidate is not its kind or does not match, so the next resolver
// runs. Errors are server-side failures.
type Resolver interface {
	Resolve(ctx context.Context, c Candidate) (*Resolution, error)
}

// tenantLoader fetches and decrypts a connection's configuration.
type tenantLoader struct {
	connections ConnectionStore
	cipher      ConfigCipher
}

// load returns nil, nil for a connection that no longer exists.
func (l tenantLoader) load(id string) (models.TenantConfig, error) {
	conn, err := l.connections.GetConnection(id)
	if err != nil {
		return nil, fmt.Errorf("loading connection: %w", err)
	}

	if conn == nil {
		return nil, nil
	}

	cfg, err := l.cipher.Decrypt(conn.EncryptedConfig)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w", id, err)
	}

	return cfg, nil
}

// UserKeyResolver matches smk_ keys against the API key store.
type UserKeyResolver struct {
	keys   *APIKeyService
	tenant tenantLoader
}

// NewUserKeyResolver creates a resolver for user-bound keys.
func NewUserKeyResolver(keys *APIKeyService, connections ConnectionStore, cipher ConfigCipher) *UserKeyResolver {
	return &UserKeyResolver{keys: keys, tenant: tenantLoader{connections: connections, cipher: cipher}}
}

func (u *UserKeyResolver) Resolve(ctx context.Context, c Candidate) (*Resolution, error) {
	if !u.keys.Enabled() || !strings.HasPrefix(c.Value, APIKeyPrefix) {
		return nil, nil
	}

	ak, err := u.keys.Authenticate(ctx, c.Value)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrUnauthorized) {
			return nil, nil
		}

		return nil, err
	}

	cfg, err := u.tenant.load(ak.ConnectionID)
	if err != nil || cfg == nil {
		return nil, err
	}

	return &Resolution{Scheme: SchemeUserKey, ConnectionID: ak.ConnectionID, KeyID: ak.ID, Config: cfg}, nil
}

// BearerResolver verifies tokens from the Authorization header.
type BearerResolver struct {
	tokens *TokenService
	tenant tenantLoader
}

// NewBearerResolver creates a resolver for issued access tokens.
func NewBearerResolver(tokens *TokenService, connections ConnectionStore, cipher ConfigCipher) *BearerResolver {
	return &BearerResolver{tokens: tokens, tenant: tenantLoader{connections: connections, cipher: cipher}}
}

func (b *BearerResolver) Resolve(ctx context.Context, c Candidate) (*Resolution, error) {
	if c.Source != SourceBearer {
		return nil, nil
	}

	connectionID, err := b.tokens.Verify(ctx, c.Value)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrUnauthorized) {
			return nil, nil
		}

		return nil, err
	}

	cfg, err := b.tenant.load(connectionID)
	if err != nil || cfg == nil {
		return nil, err
	}

	return &Resolution{Scheme: SchemeBearer, ConnectionID: connectionID, Config: cfg}, nil
}

// GlobalKeyResolver matches operator-configured keys. Global keys carry
// no tenant configuration.
type GlobalKeyResolver struct {
	keys [][]byte
}

// NewGlobalKeyResolver creates a resolver over keys. Empty entries are
// ignored.
func NewGlobalKeyResolver(keys []string) *GlobalKeyResolver {
	g := &GlobalKeyResolver{}

	for _, k := range keys {
		if k != "" {
			g.keys = append(g.keys, []byte(k))
		}
	}

	return g
}

func (g *GlobalKeyResolver) Resolve(_ context.Context, c Candidate) (*Resolution, error) {
	match := -1

	// Compare against every key so timing does not reveal which matched.
	for i, k := range g.keys {
		if subtle.ConstantTimeCompare(k, []byte(c.Value)) == 1 && match < 0 {
			match = i
		}
	}

	if match < 0 {
		return nil, nil
	}

	sum := sha256.Sum256(g.keys[match])

	return &Resolution{
		Scheme: SchemeGlobalKey,
		KeyID:  hex.EncodeToString(sum[:8]),
		Config: models.TenantConfig{},
	}, nil
}
