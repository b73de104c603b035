package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexjbarnes/status-mcp/internal/config"
	autherrors "github.com/alexjbarnes/status-mcp/internal/errors"
	"github.com/alexjbarnes/status-mcp/internal/models"
	"github.com/alexjbarnes/status-mcp/internal/state"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// KeySource supplies the HMAC signing key.
type KeySource interface {
	DeriveKeyBytes() ([]byte, error)
}

// Credential is an issued bearer token.
type Credential struct {
	AccessToken string
	ExpiresAt   time.Time
}

// TokenService issues and verifies bearer credentials. In jwt mode they
// are stateless HS256 tokens; in session mode they are opaque
// "<sessionID>.<secret>" values backed by a persisted session row.
type TokenService struct {
	mode     string
	keys     KeySource
	sessions SessionStore
	issuer   string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokenService creates a token service. sessions may be nil in jwt
// mode.
func NewTokenService(mode string, keys KeySource, sessions SessionStore, issuer string, ttl time.Duration) *TokenService {
	return &TokenService{
		mode:     mode,
		keys:     keys,
		sessions: sessions,
		issuer:   issuer,
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL is the lifetime of issued credentials.
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

// Issue creates a credential for connectionID.
func (ts *TokenService) Issue(_ context.Context, connectionID, clientID string) (Credential, error) {
	now := ts.now().UTC()
	expiresAt := now.Add(ts.ttl)

	if ts.mode == config.TokenModeSession {
		return ts.issueSession(connectionID, clientID, now, expiresAt)
	}

	key, err := ts.keys.DeriveKeyBytes()
	if err != nil {
		return Credential{}, err
	}

	claims := jwt.RegisteredClaims{
		Subject:   connectionID,
		Issuer:    ts.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return Credential{}, fmt.Errorf("signing token: %w", err)
	}

	return Credential{AccessToken: signed, ExpiresAt: expiresAt}, nil
}

func (ts *TokenService) issueSession(connectionID, clientID string, now, expiresAt time.Time) (Credential, error) {
	if ts.sessions == nil {
		return Credential{}, fmt.Errorf("%w: session store not configured", autherrors.ErrConfig)
	}

	secret := RandomHex(32)
	sess := models.Session{
		ID:           uuid.NewString(),
		TokenHash:    state.HashSecret(secret),
		ConnectionID: connectionID,
		ClientID:     clientID,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
	}

	if err := ts.sessions.SaveSession(sess); err != nil {
		return Credential{}, fmt.Errorf("saving session: %w", err)
	}

	return Credential{AccessToken: sess.ID + "." + secret, ExpiresAt: expiresAt}, nil
}

// Verify returns the connection ID a credential was issued for. The
// token shape selects the scheme: three dot-separated parts are a JWT,
// two are a session token. Every failure wraps ErrUnauthorized, except
// a missing master key or store failure.
func (ts *TokenService) Verify(_ context.Context, raw string) (string, error) {
	switch strings.Count(raw, ".") {
	case 2:
		return ts.verifyJWT(raw)
	case 1:
		return ts.verifySession(raw)
	default:
		return "", fmt.Errorf("%w: malformed token", autherrors.ErrUnauthorized)
	}
}

func (ts *TokenService) verifyJWT(raw string) (string, error) {
	key, err := ts.keys.DeriveKeyBytes()
	if err != nil {
		return "", err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.issuer))
	}

	var claims jwt.RegisteredClaims

	_, err = jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", autherrors.ErrUnauthorized, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", autherrors.ErrUnauthorized)
	}

	return claims.Subject, nil
}

func (ts *TokenService) verifySession(raw string) (string, error) {
	if ts.sessions == nil {
		return "", fmt.Errorf("%w: session tokens not accepted", autherrors.ErrUnauthorized)
	}

	id, secret, _ := strings.Cut(raw, ".")
	if id == "" || secret == "" {
		return "", fmt.Errorf("%w: malformed session token", autherrors.ErrUnauthorized)
	}

	sess, err := ts.sessions.GetSession(id)
	if err != nil {
		return "", fmt.Errorf("loading session: %w", err)
	}

	if sess == nil {
		return "", fmt.Errorf("%w: unknown session", autherrors.ErrUnauthorized)
	}

	if subtle.ConstantTimeCompare([]byte(state.HashSecret(secret)), []byte(sess.TokenHash)) != 1 {
		return "", fmt.Errorf("%w: session secret mismatch", autherrors.ErrUnauthorized)
	}

	if sess.Revoked {
		return "", fmt.Errorf("%w: session revoked", autherrors.ErrUnauthorized)
	}

	if !ts.now().Before(sess.ExpiresAt) {
		return "", fmt.Errorf("%w: session expired", autherrors.ErrUnauthorized)
	}

	return sess.ConnectionID, nil
}

// ErrNotRevocable is returned by Revoke for stateless tokens.
var ErrNotRevocable = errors.New("stateless tokens cannot be revoked")

// Revoke invalidates a session token. The token must verify first.
func (ts *TokenService) Revoke(ctx context.Context, raw string) error {
	if strings.Count(raw, ".") != 1 {
		return ErrNotRevocable
	}

	if _, err := ts.Verify(ctx, raw); err != nil {
		return err
	}

	id, _, _ := strings.Cut(raw, ".")

	return ts.sessions.RevokeSession(id)
}
