package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	autherrors "github.com/alexjbarnes/status-mcp/internal/errors"
	"github.com/alexjbarnes/status-mcp/internal/fields"
	"github.com/alexjbarnes/status-mcp/internal/models"
	"github.com/alexjbarnes/status-mcp/internal/state"
	"github.com/google/uuid"
)

// errRedirectMismatch is shown on the connect error page when the
// redirect_uri is not one of the client's registered URIs.
const errRedirectMismatch = "redirect URI not allowed for this client"

// ConnectRequest is a connect form submission.
type ConnectRequest struct {
	ClientID            string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	DisplayName         string
	Config              models.TenantConfig
	SourceIP            string
}

// RedeemRequest carries the token endpoint parameters that bind a code.
type RedeemRequest struct {
	Code        string
	Verifier    string
	ClientID    string
	RedirectURI string
	SourceIP    string
}

// CodeIssuer creates connections with their single-use authorization
// codes and redeems those codes.
type CodeIssuer struct {
	registry *Registry
	store    CodeStore
	cipher   ConfigCipher
	table    *fields.Table
	issuer   string
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewCodeIssuer creates a code issuer. issuer is added to redirects as
// the iss parameter (RFC 9207).
func NewCodeIssuer(registry *Registry, store CodeStore, cipher ConfigCipher, table *fields.Table, issuer string, ttl time.Duration, logger *slog.Logger) *CodeIssuer {
	return &CodeIssuer{
		registry: registry,
		store:    store,
		cipher:   cipher,
		table:    table,
		issuer:   issuer,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// CheckParams validates the OAuth parameters of a connect request. It
// returns the client when they are acceptable. When redirect_uri is
// omitted and the client registered exactly one URI, that URI is used.
func (ci *CodeIssuer) CheckParams(req *ConnectRequest) (*models.Client, error) {
	var problems []string

	if req.ClientID == "" {
		return nil, &ParamError{Problems: []string{"client_id is required"}}
	}

	client, err := ci.registry.Lookup(req.ClientID)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil, &ParamError{Problems: []string{"unknown client_id"}}
		}

		return nil, err
	}

	switch {
	case req.RedirectURI == "" && len(client.RedirectURIs) == 1:
		req.RedirectURI = client.RedirectURIs[0]
	case req.RedirectURI == "":
		problems = append(problems, "redirect_uri is required")
	case !client.HasRedirectURI(req.RedirectURI):
		ci.logger.Warn("connect rejected redirect_uri",
			slog.String("redirect_uri", req.RedirectURI),
			slog.Any("allowed", client.RedirectURIs),
			slog.String("client_id", client.ClientID),
			slog.String("ip", req.SourceIP),
		)

		problems = append(problems, errRedirectMismatch)
	}

	if req.CodeChallenge == "" {
		problems = append(problems, "code_challenge is required")
	}

	if req.CodeChallengeMethod != models.CodeChallengeMethodS256 {
		ci.logger.Warn("connect rejected code_challenge_method",
			slog.String("code_challenge_method", req.CodeChallengeMethod),
			slog.String("client_id", client.ClientID),
			slog.String("ip", req.SourceIP),
		)

		problems = append(problems, "code_challenge_method must be S256")
	}

	if len(problems) > 0 {
		return nil, &ParamError{Problems: problems}
	}

	return client, nil
}

// Issue validates req, stores the encrypted connection with a fresh
// code, and returns the redirect URL carrying code, state and iss.
func (ci *CodeIssuer) Issue(_ context.Context, req ConnectRequest) (string, error) {
	client, err := ci.CheckParams(&req)
	if err != nil {
		return "", err
	}

	cfg := req.Config
	if cfg == nil {
		cfg = models.TenantConfig{}
	}

	if problems := ci.table.Validate(cfg); len(problems) > 0 {
		msgs := make([]string, len(problems))
		for i, p := range problems {
			msgs[i] = p.String()
		}

		return "", &ParamError{Problems: msgs}
	}

	if !ci.cipher.Ready() {
		return "", fmt.Errorf("%w: MASTER_KEY is not set", autherrors.ErrConfig)
	}

	blob, err := ci.cipher.Encrypt(cfg)
	if err != nil {
		return "", fmt.Errorf("encrypting connection config: %w", err)
	}

	now := ci.now().UTC()
	conn := models.Connection{
		ID:              uuid.NewString(),
		DisplayName:     fields.Normalize(req.DisplayName),
		EncryptedConfig: blob,
		ConfigVersion:   1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	code := RandomHex(32)
	ac := models.AuthorizationCode{
		CodeHash:            state.HashSecret(code),
		ConnectionID:        conn.ID,
		ClientID:            client.ClientID,
		RedirectURI:         req.RedirectURI,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ExpiresAt:           now.Add(ci.ttl),
		CreatedAt:           now,
	}

	if err := ci.store.SaveConnectionWithCode(conn, ac); err != nil {
		return "", fmt.Errorf("saving connection: %w", err)
	}

	ci.logger.Info("connection created",
		slog.String("connection_id", conn.ID),
		slog.String("client_id", client.ClientID),
		slog.String("ip", req.SourceIP),
	)

	return buildRedirect(req.RedirectURI, code, req.State, ci.issuer)
}

func buildRedirect(redirectURI, code, st, issuer string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("parsing redirect uri: %w", err)
	}

	q := u.Query()
	q.Set("code", code)

	if st != "" {
		q.Set("state", st)
	}

	if issuer != "" {
		q.Set("iss", issuer)
	}

	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Redeem exchanges a raw code for its connection ID. Every failure is an
// invalid_grant OAuthError. The check-and-mark is a single store
// transaction, so a code redeems at most once.
func (ci *CodeIssuer) Redeem(_ context.Context, req RedeemRequest) (string, error) {
	if req.Code == "" {
		return "", invalidRequest("code is required")
	}

	if req.Verifier == "" {
		return "", invalidRequest("code_verifier is required")
	}

	ac, err := ci.store.RedeemCode(state.HashSecret(req.Code), ci.now().UTC(), func(ac *models.AuthorizationCode) error {
		if ac.ClientID != req.ClientID {
			return invalidGrant("client_id does not match the authorization code")
		}

		if req.RedirectURI != "" && req.RedirectURI != ac.RedirectURI {
			return invalidGrant("redirect_uri does not match the authorization code")
		}

		if !VerifyPKCE(req.Verifier, ac.CodeChallenge, ac.CodeChallengeMethod) {
			return invalidGrant("PKCE verification failed")
		}

		return nil
	})

	if err == nil {
		return ac.ConnectionID, nil
	}

	var oe *OAuthError

	switch {
	case errors.As(err, &oe):
		ci.logRejection(req, ac, oe.Description)
		return "", oe
	case errors.Is(err, state.ErrCodeNotFound), errors.Is(err, state.ErrCodeUsed):
		ci.logRejection(req, ac, err.Error())
		return "", invalidGrant("invalid or already used authorization code")
	case errors.Is(err, state.ErrCodeExpired):
		ci.logRejection(req, ac, err.Error())
		return "", invalidGrant("authorization code expired")
	default:
		return "", err
	}
}

// logRejection records a failed redemption with what the caller sent and,
// when the code exists, what it was bound to at issue time.
func (ci *CodeIssuer) logRejection(req RedeemRequest, ac *models.AuthorizationCode, reason string) {
	attrs := []any{
		slog.String("reason", reason),
		slog.String("ip", req.SourceIP),
		slog.String("client_id", req.ClientID),
		slog.String("redirect_uri", req.RedirectURI),
	}

	if ac != nil {
		attrs = append(attrs,
			slog.String("bound_client_id", ac.ClientID),
			slog.String("bound_redirect_uri", ac.RedirectURI),
		)
	}

	ci.logger.Warn("code redemption rejected", attrs...)
}

// VerifyPKCE reports whether verifier matches challenge under method.
// Only S256 is supported; any other method fails.
func VerifyPKCE(verifier, challenge, method string) bool {
	if method != models.CodeChallengeMethodS256 || verifier == "" || challenge == "" {
		return false
	}

	h := sha256.Sum256([]byte(verifier))
	computed := base64.RawURLEncoding.EncodeToString(h[:])

	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.TrimSpace(challenge))) == 1
}
