package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/alexjbarnes/status-mcp/internal/config"
	autherrors "github.com/alexjbarnes/status-mcp/internal/errors"
	"github.com/alexjbarnes/status-mcp/internal/models"
	"github.com/alexjbarnes/status-mcp/internal/state"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// errRedirectNotAllowed is the stable, user-facing message for any
// redirect URI rejected at registration. The specific reason is only
// logged.
const errRedirectNotAllowed = "one or more redirect_uris are not allowed"

// RedirectPolicy decides which redirect URIs may be registered.
type RedirectPolicy struct {
	mode    string
	allowed []string
	hosts   []string
}

// NewRedirectPolicy builds a policy. In exact mode a URI must equal an
// allowlist entry. In prefix mode its hostname must equal, or be a
// subdomain of, an allowlisted hostname; entries may be bare hostnames
// or full URLs. An empty allowlist admits every well-formed URI.
func NewRedirectPolicy(mode string, allowlist []string) *RedirectPolicy {
	p := &RedirectPolicy{mode: mode, allowed: allowlist}

	if mode == config.AllowlistPrefix {
		for _, entry := range allowlist {
			if h := allowlistHost(entry); h != "" {
				p.hosts = append(p.hosts, h)
			}
		}
	}

	return p
}

func allowlistHost(entry string) string {
	if strings.Contains(entry, "://") {
		u, err := url.Parse(entry)
		if err != nil {
			return ""
		}

		return strings.ToLower(u.Hostname())
	}

	// Bare host, possibly with a port or path.
	u, err := url.Parse("https://" + entry)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Hostname())
}

// Allowed returns the configured allowlist for audit logs.
func (p *RedirectPolicy) Allowed() []string {
	return p.allowed
}

// Check returns nil if uri may be registered, or an error describing
// why not.
func (p *RedirectPolicy) Check(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return errors.New("not a valid URI")
	}

	if !u.IsAbs() || u.Host == "" {
		return errors.New("not an absolute URI")
	}

	if u.Fragment != "" {
		return errors.New("fragment not allowed")
	}

	host := strings.ToLower(u.Hostname())

	switch u.Scheme {
	case "https":
	case "http":
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("HTTPS required for non-loopback hosts")
		}
	default:
		return fmt.Errorf("scheme %q not allowed", u.Scheme)
	}

	if len(p.allowed) == 0 {
		return nil
	}

	if p.mode == config.AllowlistPrefix {
		for _, allowed := range p.hosts {
			if host == allowed || strings.HasSuffix(host, "."+allowed) {
				return nil
			}
		}

		return fmt.Errorf("host %q not in allowlist", host)
	}

	for _, allowed := range p.allowed {
		if uri == allowed {
			return nil
		}
	}

	return errors.New("URI not in allowlist")
}

// RegistrationRequest is the dynamic client registration body (RFC 7591).
type RegistrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// Registry registers OAuth clients and looks them up.
type Registry struct {
	store      ClientStore
	policy     *RedirectPolicy
	maxClients int
	logger     *slog.Logger
	now        func() time.Time
}

// NewRegistry creates a client registry.
func NewRegistry(store ClientStore, policy *RedirectPolicy, maxClients int, logger *slog.Logger) *Registry {
	return &Registry{
		store:      store,
		policy:     policy,
		maxClients: maxClients,
		logger:     logger,
		now:        time.Now,
	}
}

// ErrRegistryFull is returned when the client cap has been reached.
var ErrRegistryFull = errors.New("client registration limit reached")

// Register validates req and stores a new client. For
// client_secret_post clients the returned secret is the only copy; the
// store keeps a bcrypt hash.
func (r *Registry) Register(req RegistrationRequest, sourceIP string) (*models.Client, string, error) {
	if len(req.RedirectURIs) == 0 {
		return nil, "", &OAuthError{Code: codeInvalidRedirectURI, Description: "redirect_uris is required", Err: autherrors.ErrValidation}
	}

	for _, uri := range req.RedirectURIs {
		if err := r.policy.Check(uri); err != nil {
			r.logger.Warn("registration rejected redirect_uri",
				slog.String("redirect_uri", uri),
				slog.String("reason", err.Error()),
				slog.Any("allowed", r.policy.Allowed()),
				slog.String("client_name", req.ClientName),
				slog.String("ip", sourceIP),
			)

			return nil, "", &OAuthError{Code: codeInvalidRedirectURI, Description: errRedirectNotAllowed, Err: autherrors.ErrValidation}
		}
	}

	authMethod := req.TokenEndpointAuthMethod
	switch authMethod {
	case "":
		authMethod = models.AuthMethodNone
	case models.AuthMethodNone, models.AuthMethodClientSecretPost:
	default:
		return nil, "", &OAuthError{Code: codeInvalidClientMetadata, Description: "token_endpoint_auth_method must be none or client_secret_post", Err: autherrors.ErrValidation}
	}

	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{models.GrantTypeAuthorizationCode}
	}

	for _, gt := range grantTypes {
		if gt != models.GrantTypeAuthorizationCode {
			return nil, "", &OAuthError{Code: codeInvalidClientMetadata, Description: "only the authorization_code grant type is supported", Err: autherrors.ErrValidation}
		}
	}

	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = []string{models.ResponseTypeCode}
	}

	for _, rt := range responseTypes {
		if rt != models.ResponseTypeCode {
			return nil, "", &OAuthError{Code: codeInvalidClientMetadata, Description: "only the code response type is supported", Err: autherrors.ErrValidation}
		}
	}

	now := r.now().UTC()
	client := models.Client{
		ClientID:                uuid.NewString(),
		ClientName:              strings.TrimSpace(req.ClientName),
		RedirectURIs:            dedupe(req.RedirectURIs),
		TokenEndpointAuthMethod: authMethod,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		Scope:                   req.Scope,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	var secret string

	if authMethod == models.AuthMethodClientSecretPost {
		secret = RandomHex(32)

		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, "", fmt.Errorf("hashing client secret: %w", err)
		}

		client.SecretHash = string(hash)
	}

	if err := r.store.SaveClient(client, r.maxClients); err != nil {
		if errors.Is(err, state.ErrClientLimit) {
			r.logger.Warn("registration refused: client limit reached",
				slog.Int("max_clients", r.maxClients),
				slog.String("ip", sourceIP),
			)

			return nil, "", ErrRegistryFull
		}

		return nil, "", fmt.Errorf("saving client: %w", err)
	}

	r.logger.Info("client registered",
		slog.String("client_id", client.ClientID),
		slog.String("client_name", client.ClientName),
		slog.String("auth_method", authMethod),
		slog.String("ip", sourceIP),
	)

	return &client, secret, nil
}

// Lookup returns the client with clientID or an ErrNotFound error.
func (r *Registry) Lookup(clientID string) (*models.Client, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client_id is empty: %w", autherrors.ErrNotFound)
	}

	c, err := r.store.GetClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("loading client: %w", err)
	}

	if c == nil {
		return nil, fmt.Errorf("client %q: %w", clientID, autherrors.ErrNotFound)
	}

	return c, nil
}

// Authenticate checks the client credentials presented at the token
// endpoint. Public clients need no secret.
func (r *Registry) Authenticate(clientID, secret string) (*models.Client, error) {
	c, err := r.Lookup(clientID)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil, &OAuthError{Code: codeInvalidClient, Description: "unknown client", Err: autherrors.ErrInvalidClient}
		}

		return nil, err
	}

	if c.TokenEndpointAuthMethod != models.AuthMethodClientSecretPost {
		return c, nil
	}

	if secret == "" || bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)) != nil {
		return nil, &OAuthError{Code: codeInvalidClient, Description: "client authentication failed", Err: autherrors.ErrInvalidClient}
	}

	return c, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))

	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}

		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}
