package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alexjbarnes/status-mcp/internal/config"
	"github.com/alexjbarnes/status-mcp/internal/fields"
	"github.com/alexjbarnes/status-mcp/internal/models"
	"github.com/alexjbarnes/status-mcp/internal/secrets"
	"github.com/alexjbarnes/status-mcp/internal/state"
	"github.com/stretchr/testify/require"
)

const (
	testServerURL   = "https://mcp.example.com"
	testRedirectURI = "https://app.example.com/cb"
	testVerifier    = "dBjftJeZ4CVP-mJ92K9xTRqAmQ4vwqoK3FqbHf4WfG8"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func challengeFor(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

func validConfig() models.TenantConfig {
	return models.TenantConfig{"api_token": "tok-123", "workspace": "acme"}
}

// testEnv wires the auth services over a real bbolt store.
type testEnv struct {
	st       *state.State
	cipher   *secrets.Cipher
	table    *fields.Table
	registry *Registry
	codes    *CodeIssuer
	tokens   *TokenService
	keys     *APIKeyService
}

type envOption func(*envSettings)

type envSettings struct {
	masterKey  string
	tokenMode  string
	userKeys   bool
	maxClients int
	allowlist  []string
	allowMode  string
	codeTTL    time.Duration
	tokenTTL   time.Duration
}

func withMasterKey(k string) envOption { return func(s *envSettings) { s.masterKey = k } }
func withTokenMode(m string) envOption { return func(s *envSettings) { s.tokenMode = m } }
func withUserKeys() envOption          { return func(s *envSettings) { s.userKeys = true } }
func withMaxClients(n int) envOption   { return func(s *envSettings) { s.maxClients = n } }

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	s := envSettings{
		masterKey: "test-master-secret",
		tokenMode: config.TokenModeJWT,
		allowMode: config.AllowlistExact,
		codeTTL:   time.Minute,
		tokenTTL:  time.Hour,
	}
	for _, o := range opts {
		o(&s)
	}

	st, err := state.LoadAt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	table, err := fields.Default()
	require.NoError(t, err)

	logger := testLogger()
	master := secrets.NewMasterKey(s.masterKey, logger)
	cipher := secrets.NewCipher(master)
	registry := NewRegistry(st, NewRedirectPolicy(s.allowMode, s.allowlist), s.maxClients, logger)

	return &testEnv{
		st:       st,
		cipher:   cipher,
		table:    table,
		registry: registry,
		codes:    NewCodeIssuer(registry, st, cipher, table, testServerURL, s.codeTTL, logger),
		tokens:   NewTokenService(s.tokenMode, master, st, testServerURL, s.tokenTTL),
		keys:     NewAPIKeyService(st, cipher, table, s.userKeys, logger),
	}
}

func (e *testEnv) registerClient(t *testing.T, redirectURIs ...string) *models.Client {
	t.Helper()

	if len(redirectURIs) == 0 {
		redirectURIs = []string{testRedirectURI}
	}

	c, _, err := e.registry.Register(RegistrationRequest{RedirectURIs: redirectURIs, ClientName: "Test App"}, "127.0.0.1")
	require.NoError(t, err)

	return c
}

// issueCode completes a connect for client and returns the raw code.
func (e *testEnv) issueCode(t *testing.T, client *models.Client) string {
	t.Helper()

	redirect, err := e.codes.Issue(t.Context(), ConnectRequest{
		ClientID:            client.ClientID,
		RedirectURI:         client.RedirectURIs[0],
		State:               "xyz",
		CodeChallenge:       challengeFor(testVerifier),
		CodeChallengeMethod: models.CodeChallengeMethodS256,
		Config:              validConfig(),
	})
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)

	code := u.Query().Get("code")
	require.NotEmpty(t, code)

	return code
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}
