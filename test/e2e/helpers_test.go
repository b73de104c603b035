package e2e_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexjbarnes/status-mcp/internal/config"
	"github.com/alexjbarnes/status-mcp/internal/server"
	"github.com/alexjbarnes/status-mcp/internal/state"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

const (
	globalKey    = "e2e-global-key"
	pkceVerifier = "e2e-test-pkce-verifier-that-is-long-enough-to-pass"
	redirectURI  = "http://127.0.0.1:19876/callback"
)

// harness holds the full e2e test stack: a real HTTP server built by
// server.Build over a temp bbolt database.
type harness struct {
	URL    string
	State  *state.State
	Client *http.Client
}

// newHarness starts the server. opts adjust the config before wiring.
func newHarness(t *testing.T, opts ...func(*config.Config)) *harness {
	t.Helper()

	st, err := state.LoadAt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	// Use NewUnstartedServer so we can read the listener address before
	// building the router (the server URL is the token issuer).
	ts := httptest.NewUnstartedServer(nil)
	serverURL := "http://" + ts.Listener.Addr().String()

	generous := config.RateLimit{Max: 1000, Window: time.Minute}
	cfg := &config.Config{
		Environment:              "development",
		ServerURL:                serverURL,
		MasterKey:                "e2e-master-key",
		RedirectURIAllowlist:     redirectURI,
		RedirectURIAllowlistMode: config.AllowlistExact,
		MaxClients:               100,
		GlobalAPIKeys:            "other-key, " + globalKey,
		UserAPIKeysEnabled:       true,
		TokenMode:                config.TokenModeJWT,
		TokenTTL:                 time.Hour,
		CodeTTL:                  time.Minute,
		RegisterLimit:            generous,
		ConnectLimit:             generous,
		TokenLimit:               generous,
		APIKeyLimit:              generous,
		MCPLimit:                 generous,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	app, err := server.Build(cfg, st, "test", slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	ts.Config.Handler = app.Handler
	ts.Start()
	t.Cleanup(ts.Close)

	return &harness{
		URL:    serverURL,
		State:  st,
		Client: ts.Client(),
	}
}

// tokenResponse is the JSON body returned by POST /token.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// registerClient registers a public client via POST /register.
func (h *harness) registerClient(t *testing.T) string {
	t.Helper()

	b, err := json.Marshal(map[string]any{
		"client_name":   "e2e",
		"redirect_uris": []string{redirectURI},
	})
	require.NoError(t, err)

	resp := h.doPostJSON(t, "/register", b, nil)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		ClientID string `json:"client_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.NotEmpty(t, result.ClientID)

	return result.ClientID
}

// connectParams are the OAuth parameters carried through GET and POST
// /connect.
func connectParams(clientID string) url.Values {
	return url.Values{
		"client_id":             {clientID},
		"redirect_uri":          {redirectURI},
		"state":                 {"e2e-state"},
		"code_challenge":        {pkceChallenge(pkceVerifier)},
		"code_challenge_method": {"S256"},
	}
}

// connect renders the form, submits tenant configuration and returns
// the authorization code from the redirect.
func (h *harness) connect(t *testing.T, clientID string) string {
	t.Helper()

	resp := h.doGet(t, h.URL+"/connect?"+connectParams(clientID).Encode())
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `name="api_token"`)

	form := connectParams(clientID)
	form.Set("display_name", "Acme")
	form.Set("api_token", "tok-e2e-secret")
	form.Set("workspace", "acme")

	postResp := h.doPostFormNoRedirect(t, "/connect", form)
	defer postResp.Body.Close()

	require.Equal(t, http.StatusFound, postResp.StatusCode)

	loc, err := url.Parse(postResp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "e2e-state", loc.Query().Get("state"))
	require.Equal(t, h.URL, loc.Query().Get("iss"))

	code := loc.Query().Get("code")
	require.NotEmpty(t, code, "authorization code missing from redirect")

	return code
}

// exchange posts the code to /token and returns the raw response.
func (h *harness) exchange(t *testing.T, clientID, code string) *http.Response {
	t.Helper()

	return h.doPostForm(t, "/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {clientID},
		"code_verifier": {pkceVerifier},
	})
}

// authCodeFlow runs register, connect and token exchange.
func (h *harness) authCodeFlow(t *testing.T) tokenResponse {
	t.Helper()

	clientID := h.registerClient(t)
	code := h.connect(t, clientID)

	resp := h.exchange(t, clientID, code)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tr tokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))

	return tr
}

// mcpSession creates an MCP client session that sends header on every
// request.
func (h *harness) mcpSession(t *testing.T, header http.Header) *mcp.ClientSession {
	t.Helper()

	transport := &mcp.StreamableClientTransport{
		Endpoint: h.URL + "/mcp",
		HTTPClient: &http.Client{
			Transport: &headerTransport{
				header: header,
				base:   h.Client.Transport,
			},
		},
		DisableStandaloneSSE: true,
	}

	client := mcp.NewClient(
		&mcp.Implementation{Name: "e2e-test-client", Version: "test"},
		nil,
	)

	session, err := client.Connect(t.Context(), transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func apiKey(key string) http.Header {
	return http.Header{"X-Api-Key": {key}}
}

// connectionInfo calls the connection_info tool and decodes its result.
func connectionInfo(t *testing.T, session *mcp.ClientSession) map[string]any {
	t.Helper()

	result, err := session.CallTool(t.Context(), &mcp.CallToolParams{Name: "connection_info"})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.NotEmpty(t, result.Content)

	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "first content is not TextContent")

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &info))

	return info
}

// doGet performs a GET request with t.Context().
func (h *harness) doGet(t *testing.T, fullURL string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, fullURL, nil)
	require.NoError(t, err)

	resp, err := h.Client.Do(req)
	require.NoError(t, err)

	return resp
}

// doPostForm performs a POST with form-encoded body and t.Context().
func (h *harness) doPostForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(
		t.Context(), http.MethodPost, h.URL+path,
		bytes.NewBufferString(form.Encode()),
	)
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.Client.Do(req)
	require.NoError(t, err)

	return resp
}

// doPostFormNoRedirect performs a form POST that does not follow redirects.
func (h *harness) doPostFormNoRedirect(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()

	noRedirect := *h.Client
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	req, err := http.NewRequestWithContext(
		t.Context(), http.MethodPost, h.URL+path,
		bytes.NewBufferString(form.Encode()),
	)
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := noRedirect.Do(req)
	require.NoError(t, err)

	return resp
}

// doPostJSON performs a POST with JSON body and extra headers.
func (h *harness) doPostJSON(t *testing.T, path string, body []byte, header http.Header) *http.Response {
	t.Helper()

	return h.do(t, http.MethodPost, path, body, header)
}

func (h *harness) do(t *testing.T, method, path string, body []byte, header http.Header) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, h.URL+path, bytes.NewReader(body))
	require.NoError(t, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := h.Client.Do(req)
	require.NoError(t, err)

	return resp
}

// headerTransport is an http.RoundTripper that adds fixed headers to
// every request.
type headerTransport struct {
	header http.Header
	base   http.RoundTripper
}

func (ht *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range ht.header {
		req.Header[k] = v
	}

	return ht.base.RoundTrip(req)
}

// pkceChallenge computes the S256 code challenge for a given verifier.
func pkceChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(b)
}
