package auth

import (
	"bytes"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexjbarnes/status-mcp/internal/auth/mocks"
	autherrors "github.com/alexjbarnes/status-mcp/internal/errors"
	"github.com/alexjbarnes/status-mcp/internal/models"
	"github.com/alexjbarnes/status-mcp/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestVerifyPKCE(t *testing.T) {
	challenge := challengeFor(testVerifier)

	assert.True(t, VerifyPKCE(testVerifier, challenge, "S256"))
	assert.False(t, VerifyPKCE("wrong-verifier", challenge, "S256"))
	assert.False(t, VerifyPKCE(testVerifier, challenge, "plain"))
	assert.False(t, VerifyPKCE(testVerifier, testVerifier, "plain"))
	assert.False(t, VerifyPKCE("", challenge, "S256"))
	assert.False(t, VerifyPKCE(testVerifier, "", "S256"))
}

func TestVerifyPKCE_RFC7636Vector(t *testing.T) {
	// Appendix B of RFC 7636.
	assert.True(t, VerifyPKCE(
		"dBjftJeZ4CVP-mJ92K9xTRqAmQ4vwqoK3FqbHf4WfG8",
		"E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		"S256",
	))
}

func connectReq(client *models.Client) ConnectRequest {
	return ConnectRequest{
		ClientID:            client.ClientID,
		RedirectURI:         testRedirectURI,
		State:               "xyz",
		CodeChallenge:       challengeFor(testVerifier),
		CodeChallengeMethod: models.CodeChallengeMethodS256,
		DisplayName:         "Acme",
		Config:              validConfig(),
	}
}

func TestIssue_RedirectCarriesCodeStateIssuer(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t)

	redirect, err := env.codes.Issue(t.Context(), connectReq(client))
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", u.Host)
	assert.Equal(t, "/cb", u.Path)
	assert.Len(t, u.Query().Get("code"), 64)
	assert.Equal(t, "xyz", u.Query().Get("state"))
	assert.Equal(t, testServerURL, u.Query().Get("iss"))

	// Only the hash reaches the store.
	code := u.Query().Get("code")
	ac, err := env.st.GetCode(state.HashSecret(code))
	require.NoError(t, err)
	require.NotNil(t, ac)
	assert.Equal(t, client.ClientID, ac.ClientID)
	assert.Nil(t, ac.UsedAt)

	raw, err := env.st.GetCode(code)
	require.NoError(t, err)
	assert.Nil(t, raw)

	conn, err := env.st.GetConnection(ac.ConnectionID)
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "Acme", conn.DisplayName)
	assert.NotContains(t, conn.EncryptedConfig, "tok-123")

	cfg, err := env.cipher.Decrypt(conn.EncryptedConfig)
	require.NoError(t, err)
	assert.Equal(t, validConfig(), cfg)
}

func TestIssue_KeepsRedirectQuery(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t, "https://app.example.com/cb?tenant=7")

	req := connectReq(client)
	req.RedirectURI = "https://app.example.com/cb?tenant=7"

	redirect, err := env.codes.Issue(t.Context(), req)
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, "7", u.Query().Get("tenant"))
	assert.NotEmpty(t, u.Query().Get("code"))
}

func TestCheckParams(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t)

	tests := []struct {
		name   string
		mutate func(*ConnectRequest)
		want   string
	}{
		{"missing client", func(r *ConnectRequest) { r.ClientID = "" }, "client_id is required"},
		{"unknown client", func(r *ConnectRequest) { r.ClientID = "nope" }, "unknown client_id"},
		{"foreign redirect", func(r *ConnectRequest) { r.RedirectURI = "https://evil.com" }, "redirect URI not allowed"},
		{"missing challenge", func(r *ConnectRequest) { r.CodeChallenge = "" }, "code_challenge is required"},
		{"plain method", func(r *ConnectRequest) { r.CodeChallengeMethod = "plain" }, "code_challenge_method must be S256"},
		{"missing method", func(r *ConnectRequest) { r.CodeChallengeMethod = "" }, "code_challenge_method must be S256"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := connectReq(client)
			tt.mutate(&req)

			_, err := env.codes.CheckParams(&req)
			require.Error(t, err)
			assert.ErrorIs(t, err, autherrors.ErrValidation)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestCheckParams_SingleRegisteredURIIsDefault(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t)

	req := connectReq(client)
	req.RedirectURI = ""

	_, err := env.codes.CheckParams(&req)
	require.NoError(t, err)
	assert.Equal(t, testRedirectURI, req.RedirectURI)

	multi := env.registerClient(t, testRedirectURI, "https://app.example.com/other")
	req = connectReq(multi)
	req.RedirectURI = ""

	_, err = env.codes.CheckParams(&req)
	assert.ErrorContains(t, err, "redirect_uri is required")
}

func TestIssue_ValidatesFields(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t)

	req := connectReq(client)
	req.Config = models.TenantConfig{"base_url": "not a url"}

	_, err := env.codes.Issue(t.Context(), req)

	var pe *ParamError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Problems, "api_token: is required")
	assert.Contains(t, pe.Problems, "workspace: is required")
	assert.Contains(t, pe.Problems, "base_url: must be an absolute http(s) URL")
}

func TestIssue_NoMasterKey(t *testing.T) {
	env := newTestEnv(t, withMasterKey(""))
	client := env.registerClient(t)

	_, err := env.codes.Issue(t.Context(), connectReq(client))
	assert.ErrorIs(t, err, autherrors.ErrConfig)
}

func TestIssue_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t)

	ctrl := gomock.NewController(t)
	store := mocks.NewMockCodeStore(ctrl)
	store.EXPECT().SaveConnectionWithCode(gomock.Any(), gomock.Any()).Return(errors.New("db closed"))

	ci := NewCodeIssuer(env.registry, store, env.cipher, env.table, testServerURL, time.Minute, testLogger())

	_, err := ci.Issue(t.Context(), connectReq(client))
	assert.ErrorContains(t, err, "db closed")
}

func redeemReq(client *models.Client, code string) RedeemRequest {
	return RedeemRequest{
		Code:        code,
		Verifier:    testVerifier,
		ClientID:    client.ClientID,
		RedirectURI: testRedirectURI,
	}
}

func TestRedeem_ExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t)
	code := env.issueCode(t, client)

	connID, err := env.codes.Redeem(t.Context(), redeemReq(client, code))
	require.NoError(t, err)
	assert.NotEmpty(t, connID)

	_, err = env.codes.Redeem(t.Context(), redeemReq(client, code))
	assert.ErrorIs(t, err, autherrors.ErrInvalidGrant)
}

func TestRedeem_Expired(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t)
	code := env.issueCode(t, client)

	env.codes.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err := env.codes.Redeem(t.Context(), redeemReq(client, code))
	assert.ErrorIs(t, err, autherrors.ErrInvalidGrant)
	assert.ErrorContains(t, err, "expired")

	// The expired code is deleted.
	ac, err := env.st.GetCode(state.HashSecret(code))
	require.NoError(t, err)
	assert.Nil(t, ac)
}

func TestRedeem_UnknownCode(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t)

	_, err := env.codes.Redeem(t.Context(), redeemReq(client, "does-not-exist"))
	assert.ErrorIs(t, err, autherrors.ErrInvalidGrant)
}

func TestRedeem_BindingMismatches(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t)
	other := env.registerClient(t)

	tests := []struct {
		name   string
		mutate func(*RedeemRequest)
	}{
		{"wrong verifier", func(r *RedeemRequest) { r.Verifier = "not-the-verifier" }},
		{"wrong client", func(r *RedeemRequest) { r.ClientID = other.ClientID }},
		{"wrong redirect", func(r *RedeemRequest) { r.RedirectURI = "https://app.example.com/other" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := env.issueCode(t, client)

			req := redeemReq(client, code)
			tt.mutate(&req)

			_, err := env.codes.Redeem(t.Context(), req)
			assert.ErrorIs(t, err, autherrors.ErrInvalidGrant)

			// A rejected attempt leaves the code redeemable.
			_, err = env.codes.Redeem(t.Context(), redeemReq(client, code))
			assert.NoError(t, err)
		})
	}
}

func TestRedeem_RejectionsAreLoggedWithBinding(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t)

	var buf bytes.Buffer
	env.codes.logger = slog.New(slog.NewTextHandler(&buf, nil))

	code := env.issueCode(t, client)
	req := redeemReq(client, code)
	req.RedirectURI = "https://app.example.com/other"
	req.SourceIP = "203.0.113.9"

	_, err := env.codes.Redeem(t.Context(), req)
	require.ErrorIs(t, err, autherrors.ErrInvalidGrant)

	out := buf.String()
	assert.Contains(t, out, "ip=203.0.113.9")
	assert.Contains(t, out, "redirect_uri=https://app.example.com/other")
	assert.Contains(t, out, "bound_redirect_uri="+testRedirectURI)
	assert.Contains(t, out, "bound_client_id="+client.ClientID)

	buf.Reset()

	expired := env.issueCode(t, client)
	env.codes.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	req = redeemReq(client, expired)
	req.SourceIP = "198.51.100.4"

	_, err = env.codes.Redeem(t.Context(), req)
	require.ErrorIs(t, err, autherrors.ErrInvalidGrant)

	out = buf.String()
	assert.Contains(t, out, "code redemption rejected")
	assert.Contains(t, out, "ip=198.51.100.4")
	assert.Contains(t, out, "bound_client_id="+client.ClientID)

	buf.Reset()

	_, err = env.codes.Redeem(t.Context(), RedeemRequest{
		Code: "does-not-exist", Verifier: testVerifier, ClientID: client.ClientID, SourceIP: "192.0.2.1",
	})
	require.ErrorIs(t, err, autherrors.ErrInvalidGrant)
	assert.Contains(t, buf.String(), "ip=192.0.2.1")
	assert.NotContains(t, buf.String(), "bound_client_id")
}

func TestRedeem_MissingParams(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t)

	_, err := env.codes.Redeem(t.Context(), RedeemRequest{ClientID: client.ClientID, Verifier: testVerifier})
	assert.ErrorIs(t, err, autherrors.ErrValidation)

	_, err = env.codes.Redeem(t.Context(), RedeemRequest{ClientID: client.ClientID, Code: "abc"})
	assert.ErrorIs(t, err, autherrors.ErrValidation)
}

func TestRedeem_OmittedRedirectURI(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t)
	code := env.issueCode(t, client)

	req := redeemReq(client, code)
	req.RedirectURI = ""

	_, err := env.codes.Redeem(t.Context(), req)
	assert.NoError(t, err)
}

func TestRedeem_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t)
	code := env.issueCode(t, client)

	const attempts = 16

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		grants    atomic.Int32
	)

	for range attempts {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := env.codes.Redeem(t.Context(), redeemReq(client, code))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, autherrors.ErrInvalidGrant):
				grants.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(attempts-1), grants.Load())
}
