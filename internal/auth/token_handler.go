package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	autherrors "github.com/alexjbarnes/status-mcp/internal/errors"
	"github.com/alexjbarnes/status-mcp/internal/models"
)

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	CodeVerifier string `json:"code_verifier"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func parseTokenRequest(w http.ResponseWriter, r *http.Request) (tokenRequest, error) {
	var req tokenRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	// Support both JSON and form-encoded bodies.
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, invalidRequest("invalid request body")
		}

		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, invalidRequest("invalid form data")
	}

	return tokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Code:         r.PostForm.Get("code"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		CodeVerifier: r.PostForm.Get("code_verifier"),
		ClientID:     r.PostForm.Get("client_id"),
		ClientSecret: r.PostForm.Get("client_secret"),
	}, nil
}

// HandleToken returns the /token handler. Only the authorization_code
// grant is supported.
func HandleToken(registry *Registry, codes *CodeIssuer, tokens *TokenService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseTokenRequest(w, r)
		if err != nil {
			writeOAuthError(w, err)
			return
		}

		if req.GrantType != models.GrantTypeAuthorizationCode {
			writeJSONError(w, http.StatusBadRequest, codeUnsupportedGrantType, "only authorization_code is supported")
			return
		}

		if req.ClientID == "" {
			writeOAuthError(w, invalidRequest("client_id is required"))
			return
		}

		if _, err := registry.Authenticate(req.ClientID, req.ClientSecret); err != nil {
			logger.Warn("token request client authentication failed",
				slog.String("client_id", req.ClientID),
				slog.String("ip", remoteIP(r)),
			)
			writeOAuthError(w, err)

			return
		}

		connectionID, err := codes.Redeem(r.Context(), RedeemRequest{
			Code:        req.Code,
			Verifier:    req.CodeVerifier,
			ClientID:    req.ClientID,
			RedirectURI: req.RedirectURI,
			SourceIP:    remoteIP(r),
		})
		if err != nil {
			var oe *OAuthError
			if !errors.As(err, &oe) {
				logger.Error("code redemption failed", slog.String("error", err.Error()))
			}

			writeOAuthError(w, err)

			return
		}

		cred, err := tokens.Issue(r.Context(), connectionID, req.ClientID)
		if err != nil {
			logger.Error("issuing token failed",
				slog.String("connection_id", connectionID),
				slog.String("error", err.Error()),
			)
			writeJSONError(w, autherrors.HTTPStatus(err), codeServerError, "unable to issue token")

			return
		}

		logger.Info("token issued",
			slog.String("connection_id", connectionID),
			slog.String("client_id", req.ClientID),
		)

		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken: cred.AccessToken,
			TokenType:   "Bearer",
			ExpiresIn:   int(tokens.TTL().Seconds()),
		})
	}
}
