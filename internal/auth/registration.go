package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// registrationResponse is the DCR response (RFC 7591 §3.2.1).
type registrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   *int64   `json:"client_secret_expires_at,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope,omitempty"`
}

// HandleRegistration returns the /register handler.
func HandleRegistration(registry *Registry, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegistrationRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, codeInvalidClientMetadata, "invalid request body")
			return
		}

		client, secret, err := registry.Register(req, remoteIP(r))
		if err != nil {
			if errors.Is(err, ErrRegistryFull) {
				writeJSONError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "client registration is temporarily unavailable")

				return
			}

			var oe *OAuthError
			if !errors.As(err, &oe) {
				logger.Error("registration failed", slog.String("error", err.Error()))
			}

			writeOAuthError(w, err)

			return
		}

		resp := registrationResponse{
			ClientID:                client.ClientID,
			ClientSecret:            secret,
			ClientIDIssuedAt:        client.CreatedAt.Unix(),
			ClientName:              client.ClientName,
			RedirectURIs:            client.RedirectURIs,
			GrantTypes:              client.GrantTypes,
			ResponseTypes:           client.ResponseTypes,
			TokenEndpointAuthMethod: client.TokenEndpointAuthMethod,
			Scope:                   client.Scope,
		}

		if secret != "" {
			never := int64(0)
			resp.ClientSecretExpiresAt = &never
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}
