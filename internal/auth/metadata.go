package auth

import (
	"encoding/json"
	"net/http"

	"github.com/alexjbarnes/status-mcp/internal/models"
)

// ProtectedResourceMetadataPath is where the RFC 9728 document is served.
const ProtectedResourceMetadataPath = "/.well-known/oauth-protected-resource"

// ProtectedResourceMetadata is the RFC 9728 response.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
}

// ServerMetadata is the RFC 8414 response.
type ServerMetadata struct {
	Issuer                                 string   `json:"issuer"`
	AuthorizationEndpoint                  string   `json:"authorization_endpoint"`
	TokenEndpoint                          string   `json:"token_endpoint"`
	RegistrationEndpoint                   string   `json:"registration_endpoint"`
	ResponseTypesSupported                 []string `json:"response_types_supported"`
	GrantTypesSupported                    []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported          []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported      []string `json:"token_endpoint_auth_methods_supported"`
	AuthorizationResponseIssParamSupported bool     `json:"authorization_response_iss_parameter_supported"`
}

// HandleProtectedResourceMetadata returns the /.well-known/oauth-protected-resource handler.
func HandleProtectedResourceMetadata(serverURL string) http.HandlerFunc {
	meta := ProtectedResourceMetadata{
		Resource:               serverURL,
		AuthorizationServers:   []string{serverURL},
		BearerMethodsSupported: []string{"header"},
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		writeMetadata(w, meta)
	}
}

// HandleServerMetadata returns the /.well-known/oauth-authorization-server handler.
func HandleServerMetadata(serverURL string) http.HandlerFunc {
	meta := ServerMetadata{
		Issuer:                                 serverURL,
		AuthorizationEndpoint:                  serverURL + "/connect",
		TokenEndpoint:                          serverURL + "/token",
		RegistrationEndpoint:                   serverURL + "/register",
		ResponseTypesSupported:                 []string{models.ResponseTypeCode},
		GrantTypesSupported:                    []string{models.GrantTypeAuthorizationCode},
		CodeChallengeMethodsSupported:          []string{models.CodeChallengeMethodS256},
		TokenEndpointAuthMethodsSupported:      []string{models.AuthMethodNone, models.AuthMethodClientSecretPost},
		AuthorizationResponseIssParamSupported: true,
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		writeMetadata(w, meta)
	}
}

func writeMetadata(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_ = json.NewEncoder(w).Encode(v)
}
