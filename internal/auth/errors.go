package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	autherrors "github.com/alexjbarnes/status-mcp/internal/errors"
)

// OAuth error codes used in JSON error bodies.
const (
	codeInvalidRequest        = "invalid_request"
	codeInvalidGrant          = "invalid_grant"
	codeInvalidClient         = "invalid_client"
	codeUnsupportedGrantType  = "unsupported_grant_type"
	codeInvalidRedirectURI    = "invalid_redirect_uri"
	codeInvalidClientMetadata = "invalid_client_metadata"
	codeServerError           = "server_error"
)

// OAuthError carries an OAuth error code and a user-facing description.
// Err classifies it in the error taxonomy for status mapping.
type OAuthError struct {
	Code        string
	Description string
	Err         error
}

func (e *OAuthError) Error() string {
	return e.Code + ": " + e.Description
}

func (e *OAuthError) Unwrap() error {
	return e.Err
}

func invalidGrant(description string) *OAuthError {
	return &OAuthError{Code: codeInvalidGrant, Description: description, Err: autherrors.ErrInvalidGrant}
}

func invalidRequest(description string) *OAuthError {
	return &OAuthError{Code: codeInvalidRequest, Description: description, Err: autherrors.ErrValidation}
}

// ParamError lists every problem found in a connect or API key request.
type ParamError struct {
	Problems []string
}

func (e *ParamError) Error() string {
	return "invalid parameters: " + strings.Join(e.Problems, "; ")
}

func (e *ParamError) Unwrap() error {
	return autherrors.ErrValidation
}

// writeOAuthError writes err as an OAuth JSON error body. Errors that
// are not OAuthErrors become a generic server_error so internal detail
// never reaches the client.
func writeOAuthError(w http.ResponseWriter, err error) {
	var oe *OAuthError
	if errors.As(err, &oe) {
		writeJSONError(w, autherrors.HTTPStatus(oe), oe.Code, oe.Description)
		return
	}

	writeJSONError(w, http.StatusInternalServerError, codeServerError, "internal server error")
}

func writeJSONError(w http.ResponseWriter, status int, errCode, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errCode,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// remoteIP extracts the IP address from r.RemoteAddr, stripping the
// port. Falls back to the raw value if parsing fails.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// RandomHex generates a cryptographically random hex string of the given byte length.
func RandomHex(byteLen int) string {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}

	return hex.EncodeToString(b)
}

// maxBodyBytes bounds JSON and form bodies on the auth endpoints.
const maxBodyBytes = 64 << 10
