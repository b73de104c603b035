// Package errors defines the error taxonomy shared by the authorization
// layer. Callers wrap these sentinels with fmt.Errorf("...: %w") and map
// them to HTTP responses with HTTPStatus.
package errors

import (
	"errors"
	"net/http"
)

// Operator errors.
var (
	ErrConfig  = errors.New("server configuration error")
	ErrDecrypt = errors.New("unable to decrypt connection data")
)

// Client errors.
var (
	ErrValidation    = errors.New("invalid request")
	ErrInvalidGrant  = errors.New("invalid grant")
	ErrInvalidClient = errors.New("invalid client")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRateLimited   = errors.New("too many requests")
	ErrNotFound      = errors.New("not found")
)

// HTTPStatus returns the response status for an error produced by this
// module. Unknown errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidGrant), errors.Is(err, ErrInvalidClient):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether any error in err's chain matches target. It
// forwards to the standard library so callers importing this package
// under its default name do not also need the stdlib errors package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
