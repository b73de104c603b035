package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	autherrors "github.com/alexjbarnes/status-mcp/internal/errors"
)

// KeyFunc derives the limiter key for a request.
type KeyFunc func(r *http.Request) string

// ByIP keys requests by the remote IP with the port stripped. Run
// chi's RealIP middleware first when behind a trusted proxy.
func ByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// Middleware rejects requests over the limit with 429. Limiter errors
// are logged and the request is let through.
func Middleware(l Limiter, name string, key KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)

			ok, err := l.Allow(r.Context(), k)
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request",
					slog.String("limiter", name),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)

				return
			}

			if !ok {
				logger.Warn("rate limited",
					slog.String("limiter", name),
					slog.String("key", k),
					slog.String("path", r.URL.Path),
				)
				WriteTooManyRequests(w)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WriteTooManyRequests writes the generic rate limit response.
func WriteTooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(autherrors.HTTPStatus(autherrors.ErrRateLimited))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             "rate_limited",
		"error_description": "too many requests, try again later",
	})
}
