package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alexjbarnes/status-mcp/internal/ratelimit"
)

type contextKey int

const (
	ctxResolution contextKey = iota
	ctxRemoteIP
)

// ResolutionFrom returns the authenticated tenant from the context, or nil.
func ResolutionFrom(ctx context.Context) *Resolution {
	v, _ := ctx.Value(ctxResolution).(*Resolution)
	return v
}

// RequestRemoteIP returns the client IP from the context, or "".
func RequestRemoteIP(ctx context.Context) string {
	v, _ := ctx.Value(ctxRemoteIP).(string)
	return v
}

// WithResolution returns a copy of ctx carrying res.
func WithResolution(ctx context.Context, res *Resolution) context.Context {
	return context.WithValue(ctx, ctxResolution, res)
}

// Middleware returns HTTP middleware that resolves the request's single
// candidate credential through resolvers in order; the first match wins.
// Unauthenticated requests get a 401 with the WWW-Authenticate header
// pointing to the protected resource metadata URL (RFC 9728 Section 5.1).
// A resolved credential is then counted against limiter under its
// identity; limiter may be nil.
func Middleware(resolvers []Resolver, limiter ratelimit.Limiter, logger *slog.Logger, serverURL string) func(http.Handler) http.Handler {
	metadataURL := serverURL + ProtectedResourceMetadataPath
	// RFC 6750 Section 3.1: no error attribute when no token was provided.
	wwwAuthNoToken := fmt.Sprintf(`Bearer resource_metadata="%s"`, metadataURL)
	wwwAuthInvalid := fmt.Sprintf(`Bearer error="invalid_token", resource_metadata="%s"`, metadataURL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteIP(r)

			cand, ok := ExtractCredential(r)
			if !ok {
				logger.Debug("middleware: no credential",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("WWW-Authenticate", wwwAuthNoToken)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "authentication required")

				return
			}

			var res *Resolution

			for _, resolver := range resolvers {
				var err error

				res, err = resolver.Resolve(r.Context(), cand)
				if err != nil {
					logger.Error("middleware: credential resolution failed",
						slog.String("source", cand.Source.String()),
						slog.String("ip", ip),
						slog.String("error", err.Error()),
					)
					writeJSONError(w, http.StatusInternalServerError, codeServerError, "unable to resolve credentials")

					return
				}

				if res != nil {
					break
				}
			}

			if res == nil {
				logger.Info("middleware: invalid credentials",
					slog.String("source", cand.Source.String()),
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("WWW-Authenticate", wwwAuthInvalid)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")

				return
			}

			if limiter != nil {
				allowed, err := limiter.Allow(r.Context(), res.Identity())
				switch {
				case err != nil:
					logger.Warn("rate limiter unavailable, allowing request",
						slog.String("limiter", "mcp"),
						slog.String("error", err.Error()),
					)
				case !allowed:
					logger.Warn("rate limited",
						slog.String("limiter", "mcp"),
						slog.String("scheme", res.Scheme),
						slog.String("ip", ip),
					)
					ratelimit.WriteTooManyRequests(w)

					return
				}
			}

			logger.Debug("middleware: authenticated",
				slog.String("scheme", res.Scheme),
				slog.String("connection_id", res.ConnectionID),
				slog.String("ip", ip),
			)

			ctx := WithResolution(r.Context(), res)
			ctx = context.WithValue(ctx, ctxRemoteIP, ip)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
