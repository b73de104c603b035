// Package server provides HTTP server construction for status-mcp.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexjbarnes/status-mcp/internal/auth"
	"github.com/alexjbarnes/status-mcp/internal/fields"
	"github.com/alexjbarnes/status-mcp/internal/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

// Limiters holds one limiter per protected surface. Nil entries disable
// limiting for that surface.
type Limiters struct {
	Register ratelimit.Limiter
	Connect  ratelimit.Limiter
	Token    ratelimit.Limiter
	APIKeys  ratelimit.Limiter
	MCP      ratelimit.Limiter
}

// RouterConfig holds dependencies for building the HTTP router.
type RouterConfig struct {
	Registry    *auth.Registry
	Codes       *auth.CodeIssuer
	Tokens      *auth.TokenService
	APIKeys     *auth.APIKeyService
	Connections auth.ConnectionStore
	Resolvers   []auth.Resolver
	Fields      *fields.Table
	Limiters    Limiters
	MCPHandler  http.Handler
	Logger      *slog.Logger
	ServerURL   string
	// TrustProxyHeaders takes the client IP from X-Forwarded-For /
	// X-Real-IP. Only enable behind a proxy that sets them.
	TrustProxyHeaders bool
}

// NewRouter builds the router with discovery, registration, connect,
// token, API key and MCP endpoints. The MCP endpoint, key revocation and
// disconnect are protected by the credential resolution middleware.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)

	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}

	r.Use(middleware.Recoverer)

	limit := func(l ratelimit.Limiter, name string) func(http.Handler) http.Handler {
		if l == nil {
			return func(next http.Handler) http.Handler { return next }
		}

		return ratelimit.Middleware(l, name, ratelimit.ByIP, cfg.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Get(auth.ProtectedResourceMetadataPath, auth.HandleProtectedResourceMetadata(cfg.ServerURL))
	r.Get("/.well-known/oauth-authorization-server", auth.HandleServerMetadata(cfg.ServerURL))

	r.With(limit(cfg.Limiters.Register, "register")).Post("/register", auth.HandleRegistration(cfg.Registry, cfg.Logger))

	connect := auth.HandleConnect(cfg.Codes, cfg.Logger)
	r.Get("/connect", connect)
	r.With(limit(cfg.Limiters.Connect, "connect")).Post("/connect", connect)
	r.Get("/connect/schema", auth.HandleConnectSchema(cfg.Fields))

	r.With(limit(cfg.Limiters.Token, "token")).Post("/token", auth.HandleToken(cfg.Registry, cfg.Codes, cfg.Tokens, cfg.Logger))

	r.With(limit(cfg.Limiters.APIKeys, "api_keys")).Post("/api-keys", auth.HandleIssueAPIKey(cfg.APIKeys, cfg.Logger))

	authenticated := r.With(auth.Middleware(cfg.Resolvers, cfg.Limiters.MCP, cfg.Logger, cfg.ServerURL))
	authenticated.Delete("/api-keys/current", auth.HandleRevokeCurrentAPIKey(cfg.APIKeys))
	authenticated.Delete("/connections/current", auth.HandleDisconnect(cfg.Tokens, cfg.APIKeys, cfg.Connections, cfg.Logger))
	authenticated.Handle("/mcp", cfg.MCPHandler)

	return r
}

// New returns an http.Server with the timeouts used for every listener.
func New(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Run serves srv until ctx is cancelled, then shuts it down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)

	go func() {
		logger.Info("starting server", slog.String("listen", srv.Addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
			return
		}

		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	return <-errCh
}
