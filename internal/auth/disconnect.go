package auth

import (
	"errors"
	"log/slog"
	"net/http"
)

// HandleDisconnect returns the DELETE /connections/current handler. It
// must run behind the credential middleware. The presented credential is
// revoked where it can be, then the connection is deleted along with its
// outstanding codes, so every credential bound to it stops resolving.
// Global keys carry no connection and are refused.
func HandleDisconnect(tokens *TokenService, keys *APIKeyService, connections ConnectionStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := ResolutionFrom(r.Context())
		if res == nil || res.ConnectionID == "" {
			writeJSONError(w, http.StatusBadRequest, codeInvalidRequest, "request was not authenticated with a connection credential")
			return
		}

		switch res.Scheme {
		case SchemeBearer:
			cand, _ := ExtractCredential(r)
			if err := tokens.Revoke(r.Context(), cand.Value); err != nil && !errors.Is(err, ErrNotRevocable) {
				logger.Error("disconnect: revoking session", slog.String("error", err.Error()))
				writeJSONError(w, http.StatusInternalServerError, codeServerError, "unable to revoke session")

				return
			}
		case SchemeUserKey:
			if _, err := keys.Revoke(r.Context(), res.KeyID); err != nil {
				logger.Error("disconnect: revoking api key", slog.String("error", err.Error()))
				writeJSONError(w, http.StatusInternalServerError, codeServerError, "unable to revoke api key")

				return
			}
		}

		if err := connections.DeleteConnection(res.ConnectionID); err != nil {
			logger.Error("disconnect: deleting connection",
				slog.String("connection_id", res.ConnectionID),
				slog.String("error", err.Error()),
			)
			writeJSONError(w, http.StatusInternalServerError, codeServerError, "unable to delete connection")

			return
		}

		logger.Info("connection deleted",
			slog.String("connection_id", res.ConnectionID),
			slog.String("scheme", res.Scheme),
			slog.String("ip", RequestRemoteIP(r.Context())),
		)

		w.WriteHeader(http.StatusNoContent)
	}
}
