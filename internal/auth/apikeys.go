package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	autherrors "github.com/alexjbarnes/status-mcp/internal/errors"
	"github.com/alexjbarnes/status-mcp/internal/fields"
	"github.com/alexjbarnes/status-mcp/internal/models"
	"github.com/alexjbarnes/status-mcp/internal/state"
	"github.com/google/uuid"
)

// APIKeyPrefix marks user-bound API keys so the resolver can recognise
// them without a store lookup.
const APIKeyPrefix = "smk_"

// slowTouch is how long a lastUsedAt update may take before it is
// reported as slow.
const slowTouch = 5 * time.Second

// APIKeyService issues, authenticates and revokes user-bound API keys.
type APIKeyService struct {
	store   APIKeyStore
	cipher  ConfigCipher
	table   *fields.Table
	enabled bool
	logger  *slog.Logger
	now     func() time.Time
}

// NewAPIKeyService creates the API key service. When enabled is false
// issuance answers 404 and the resolver ignores smk_ keys.
func NewAPIKeyService(store APIKeyStore, cipher ConfigCipher, table *fields.Table, enabled bool, logger *slog.Logger) *APIKeyService {
	return &APIKeyService{
		store:   store,
		cipher:  cipher,
		table:   table,
		enabled: enabled,
		logger:  logger,
		now:     time.Now,
	}
}

// Enabled reports whether user-bound keys are turned on.
func (s *APIKeyService) Enabled() bool {
	return s.enabled
}

// Issue encrypts cfg into a new connection and binds a fresh key to it.
// It returns the raw key, shown exactly once, and the key ID.
func (s *APIKeyService) Issue(_ context.Context, displayName string, cfg models.TenantConfig, sourceIP string) (string, string, error) {
	if !s.cipher.Ready() {
		return "", "", fmt.Errorf("%w: MASTER_KEY is not set", autherrors.ErrConfig)
	}

	normalized := s.table.Extract(func(name string) string { return cfg[name] })

	if problems := s.table.Validate(normalized); len(problems) > 0 {
		msgs := make([]string, len(problems))
		for i, p := range problems {
			msgs[i] = p.String()
		}

		return "", "", &ParamError{Problems: msgs}
	}

	blob, err := s.cipher.Encrypt(normalized)
	if err != nil {
		return "", "", fmt.Errorf("encrypting connection config: %w", err)
	}

	now := s.now().UTC()
	conn := models.Connection{
		ID:              uuid.NewString(),
		DisplayName:     fields.Normalize(displayName),
		EncryptedConfig: blob,
		ConfigVersion:   1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	raw := APIKeyPrefix + RandomHex(32)
	ak := models.APIKey{
		ID:           uuid.NewString(),
		ConnectionID: conn.ID,
		KeyHash:      state.HashSecret(raw),
		CreatedIP:    sourceIP,
		CreatedAt:    now,
	}

	if err := s.store.SaveConnectionWithAPIKey(conn, ak); err != nil {
		return "", "", fmt.Errorf("saving api key: %w", err)
	}

	s.logger.Info("api key issued",
		slog.String("key_id", ak.ID),
		slog.String("connection_id", conn.ID),
		slog.String("ip", sourceIP),
	)

	return raw, ak.ID, nil
}

// Authenticate returns the active key matching raw. Unknown, revoked
// and malformed keys wrap ErrUnauthorized. A successful match records
// lastUsedAt in the background.
func (s *APIKeyService) Authenticate(_ context.Context, raw string) (*models.APIKey, error) {
	if !strings.HasPrefix(raw, APIKeyPrefix) {
		return nil, fmt.Errorf("%w: not a user api key", autherrors.ErrUnauthorized)
	}

	ak, err := s.store.GetAPIKey(state.HashSecret(raw))
	if err != nil {
		return nil, fmt.Errorf("loading api key: %w", err)
	}

	if ak == nil {
		return nil, fmt.Errorf("%w: unknown api key", autherrors.ErrUnauthorized)
	}

	if !ak.Active() {
		return nil, fmt.Errorf("%w: api key revoked", autherrors.ErrUnauthorized)
	}

	s.touch(ak.KeyHash)

	return ak, nil
}

// touch updates lastUsedAt without blocking the request. Failures are
// logged and otherwise ignored.
func (s *APIKeyService) touch(keyHash string) {
	at := s.now().UTC()

	go func() {
		start := time.Now()
		err := s.store.TouchAPIKey(keyHash, at)

		switch elapsed := time.Since(start); {
		case err != nil:
			s.logger.Warn("updating api key last use", slog.String("error", err.Error()))
		case elapsed > slowTouch:
			s.logger.Warn("updating api key last use was slow", slog.Duration("elapsed", elapsed))
		}
	}()
}

// Revoke revokes the key with id. It reports whether a key was newly
// revoked.
func (s *APIKeyService) Revoke(_ context.Context, id string) (bool, error) {
	revoked, err := s.store.RevokeAPIKey(id, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("revoking api key: %w", err)
	}

	if revoked {
		s.logger.Info("api key revoked", slog.String("key_id", id))
	}

	return revoked, nil
}

// RevokeInactive revokes every key unused for longer than idle.
func (s *APIKeyService) RevokeInactive(_ context.Context, idle time.Duration) (int, error) {
	now := s.now().UTC()

	n, err := s.store.RevokeInactiveAPIKeys(now.Add(-idle), now)
	if err != nil {
		return 0, fmt.Errorf("revoking inactive api keys: %w", err)
	}

	s.logger.Info("inactive api keys revoked",
		slog.Int("count", n),
		slog.Duration("idle", idle),
	)

	return n, nil
}

type issueAPIKeyRequest struct {
	DisplayName string              `json:"display_name"`
	Config      models.TenantConfig `json:"config"`
}

type issueAPIKeyResponse struct {
	APIKey string `json:"api_key"`
	ID     string `json:"id"`
}

// HandleIssueAPIKey returns the POST /api-keys handler.
func HandleIssueAPIKey(svc *APIKeyService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !svc.Enabled() {
			writeJSONError(w, http.StatusNotFound, "not_found", "user api keys are not enabled")
			return
		}

		var req issueAPIKeyRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
			return
		}

		raw, id, err := svc.Issue(r.Context(), req.DisplayName, req.Config, remoteIP(r))
		if err != nil {
			var pe *ParamError
			if errors.As(err, &pe) {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error":             codeInvalidRequest,
					"error_description": "missing or invalid configuration fields",
					"problems":          pe.Problems,
				})

				return
			}

			logger.Error("issuing api key failed", slog.String("error", err.Error()))
			writeJSONError(w, http.StatusInternalServerError, codeServerError, "unable to issue api key")

			return
		}

		writeJSON(w, http.StatusCreated, issueAPIKeyResponse{APIKey: raw, ID: id})
	}
}

// HandleRevokeCurrentAPIKey returns the DELETE /api-keys/current
// handler. It must run behind the credential middleware and revokes the
// user key that authenticated the request.
func HandleRevokeCurrentAPIKey(svc *APIKeyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := ResolutionFrom(r.Context())
		if res == nil || res.Scheme != SchemeUserKey {
			writeJSONError(w, http.StatusBadRequest, codeInvalidRequest, "request was not authenticated with a user api key")
			return
		}

		if _, err := svc.Revoke(r.Context(), res.KeyID); err != nil {
			writeJSONError(w, http.StatusInternalServerError, codeServerError, "unable to revoke api key")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
