package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type tokenRequest struct {
	APIKey string `json:"api_key"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// TokenHandler exchanges a valid API key for a bearer token.
// POST /api/v1/auth/token {"api_key": "..."}
func TokenHandler(svc *Service, logger *zap.Logger) http.HandlerFunc {
	log := logger.Named("auth")
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeAuthError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey == "" {
			writeAuthError(w, http.StatusBadRequest, "api_key is required")
			return
		}

		if err := svc.VerifyAPIKey(req.APIKey); err != nil {
			if errors.Is(err, ErrInvalidAPIKey) {
				log.Warn("api key rejected", zap.String("remote", r.RemoteAddr))
				writeAuthError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			writeAuthError(w, http.StatusInternalServerError, "verification failed")
			return
		}

		clientID := uuid.NewString()
		token, err := svc.Tokens().Issue(clientID)
		if err != nil {
			log.Error("token issue failed", zap.Error(err))
			writeAuthError(w, http.StatusInternalServerError, "token issue failed")
			return
		}

		log.Info("token issued", zap.String("client", clientID))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tokenResponse{
			Token:     token,
			ExpiresIn: int64(svc.Tokens().TokenTTL().Seconds()),
		})
	}
}
