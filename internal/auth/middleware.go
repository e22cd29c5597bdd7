package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// authClientKey is a context key for the authenticated client.
type authClientKey struct{}

// ClientFromContext returns the authenticated client claims from the request
// context. Returns nil if the request is not authenticated.
func ClientFromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(authClientKey{}).(*Claims); ok {
		return c
	}
	return nil
}

// Middleware validates JWT access tokens on API routes.
// The token exchange path, websocket paths (the WS handler validates its own
// query-param token), and non-API paths (healthz, readyz, metrics) are skipped.
func Middleware(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			if strings.HasPrefix(r.URL.Path, "/api/v1/ws/") {
				next.ServeHTTP(w, r)
				return
			}
			if r.URL.Path == "/api/v1/auth/token" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := tokens.Validate(tokenString)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired access token")
				return
			}

			ctx := context.WithValue(r.Context(), authClientKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
