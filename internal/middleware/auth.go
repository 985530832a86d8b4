package middleware

import (
	"context"
	"net/http"

	"github.com/okrtools/goalpost/internal/domain/auth"
	"github.com/okrtools/goalpost/internal/service"
)

type apiKeyCtxKey struct{}

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health": true,
}

// Auth returns middleware that validates the X-API-Key header. When enabled
// is false every request passes through unauthenticated. A rejected request
// has no side effects beyond the 401 response.
func Auth(authSvc *service.AuthService, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			rawKey := r.Header.Get("X-API-Key")
			if rawKey == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"api key required"}`))
				return
			}

			key, err := authSvc.ValidateKey(r.Context(), rawKey)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyCtxKey{}, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIKeyFromContext returns the authenticated API key, nil if absent.
func APIKeyFromContext(ctx context.Context) *auth.APIKey {
	key, _ := ctx.Value(apiKeyCtxKey{}).(*auth.APIKey)
	return key
}
