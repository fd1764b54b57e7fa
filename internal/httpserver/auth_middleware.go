package httpserver

import (
	"context"
	"net/http"
	"strings"

	"chatcore/internal/domain"
	"chatcore/internal/security"
)

type contextKey string

const profileContextKey contextKey = "currentProfile"

// WithProfile returns a new context carrying the calling user's profile.
func WithProfile(ctx context.Context, p *domain.Profile) context.Context {
	return context.WithValue(ctx, profileContextKey, p)
}

// CurrentProfile extracts the calling user's profile from context, if any.
func CurrentProfile(r *http.Request) *domain.Profile {
	if v := r.Context().Value(profileContextKey); v != nil {
		if p, ok := v.(*domain.Profile); ok {
			return p
		}
	}
	return nil
}

// AuthMiddleware validates the bearer token and attaches the caller's
// profile to the request context.
func AuthMiddleware(tokens *security.TokenService, profiles domain.ProfileRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or invalid Authorization header"})
				return
			}
			tokenStr := strings.TrimSpace(authHeader[len("Bearer "):])

			sub, err := tokens.Subject(tokenStr)
			if err != nil || sub == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}

			profile, err := profiles.GetByID(r.Context(), sub)
			if err != nil || profile == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unknown identity"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), profile)))
		})
	}
}
