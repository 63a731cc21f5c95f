package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/storefront-backend/internal/auth"
)

type contextKey string

const (
	// PrincipalContextKey holds the resolved auth.Principal for the request.
	PrincipalContextKey contextKey = "principal"
)

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ExtractToken extracts the bearer token from the Authorization header.
func ExtractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// Authenticate resolves the caller identity once per request and stores it
// in the context. A request without credentials proceeds as Anonymous;
// handlers decide what that principal may do. A request that presents a
// bearer token which fails verification is rejected outright.
func Authenticate(verifier *auth.Verifier, authorizer *auth.Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.Anonymous
			if tokenString := ExtractToken(r); tokenString != "" {
				claims, err := verifier.Verify(tokenString)
				if err != nil {
					respondError(w, "invalid token", http.StatusUnauthorized)
					return
				}
				p = authorizer.Resolve(auth.Principal{
					Role:   auth.RoleCustomer,
					UserID: claims.UserID,
					Email:  claims.Email,
				})
			}

			ctx := context.WithValue(r.Context(), PrincipalContextKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCredential admits only requests that carry a verified identity or
// a recognized service API key. Service callers pass the gate but remain
// Anonymous, so every principal-gated check downstream still fails closed.
func RequireCredential(apiKeys []string) func(http.Handler) http.Handler {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if PrincipalFromContext(r.Context()).Authenticated() {
				next.ServeHTTP(w, r)
				return
			}
			if key := r.Header.Get("X-API-Key"); key != "" {
				if _, ok := keys[key]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondError(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

// PrincipalFromContext retrieves the resolved principal, defaulting to
// Anonymous when the middleware did not run.
func PrincipalFromContext(ctx context.Context) auth.Principal {
	if p, ok := ctx.Value(PrincipalContextKey).(auth.Principal); ok {
		return p
	}
	return auth.Anonymous
}
