package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront-backend/internal/auth"
)

const testSecret = "test-secret-key-that-is-long-enough"

func principalEcho(t *testing.T, captured *auth.Principal) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate_NoCredentials_Anonymous(t *testing.T) {
	verifier := auth.NewVerifier(testSecret)
	authorizer := auth.NewAuthorizer(nil)

	var p auth.Principal
	handler := Authenticate(verifier, authorizer)(principalEcho(t, &p))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.RoleAnonymous, p.Role)
}

func TestAuthenticate_ValidToken_Customer(t *testing.T) {
	verifier := auth.NewVerifier(testSecret)
	authorizer := auth.NewAuthorizer(nil)

	token, err := verifier.Sign("user-1", "dana@example.com", time.Hour)
	require.NoError(t, err)

	var p auth.Principal
	handler := Authenticate(verifier, authorizer)(principalEcho(t, &p))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.RoleCustomer, p.Role)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "dana@example.com", p.Email)
}

func TestAuthenticate_AllowListedEmail_Admin(t *testing.T) {
	verifier := auth.NewVerifier(testSecret)
	authorizer := auth.NewAuthorizer([]string{"dana@example.com"})

	token, err := verifier.Sign("user-1", "dana@example.com", time.Hour)
	require.NoError(t, err)

	var p auth.Principal
	handler := Authenticate(verifier, authorizer)(principalEcho(t, &p))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, auth.RoleAdmin, p.Role)
}

func TestAuthenticate_InvalidToken_Rejected(t *testing.T) {
	verifier := auth.NewVerifier(testSecret)
	authorizer := auth.NewAuthorizer(nil)

	var p auth.Principal
	handler := Authenticate(verifier, authorizer)(principalEcho(t, &p))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireCredential_AuthenticatedPasses(t *testing.T) {
	handler := RequireCredential(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	ctx := context.WithValue(req.Context(), PrincipalContextKey, auth.Principal{Role: auth.RoleCustomer, Email: "a@x.com"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireCredential_APIKeyPassesAsAnonymous(t *testing.T) {
	var p auth.Principal
	handler := RequireCredential([]string{"svc-key"})(principalEcho(t, &p))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("X-API-Key", "svc-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.RoleAnonymous, p.Role)
}

func TestRequireCredential_UnknownKeyRejected(t *testing.T) {
	handler := RequireCredential([]string{"svc-key"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireCredential_NoCredentialRejected(t *testing.T) {
	handler := RequireCredential(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, ExtractToken(req))

	req.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", ExtractToken(req))

	req.Header.Set("Authorization", "Basic abc123")
	assert.Empty(t, ExtractToken(req))
}
