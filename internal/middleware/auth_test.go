package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-inspector/internal/model"
)

type stubValidator struct {
	claims *model.AuthClaims
}

func (s stubValidator) ValidateAccessToken(token string) (*model.AuthClaims, error) {
	if token != "good" {
		return nil, model.ErrInvalidToken
	}
	return s.claims, nil
}

func TestRequireAuth(t *testing.T) {
	claims := &model.AuthClaims{UserID: "u1", Role: model.RoleEngineer, Type: "access"}
	mw := NewAuthMiddleware(stubValidator{claims: claims})

	var seen *model.AuthClaims
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "bad token", header: "Bearer nope", status: http.StatusUnauthorized, code: "INVALID_TOKEN"},
		{name: "valid", header: "bearer good", status: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.code == "" {
				assert.Equal(t, claims, seen)
				return
			}

			var body model.APIResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.Nil(t, seen)
		})
	}
}

func TestRequireRoles(t *testing.T) {
	mw := NewAuthMiddleware(stubValidator{})
	handler := mw.RequireRoles(model.RoleAdmin)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	engineer := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	engineer = engineer.WithContext(WithClaims(engineer.Context(), &model.AuthClaims{UserID: "e", Role: model.RoleEngineer}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, engineer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	admin = admin.WithContext(WithClaims(admin.Context(), &model.AuthClaims{UserID: "a", Role: model.RoleAdmin}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body model.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
}

func TestLoggingSetsRequestID(t *testing.T) {
	handler := Logging(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "6f1c3b0e-8a53-4a53-9c55-2b7f0d6f5c11")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "6f1c3b0e-8a53-4a53-9c55-2b7f0d6f5c11", rec.Header().Get(requestIDHeader))
}
