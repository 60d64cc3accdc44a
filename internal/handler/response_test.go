package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-inspector/internal/middleware"
	"site-inspector/internal/model"
	"site-inspector/internal/validate"
)

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", validate.Fail("bad"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bare validation sentinel", model.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"duplicate", model.ErrUserAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
		{"credentials", model.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"token", model.ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"unauthorized", model.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"current password", model.ErrInvalidCurrentPassword, http.StatusBadRequest, "INVALID_CURRENT_PASSWORD"},
		{"forbidden wrapped", fmt.Errorf("%w: not_owner", model.ErrForbidden), http.StatusForbidden, "FORBIDDEN"},
		{"visit", model.ErrVisitNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"site", model.ErrSiteNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"transition", model.ErrInvalidTransition, http.StatusBadRequest, "INVALID_TRANSITION"},
		{"store", fmt.Errorf("find user: %w", errors.Join(model.ErrStoreUnavailable, errors.New("dial tcp: refused"))), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			require.Equal(t, tt.status, rec.Code)
			var body model.APIResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestWriteErrorHidesStoreDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.Join(model.ErrStoreUnavailable, errors.New("password=hunter2 host=db")))

	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.Contains(t, rec.Body.String(), "Unexpected server error")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@example.com","role":"Admin"}`))
	rec := httptest.NewRecorder()

	var payload model.ForgotPasswordRequest
	err := decodeJSON(rec, req, &payload)
	require.Error(t, err)

	writeError(rec, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClientInfoUsesResolvedClientIP(t *testing.T) {
	var info model.ClientInfo
	h := middleware.ClientIP([]netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")})(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { info = clientInfo(r) }))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.1.1:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	req.Header.Set("User-Agent", "inspector-app/2.1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.5", info.IP)
	assert.Equal(t, "inspector-app/2.1", info.UserAgent)
}

func TestClientInfoIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.20:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")

	assert.Equal(t, "198.51.100.20", clientInfo(req).IP)
}

func TestCallerFromAnonymousRequest(t *testing.T) {
	caller := callerFromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, caller.Valid())
}
