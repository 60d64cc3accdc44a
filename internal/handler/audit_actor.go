package handler

import (
	"net/http"
	"strings"

	"site-inspector/internal/authz"
	"site-inspector/internal/middleware"
	"site-inspector/internal/model"
)

// callerFromRequest returns the zero Caller for anonymous requests; the
// evaluator denies it.
func callerFromRequest(r *http.Request) authz.Caller {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	return authz.FromClaims(claims)
}

func clientInfo(r *http.Request) model.ClientInfo {
	return model.ClientInfo{
		IP:        middleware.RequestClientIP(r),
		UserAgent: strings.TrimSpace(r.UserAgent()),
	}
}
