package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"site-inspector/internal/middleware"
	"site-inspector/internal/model"
	"site-inspector/internal/service"
	"site-inspector/internal/validate"
	"site-inspector/pkg/apierror"
)

type UserHandler struct {
	service *service.AuthService
}

func NewUserHandler(service *service.AuthService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		writeError(w, apierror.New("BAD_REQUEST", "user id is required", "id", http.StatusBadRequest))
		return
	}

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	var payload model.SetUserActiveRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if err := validate.Struct(&payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.SetUserActive(r.Context(), *claims, userID, *payload.IsActive, clientInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}
