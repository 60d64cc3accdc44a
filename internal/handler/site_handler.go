package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"site-inspector/internal/model"
	"site-inspector/internal/service"
)

type SiteHandler struct {
	service *service.SiteService
}

func NewSiteHandler(service *service.SiteService) *SiteHandler {
	return &SiteHandler{service: service}
}

func (h *SiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateSiteRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	site, err := h.service.Create(r.Context(), callerFromRequest(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, site, nil)
}

func (h *SiteHandler) Get(w http.ResponseWriter, r *http.Request) {
	site, err := h.service.Get(r.Context(), callerFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, site, nil)
}
