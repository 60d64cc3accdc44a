package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"site-inspector/internal/model"
	"site-inspector/internal/service"
)

type VisitHandler struct {
	service *service.VisitService
}

func NewVisitHandler(service *service.VisitService) *VisitHandler {
	return &VisitHandler{service: service}
}

func (h *VisitHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateVisitRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	visit, err := h.service.Create(r.Context(), callerFromRequest(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, visit, nil)
}

func (h *VisitHandler) Get(w http.ResponseWriter, r *http.Request) {
	visit, err := h.service.Get(r.Context(), callerFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, visit, nil)
}

func (h *VisitHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload model.UpdateVisitRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	visit, err := h.service.UpdateNotes(r.Context(), callerFromRequest(r), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, visit, nil)
}

func (h *VisitHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var payload model.ChangeVisitStatusRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	visit, err := h.service.ChangeStatus(r.Context(), callerFromRequest(r), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, visit, nil)
}
