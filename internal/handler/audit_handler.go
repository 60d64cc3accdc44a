package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"site-inspector/internal/model"
	"site-inspector/internal/service"
	"site-inspector/internal/validate"
)

const (
	defaultAuditPage  = 1
	defaultAuditLimit = 50
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(service *service.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	query, err := auditQueryFromURL(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	items, meta, err := h.service.Query(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuditListData{Items: items}, &meta)
}

// auditQueryFromURL rejects malformed paging and filter values instead of
// silently falling back to defaults. Oversized limits are clamped later.
func auditQueryFromURL(values url.Values) (model.AuditQuery, error) {
	var problems []string

	page, ok := positiveParam(values, "page", defaultAuditPage)
	if !ok {
		problems = append(problems, "The field 'page' must be a positive integer.")
	}
	limit, ok := positiveParam(values, "limit", defaultAuditLimit)
	if !ok {
		problems = append(problems, "The field 'limit' must be a positive integer.")
	}
	if len(problems) > 0 {
		return model.AuditQuery{}, validate.Fail(problems...)
	}

	query := model.AuditQuery{
		Action:  strings.TrimSpace(values.Get("action")),
		ActorID: strings.TrimSpace(values.Get("actor_id")),
		Status:  strings.ToLower(strings.TrimSpace(values.Get("status"))),
		From:    strings.TrimSpace(values.Get("from")),
		To:      strings.TrimSpace(values.Get("to")),
		Page:    page,
		Limit:   limit,
	}
	if err := validate.Struct(&query); err != nil {
		return model.AuditQuery{}, err
	}
	return query, nil
}

func positiveParam(values url.Values, key string, fallback int) (int, bool) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}
