package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"site-inspector/internal/model"
	"site-inspector/pkg/apierror"
)

const maxBodyBytes = 1 << 20

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Message: message,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status, body := classify(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// classify maps err onto a status and envelope. Anything it does not
// recognise is logged and reported as a generic 500.
func classify(err error) (int, model.APIResponse) {
	body := model.APIResponse{Success: false, Code: "INTERNAL_ERROR", Message: "Unexpected server error"}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Errors = apiErr.Errors
		if apiErr.Details != "" && len(apiErr.Errors) == 0 {
			body.Errors = []string{apiErr.Details}
		}
		return apiErr.HTTPStatus, body
	}

	switch {
	case errors.Is(err, model.ErrValidation):
		body.Code, body.Message = "VALIDATION_ERROR", "One or more validation errors occurred"
		return http.StatusBadRequest, body
	case errors.Is(err, model.ErrUserAlreadyExists):
		body.Code, body.Message = "ALREADY_EXISTS", "A user with that email or username already exists"
		return http.StatusConflict, body
	case errors.Is(err, model.ErrInvalidCredentials):
		body.Code, body.Message = "INVALID_CREDENTIALS", "Invalid credentials"
		return http.StatusUnauthorized, body
	case errors.Is(err, model.ErrInvalidToken), errors.Is(err, model.ErrTokenNotFound):
		body.Code, body.Message = "INVALID_TOKEN", "Invalid or expired token"
		return http.StatusUnauthorized, body
	case errors.Is(err, model.ErrUnauthorized):
		body.Code, body.Message = "UNAUTHORIZED", "Authentication required"
		return http.StatusUnauthorized, body
	case errors.Is(err, model.ErrInvalidCurrentPassword):
		body.Code, body.Message = "INVALID_CURRENT_PASSWORD", "Current password is incorrect"
		return http.StatusBadRequest, body
	case errors.Is(err, model.ErrForbidden):
		body.Code, body.Message = "FORBIDDEN", "Access denied"
		return http.StatusForbidden, body
	case errors.Is(err, model.ErrUserNotFound):
		body.Code, body.Message = "NOT_FOUND", "User not found"
		return http.StatusNotFound, body
	case errors.Is(err, model.ErrSiteNotFound):
		body.Code, body.Message = "NOT_FOUND", "Site not found"
		return http.StatusNotFound, body
	case errors.Is(err, model.ErrVisitNotFound):
		body.Code, body.Message = "NOT_FOUND", "Visit not found"
		return http.StatusNotFound, body
	case errors.Is(err, model.ErrInvalidTransition):
		body.Code, body.Message = "INVALID_TRANSITION", "Visit is no longer pending"
		return http.StatusBadRequest, body
	}

	slog.Error("unhandled error in writeError", "error", err)
	return http.StatusInternalServerError, body
}

// decodeJSON reads a single JSON object from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierror.New("BAD_REQUEST", "invalid JSON body", err.Error(), http.StatusBadRequest)
	}
	return nil
}
