package apierror

import (
	"fmt"
	"net/http"
	"strings"
)

type APIError struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Details    string   `json:"details,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	HTTPStatus int      `json:"-"`

	cause error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	switch {
	case e.Details != "":
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	case len(e.Errors) > 0:
		return fmt.Sprintf("%s: %s [%s]", e.Code, e.Message, strings.Join(e.Errors, "; "))
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the sentinel the error was built from, if any.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// Wrap builds an APIError that still matches cause with errors.Is.
func Wrap(cause error, code string, message string, status int) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: status, cause: cause}
}

// Validation returns a 400 carrying one message per offending field.
func Validation(cause error, messages ...string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    "One or more validation errors occurred",
		Errors:     messages,
		HTTPStatus: http.StatusBadRequest,
		cause:      cause,
	}
}
