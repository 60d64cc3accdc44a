package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"site-inspector/internal/model"
)

const defaultRequestTimeout = 30 * time.Second

// Timeout bounds each request and answers 503 with the JSON envelope when the
// handler overruns. Handlers see a context that is cancelled at the deadline.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	body, _ := json.Marshal(model.APIResponse{
		Success: false,
		Code:    "REQUEST_TIMEOUT",
		Message: "Request timed out",
	})

	return func(next http.Handler) http.Handler {
		guarded := http.TimeoutHandler(next, timeout, string(body))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Handlers that finish in time overwrite this with their own value.
			w.Header().Set("Content-Type", "application/json")
			guarded.ServeHTTP(w, r)
		})
	}
}
