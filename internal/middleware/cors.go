package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORS allows browser clients from origins. Bearer tokens travel in the
// Authorization header, so credentials stay disabled.
func CORS(origins []string) func(http.Handler) http.Handler {
	handler := cors.New(cors.Options{
		AllowedOrigins:   normalizeOrigins(origins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		MaxAge:           3600,
		AllowCredentials: false,
	})

	return handler.Handler
}

// normalizeOrigins drops trailing slashes and duplicates; browsers never send
// an Origin with a path, so "https://app.example/" would otherwise match nothing.
func normalizeOrigins(origins []string) []string {
	seen := make(map[string]struct{}, len(origins))
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
		if origin == "" {
			continue
		}
		if origin == "*" {
			return []string{"*"}
		}
		if _, dup := seen[origin]; dup {
			continue
		}
		seen[origin] = struct{}{}
		out = append(out, origin)
	}

	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
