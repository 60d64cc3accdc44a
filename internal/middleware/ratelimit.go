package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	defaultGeneralRPM = 100
	defaultAuthRPM    = 10

	maxTrackedClients = 10000
	clientIdleTTL     = 10 * time.Minute

	authPathPrefix = "/api/v1/auth"
)

type clientLimiter struct {
	general *rate.Limiter
	auth    *rate.Limiter
}

// RateLimitMiddleware keeps one token bucket pair per client IP, as resolved
// by ClientIP. Idle
// clients fall out of the LRU after clientIdleTTL.
type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int
	mu         sync.Mutex
	clients    *lru.LRU[string, *clientLimiter]
}

// NewRateLimitMiddleware treats a negative generalRPM as unlimited. Zero
// values fall back to the defaults.
func NewRateLimitMiddleware(generalRPM int, authRPM int) *RateLimitMiddleware {
	if generalRPM == 0 {
		generalRPM = defaultGeneralRPM
	}
	if authRPM <= 0 {
		authRPM = defaultAuthRPM
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		clients:    lru.NewLRU[string, *clientLimiter](maxTrackedClients, nil, clientIdleTTL),
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := m.getLimiter(RequestClientIP(r))

		target := limiter.general
		if strings.HasPrefix(strings.ToLower(r.URL.Path), authPathPrefix) {
			target = limiter.auth
		}

		if target != nil && !target.Allow() {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) getLimiter(clientIP string) *clientLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Add refreshes the entry's TTL, so active clients keep their bucket.
	if limiter, ok := m.clients.Get(clientIP); ok {
		m.clients.Add(clientIP, limiter)
		return limiter
	}

	created := &clientLimiter{auth: newLimiter(m.authRPM)}
	if m.generalRPM > 0 {
		created.general = newLimiter(m.generalRPM)
	}
	m.clients.Add(clientIP, created)

	return created
}

func newLimiter(rpm int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}
