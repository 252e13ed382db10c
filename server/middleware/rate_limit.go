// Package middleware holds the echo middleware shared across API routes.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/dwellify/dwellify/server/auth"
)

// RateLimiter tracks a token bucket per caller. Advisory calls fan out to
// paid gateways, so the per-caller budget is deliberately small.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter

	rps   rate.Limit
	burst int
}

// NewRateLimiter creates a rate limiter allowing rps requests per second
// with the given burst per caller.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &RateLimiter{
		limits: make(map[string]*rate.Limiter),
		rps:    rate.Limit(rps),
		burst:  burst,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limits[key]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rl.rps, rl.burst)
	rl.limits[key] = limiter
	return limiter
}

// Allow checks whether a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Middleware returns an echo middleware keying the bucket by caller
// identity, falling back to the remote address for unauthenticated routes.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if identity, ok := auth.IdentityFromContext(c.Request().Context()); ok {
				key = identity.OrgID + "/" + identity.UserID
			}
			if !rl.Allow(key) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// cleanupInterval bounds how long idle buckets are kept.
const cleanupInterval = 10 * time.Minute

// flush drops every bucket. Callers that kept sending simply get a fresh
// full bucket on their next request.
func (rl *RateLimiter) flush() {
	rl.mu.Lock()
	rl.limits = make(map[string]*rate.Limiter)
	rl.mu.Unlock()
}

// StartCleanup drops all buckets periodically so the map does not grow
// without bound. Stops when done is closed.
func (rl *RateLimiter) StartCleanup(done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.flush()
			case <-done:
				return
			}
		}
	}()
}
