package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/fixdoc/internal/api/respond"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per account
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewRateLimiter allows requestsPerHour per account with the given burst.
// A non-positive rate disables limiting.
func NewRateLimiter(requestsPerHour, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if requestsPerHour > 0 {
		limit = rate.Every(time.Hour / time.Duration(requestsPerHour))
	}
	return &RateLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether account may make another request now
func (r *RateLimiter) Allow(account string) bool {
	r.mu.Lock()
	l, ok := r.limiters[account]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[account] = l
	}
	r.mu.Unlock()
	return l.Allow()
}

// Middleware rejects requests over the account's budget. It must run after Auth.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.Allow(AccountID(c)) {
			c.Header("Retry-After", "60")
			respond.Abort(c, http.StatusTooManyRequests, respond.KindRateLimited, "rate limit exceeded, try again later")
			return
		}
		c.Next()
	}
}
