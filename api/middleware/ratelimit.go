package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/models"
	"golang.org/x/time/rate"
)

const (
	limiterIdle  = time.Hour
	limiterSweep = 5 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// callerLimits holds one token bucket per caller.
type callerLimits struct {
	cfg config.RateLimitConfig

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

func (l *callerLimits) get(id string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.entries[id] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (l *callerLimits) sweep(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, id)
		}
	}
}

// RateLimit applies a token bucket per API key, or per client IP when Auth
// did not run. Rejected requests get 429 with a Retry-After hint. Buckets
// idle for an hour are dropped.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	limits := &callerLimits{cfg: cfg, entries: make(map[string]*limiterEntry)}

	go func() {
		ticker := time.NewTicker(limiterSweep)
		defer ticker.Stop()
		for range ticker.C {
			limits.sweep(time.Now().Add(-limiterIdle))
		}
	}()

	return func(c *gin.Context) {
		id := c.GetString(APIKeyContextKey)
		if id == "" {
			id = c.ClientIP()
		}
		if !limits.get(id, time.Now()).Allow() {
			if cfg.RequestsPerSecond > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(1/cfg.RequestsPerSecond))))
			}
			abort(c, http.StatusTooManyRequests, models.ErrCodeRateLimited, "rate limit exceeded, please slow down")
			return
		}
		c.Next()
	}
}
