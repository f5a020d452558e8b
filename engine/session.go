package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Standing is a snapshot of the shared browser session's rate-limit state.
type Standing struct {
	Strikes      int
	CoolingDown  bool
	CooldownLeft time.Duration
}

// Session is the rate-limit standing shared by every slot of one browser
// profile. A rate-limit page seen by any slot is a signal for all of them:
// ReportRateLimit opens a cooldown window that every Wait honours.
type Session struct {
	limiter  *rate.Limiter
	cooldown time.Duration

	mu            sync.Mutex
	strikes       int
	cooldownUntil time.Time
	now           func() time.Time
}

// NewSession creates a session. perSecond <= 0 disables the pacing limiter;
// cooldown is the window opened by each reported rate limit.
func NewSession(perSecond float64, burst int, cooldown time.Duration) *Session {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Session{
		limiter:  rate.NewLimiter(limit, burst),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Wait blocks until an active cooldown has passed and the pacing limiter
// admits one more navigation.
func (s *Session) Wait(ctx context.Context) error {
	if left := s.cooldownLeft(); left > 0 {
		t := time.NewTimer(left)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return s.limiter.Wait(ctx)
}

// ReportRateLimit records a rate-limit detection and opens a cooldown.
func (s *Session) ReportRateLimit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strikes++
	until := s.now().Add(s.cooldown)
	if until.After(s.cooldownUntil) {
		s.cooldownUntil = until
	}
	slog.Warn("session: rate limit reported", "strikes", s.strikes, "cooldown", s.cooldown)
}

// Cooldown returns the configured cooldown window.
func (s *Session) Cooldown() time.Duration {
	return s.cooldown
}

// Strikes returns the number of rate limits reported so far.
func (s *Session) Strikes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strikes
}

// Standing returns the current standing.
func (s *Session) Standing() Standing {
	left := s.cooldownLeft()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Standing{
		Strikes:      s.strikes,
		CoolingDown:  left > 0,
		CooldownLeft: left,
	}
}

func (s *Session) cooldownLeft() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	left := s.cooldownUntil.Sub(s.now())
	if left < 0 {
		return 0
	}
	return left
}
