package middleware

import (
	"sync"
	"time"

	"maildash/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a per-client token bucket allowing requests per window
type Limiter struct {
	every time.Duration
	burst int
	idle  time.Duration
	now   func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewLimiter creates a limiter. Visitors idle longer than ten windows are
// forgotten on the next sweep.
func NewLimiter(requests int, window time.Duration) *Limiter {
	if requests < 1 {
		requests = 1
	}
	return &Limiter{
		every:    window / time.Duration(requests),
		burst:    requests,
		idle:     10 * window,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// Allow reports whether key may make a request now
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.visitors[key] = v
	}
	now := l.now()
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Sweep drops visitors idle past the limit and returns how many remain
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idle)
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
		}
	}
	return len(l.visitors)
}

// Handler limits by client IP. Rejected requests get 429 through the app
// error handler.
func (l *Limiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.Allow(c.IP()) {
			return utils.NewAppError(fiber.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", nil)
		}
		return c.Next()
	}
}

// RateLimiter builds a limiter and starts its sweeper, which stops when
// done is closed.
func RateLimiter(requests int, window time.Duration, done <-chan struct{}) fiber.Handler {
	l := NewLimiter(requests, window)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-done:
				return
			}
		}
	}()

	return l.Handler()
}
