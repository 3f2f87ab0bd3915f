package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/identity"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/auth"
)

// RateLimitConfig sets the per-caller budget. Patients and anonymous
// devices get RequestsPerSecond with BurstSize. Roles listed in
// StaffMultiplier work through a whole area's requests and orders, so
// their rate and burst are scaled by the given factor.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	StaffMultiplier   map[string]float64
	// IdleTTL drops buckets that have not been touched for this long.
	IdleTTL time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		StaffMultiplier:   map[string]float64{identity.RoleAdmin: 4, identity.RoleDoctor: 4},
		IdleTTL:           10 * time.Minute,
	}
}

type bucket struct {
	tokens   float64
	capacity float64
	rate     float64
	last     time.Time
}

// take refills b up to now and spends one token. When empty it reports
// how long until the next token.
func (b *bucket) take(now time.Time) (bool, time.Duration) {
	b.tokens = min(b.capacity, b.tokens+now.Sub(b.last).Seconds()*b.rate)
	b.last = now
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if b.rate <= 0 {
		return false, time.Second
	}
	return false, time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
}

type limiter struct {
	cfg     RateLimitConfig
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
	swept   time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	return &limiter{cfg: cfg, now: time.Now, buckets: make(map[string]*bucket)}
}

// scale returns the largest staff multiplier among roles, or 1.
func (l *limiter) scale(roles []string) float64 {
	f := 1.0
	for _, r := range roles {
		if m, ok := l.cfg.StaffMultiplier[r]; ok && m > f {
			f = m
		}
	}
	return f
}

func (l *limiter) allow(key string, roles []string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	b, ok := l.buckets[key]
	if !ok {
		f := l.scale(roles)
		capacity := float64(l.cfg.BurstSize) * f
		b = &bucket{tokens: capacity, capacity: capacity, rate: l.cfg.RequestsPerSecond * f, last: now}
		l.buckets[key] = b
	}
	return b.take(now)
}

// sweep must be called with mu held.
func (l *limiter) sweep(now time.Time) {
	if l.cfg.IdleTTL <= 0 || now.Sub(l.swept) < l.cfg.IdleTTL {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.last) > l.cfg.IdleTTL {
			delete(l.buckets, k)
		}
	}
	l.swept = now
}

// RateLimit throttles per signed-in user, or per client IP for anonymous
// requests. It must run after the session middleware to see the user.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	l := newLimiter(cfg)
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := "ip:" + c.RealIP()
			var roles []string
			if uid := auth.UserIDFromContext(ctx); uid != "" {
				key = "user:" + uid
				roles = auth.RolesFromContext(ctx)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			ok, wait := l.allow(key, roles)
			if !ok {
				h.Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
