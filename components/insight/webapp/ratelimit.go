package webapp

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/goliatone/go-datainsight/internal/logging"
)

const tooManyLogins = "Too many sign-in attempts. Wait a minute and try again."

// LoginLimit throttles POST /login per client address. Burst attempts are
// allowed at once, then one more every Every.
type LoginLimit struct {
	Burst int
	Every time.Duration
}

// DefaultLoginLimit allows 5 quick attempts, then one every 12 seconds.
var DefaultLoginLimit = LoginLimit{Burst: 5, Every: 12 * time.Second}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type loginLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	entries map[string]*limiterEntry
	now     func() time.Time
}

func newLoginLimiter(cfg LoginLimit) *loginLimiter {
	if cfg.Burst <= 0 || cfg.Every <= 0 {
		return nil
	}
	return &loginLimiter{
		limit:   rate.Every(cfg.Every),
		burst:   cfg.Burst,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

func (l *loginLimiter) allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.now()
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	limiter := entry.limiter
	l.mu.Unlock()
	return limiter.AllowN(now, 1)
}

// prune drops addresses idle for longer than idle.
func (l *loginLimiter) prune(idle time.Duration) int {
	if l == nil {
		return 0
	}
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// throttleLogin re-renders the login form with 429 once an address runs out
// of attempts.
func (s *Server) throttleLogin(c *fiber.Ctx) error {
	if s.limiter.allow(c.IP()) {
		return c.Next()
	}
	logging.Ctx(c.UserContext()).Warn().Str("ip", c.IP()).Msg("login throttled")
	return s.page(c, fiber.StatusTooManyRequests, "login.html", "Sign in", fiber.Map{
		"username": c.FormValue("username"),
		"error":    tooManyLogins,
	})
}

// PruneLimiter forgets login throttling state for idle addresses.
func (s *Server) PruneLimiter(idle time.Duration) int {
	return s.limiter.prune(idle)
}
