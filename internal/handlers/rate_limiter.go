package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Hoangthang194/review-agency-sub000/internal/platform/httpx"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/requestctx"
)

// RateLimiter admits a bounded number of calls per key and window.
type RateLimiter interface {
	// Allow reports whether key may proceed and, when it may not, how long until it can.
	Allow(key string) (bool, time.Duration)
}

type windowRateLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	store  map[string]rateEntry
}

type rateEntry struct {
	count int
	reset time.Time
}

// NewWindowRateLimiter returns a fixed-window limiter, or nil (no limit) when limit or
// window is not positive.
func NewWindowRateLimiter(limit int, window time.Duration, clock func() time.Time) RateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &windowRateLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		store:  make(map[string]rateEntry),
	}
}

func (l *windowRateLimiter) Allow(key string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.store[key]
	if !ok || !now.Before(entry.reset) {
		l.store[key] = rateEntry{count: 1, reset: now.Add(l.window)}
		l.pruneExpiredLocked(now)
		return true, 0
	}
	if entry.count >= l.limit {
		return false, entry.reset.Sub(now)
	}
	entry.count++
	l.store[key] = entry
	return true, 0
}

func (l *windowRateLimiter) pruneExpiredLocked(now time.Time) {
	for key, entry := range l.store {
		if !now.Before(entry.reset) {
			delete(l.store, key)
		}
	}
}

// limitByClientIP rejects callers that exceeded limiter with 429 and a Retry-After header.
// scope separates counters of different endpoints sharing one limiter.
func limitByClientIP(limiter RateLimiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestctx.ClientIP(ctx)
			if ip == "" {
				ip = r.RemoteAddr
			}
			ok, wait := limiter.Allow(scope + ":" + ip)
			if !ok {
				seconds := int(wait.Round(time.Second) / time.Second)
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				requestctx.Logger(ctx).Warn("rate limit exceeded", zap.String("scope", scope))
				httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests, retry later", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
