// Package middleware implements small HTTP middlewares shared by the
// websocket upgrade endpoint and any plain HTTP routes the server
// exposes. RateLimit is reconstructed from
// pkg/middleware/ratelimit_test.go (the only file retrieved for this
// package); its fixed-window semantics are this package's own, not a
// transcription of unseen source.
package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// KeyFunc extracts the rate-limit bucket key from a request.
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc buckets by the caller's IP, preferring X-Real-IP when a
// reverse proxy sets it.
func DefaultKeyFunc(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// EndpointKeyFunc namespaces DefaultKeyFunc's key by endpoint, so the
// same client gets an independent budget per route.
func EndpointKeyFunc(endpoint string) KeyFunc {
	return func(r *http.Request) string {
		return endpoint + ":" + DefaultKeyFunc(r)
	}
}

// Store tracks per-key request counts over a fixed window.
type Store interface {
	Allow(key string, limit int, window time.Duration) (remaining int, resetAt time.Time, allowed bool)
}

type memoryStore struct {
	mu      sync.Mutex
	buckets map[string]*window
}

type window struct {
	count   int
	resetAt time.Time
}

// NewMemoryStore returns an in-process Store suitable for a single
// instance; multi-instance deployments should back this with Redis.
func NewMemoryStore() Store {
	return &memoryStore{buckets: make(map[string]*window)}
}

func (s *memoryStore) Allow(key string, limit int, period time.Duration) (int, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, ok := s.buckets[key]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 0, resetAt: now.Add(period)}
		s.buckets[key] = w
	}
	if w.count >= limit {
		return 0, w.resetAt, false
	}
	w.count++
	return limit - w.count, w.resetAt, true
}

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Limit          int
	Window         time.Duration
	KeyFunc        KeyFunc
	OnLimitReached http.HandlerFunc
	Store          Store
}

func defaultLimitReached(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
}

// RateLimit returns a mux middleware enforcing cfg against a fixed
// window per key.
func RateLimit(cfg RateLimitConfig) mux.MiddlewareFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = DefaultKeyFunc
	}
	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = defaultLimitReached
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyFunc(r)
			remaining, resetAt, allowed := cfg.Store.Allow(key, cfg.Limit, cfg.Window)

			w.Header().Set("X-Ratelimit-Limit", strconv.Itoa(cfg.Limit))
			w.Header().Set("X-Ratelimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-Ratelimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))

			if !allowed {
				cfg.OnLimitReached(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPRateLimitPeriod rate-limits each client IP to limit requests per
// window.
func IPRateLimitPeriod(limit int, window time.Duration) mux.MiddlewareFunc {
	return RateLimit(RateLimitConfig{Limit: limit, Window: window, KeyFunc: DefaultKeyFunc})
}

// GlobalRateLimitPeriod rate-limits all callers together to limit
// requests per window, regardless of source IP.
func GlobalRateLimitPeriod(limit int, window time.Duration) mux.MiddlewareFunc {
	return RateLimit(RateLimitConfig{
		Limit:   limit,
		Window:  window,
		KeyFunc: func(*http.Request) string { return "global" },
	})
}
