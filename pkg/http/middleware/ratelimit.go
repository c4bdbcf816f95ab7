package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// TokenBucketStore keeps one token bucket per client identifier. Buckets idle
// for longer than a full refill are dropped.
type TokenBucketStore struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	capacity  float64
	perSecond float64
	now       func() time.Time
	lastSweep time.Time
}

func NewTokenBucketStore(perSecond float64, burst int) *TokenBucketStore {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucketStore{
		buckets:   make(map[string]*bucket),
		capacity:  float64(burst),
		perSecond: perSecond,
		now:       time.Now,
	}
}

// Allow consumes one token for id.
func (s *TokenBucketStore) Allow(id string) (bool, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now)
	b, ok := s.buckets[id]
	if !ok {
		b = &bucket{tokens: s.capacity, last: now}
		s.buckets[id] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(s.capacity, b.tokens+elapsed*s.perSecond)
		b.last = now
	}
	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

func (s *TokenBucketStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < time.Minute || s.perSecond <= 0 {
		return
	}
	s.lastSweep = now
	idle := time.Duration(s.capacity / s.perSecond * float64(time.Second))
	for id, b := range s.buckets {
		if now.Sub(b.last) > idle {
			delete(s.buckets, id)
		}
	}
}

// RateLimit throttles requests per client IP. Paths in skip are never limited.
func RateLimit(store echomw.RateLimiterStore, skip ...string) echo.MiddlewareFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			_, ok := skipped[c.Request().URL.Path]
			return ok
		},
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "client identifier unavailable")
		},
		DenyHandler: func(c echo.Context, id string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}

var _ echomw.RateLimiterStore = (*TokenBucketStore)(nil)
