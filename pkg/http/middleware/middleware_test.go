package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	applogger "SessionLens/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketStore(t *testing.T) {
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	s := NewTokenBucketStore(1, 2)
	s.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := s.Allow("a")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := s.Allow("a")
	assert.False(t, ok, "burst exhausted")
	ok, _ = s.Allow("b")
	assert.True(t, ok, "buckets are per identifier")

	now = now.Add(time.Second)
	ok, _ = s.Allow("a")
	assert.True(t, ok, "one token refilled")
	ok, _ = s.Allow("a")
	assert.False(t, ok)

	now = now.Add(time.Hour)
	_, _ = s.Allow("c")
	assert.Len(t, s.buckets, 1, "idle buckets swept")
}

type observation struct {
	method, route string
	status        int
}

type recordingObserver struct{ got []observation }

func (r *recordingObserver) ObserveHTTP(method, route string, status int, _ float64) {
	r.got = append(r.got, observation{method, route, status})
}

func newEcho(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.Use(mw...)
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/api/runs/:id", func(c echo.Context) error { return c.String(http.StatusOK, c.Param("id")) })
	e.GET("/api/boom", func(echo.Context) error { panic("boom") })
	return e
}

func serve(e *echo.Echo, target string) int {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec.Code
}

func TestRateLimit(t *testing.T) {
	e := newEcho(RateLimit(NewTokenBucketStore(0.001, 1), "/health"))
	assert.Equal(t, http.StatusOK, serve(e, "/api/runs/a"))
	assert.Equal(t, http.StatusTooManyRequests, serve(e, "/api/runs/a"))
	assert.Equal(t, http.StatusOK, serve(e, "/health"))
	assert.Equal(t, http.StatusOK, serve(e, "/health"))
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	obs := &recordingObserver{}
	e := newEcho(Metrics(obs))
	serve(e, "/api/runs/abc")
	serve(e, "/nowhere")

	require.Len(t, obs.got, 2)
	assert.Equal(t, observation{http.MethodGet, "/api/runs/:id", http.StatusOK}, obs.got[0])
	assert.Equal(t, http.StatusNotFound, obs.got[1].status)
}

func TestRecoverAndLogging(t *testing.T) {
	e := newEcho(Recover(applogger.Nop()), RequestLogging(applogger.Nop(), time.Nanosecond))
	assert.Equal(t, http.StatusInternalServerError, serve(e, "/api/boom"))
	assert.Equal(t, http.StatusOK, serve(e, "/api/runs/x"))
}
