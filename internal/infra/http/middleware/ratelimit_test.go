package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/girderhq/api/internal/config"
	"github.com/girderhq/api/pkg/apierror"
	"github.com/girderhq/api/pkg/logger"
)

func newTestRateLimiter(t *testing.T, perSec float64, burst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(&config.RateLimitConfig{
		Enabled:         true,
		RequestsPerSec:  perSec,
		Burst:           burst,
		CleanupInterval: time.Minute,
	}, logger.NewDefault())
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiter_BurstThenDeny(t *testing.T) {
	rl := newTestRateLimiter(t, 0.001, 2)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/projects", nil)
		req.RemoteAddr = "203.0.113.7:52100"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)
	assert.Equal(t, http.StatusOK, do().Code)

	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), string(apierror.CodeRateLimit))
}

func TestRateLimiter_PerIPBuckets(t *testing.T) {
	rl := newTestRateLimiter(t, 0.001, 1)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/projects", nil)
		req.RemoteAddr = ip + ":40000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, do("203.0.113.7"))
	require.Equal(t, http.StatusTooManyRequests, do("203.0.113.7"))

	// A different client keeps its own budget.
	assert.Equal(t, http.StatusOK, do("203.0.113.8"))
}

func TestRateLimiter_HeadersOnSuccess(t *testing.T) {
	rl := newTestRateLimiter(t, 10, 5)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimitWithStop_Disabled(t *testing.T) {
	mw, stop := RateLimitWithStop(&config.RateLimitConfig{Enabled: false}, logger.NewDefault())
	defer stop()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for range 50 {
		req := httptest.NewRequest(http.MethodGet, "/projects", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	mk := func(decorate func(*http.Request)) string {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		if decorate != nil {
			decorate(req)
		}
		return getClientIP(req)
	}

	assert.Equal(t, "10.0.0.1", mk(nil))
	assert.Equal(t, "203.0.113.7", mk(func(r *http.Request) {
		r.Header.Set("X-Real-IP", "203.0.113.7")
	}))
	assert.Equal(t, "203.0.113.7", mk(func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")
	}))
}
