package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecraft-ai-api/internal/interfaces/http/middleware"
)

// fakeLimiter 记录收到的配额并按预设放行
type fakeLimiter struct {
	limit   int
	window  time.Duration
	allowed bool
	err     error
}

func (f *fakeLimiter) Allow(_ context.Context, _ string, limit int, window time.Duration) (bool, error) {
	f.limit = limit
	f.window = window
	return f.allowed, f.err
}

func serveOnce(t *testing.T, cfg middleware.RateLimitConfig, limiter middleware.RateLimiter) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middleware.RateLimit(cfg, limiter))
	r.POST("/v1/generate", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/generate", nil))
	return w
}

func TestRateLimit_QuotaIncludesBurst(t *testing.T) {
	limiter := &fakeLimiter{allowed: true}
	cfg := middleware.RateLimitConfig{Enabled: true, RequestsPerSecond: 10, Burst: 20}

	w := serveOnce(t, cfg, limiter)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 30, limiter.limit)
	assert.Equal(t, time.Second, limiter.window)
}

func TestRateLimit_Exceeded(t *testing.T) {
	limiter := &fakeLimiter{allowed: false}
	cfg := middleware.RateLimitConfig{Enabled: true, RequestsPerSecond: 1}

	w := serveOnce(t, cfg, limiter)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}

func TestRateLimit_LimiterFailureAllows(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	cfg := middleware.RateLimitConfig{Enabled: true, RequestsPerSecond: 1}

	w := serveOnce(t, cfg, limiter)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	w := serveOnce(t, middleware.RateLimitConfig{Enabled: false}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
}
