package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/cache"
	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/model"
)

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewWithClient(client), mr
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitAuth_PerIP(t *testing.T) {
	c, _ := newTestCache(t)
	rec := metrics.NewInMemory()

	handler := RateLimitAuth(RateLimitConfig{
		Logger:      discardLogger(),
		Cache:       c,
		Recorder:    rec,
		AuthEnabled: true,
		AuthRPS:     1,
		AuthBurst:   2,
	})(okHandler())

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", nil)
		req.RemoteAddr = remote
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1235").Code)

	limited := do("10.0.0.1:1236")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), `"code":"RATE_LIMITED"`)

	// A different client is unaffected.
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1234").Code)
	assert.Equal(t, uint64(1), rec.Snapshot().RateLimited[metrics.ScopeAuth])
}

func TestRateLimitAuth_FailsOpen(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	handler := RateLimitAuth(RateLimitConfig{
		Logger:      discardLogger(),
		Cache:       c,
		AuthEnabled: true,
		AuthRPS:     1,
		AuthBurst:   1,
	})(okHandler())

	for i := 0; i < 3; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/auth/signin", nil))
		assert.Equal(t, http.StatusOK, resp.Code)
	}
}

func TestRateLimit_NilCacheSkips(t *testing.T) {
	t.Parallel()

	cfg := RateLimitConfig{Logger: discardLogger(), AuthEnabled: true, APIEnabled: true, AuthRPS: 1, AuthBurst: 1}
	handler := RateLimitAuth(cfg)(RateLimitAPI(cfg)(okHandler()))

	for i := 0; i < 3; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusOK, resp.Code)
	}
}

func TestRateLimitAPI_PerAccount(t *testing.T) {
	c, _ := newTestCache(t)

	handler := RateLimitAPI(RateLimitConfig{
		Logger:       discardLogger(),
		Cache:        c,
		APIEnabled:   true,
		APIPerMinute: 60,
		APIBurst:     1,
	})(okHandler())

	do := func(accountID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/x/tasks", nil)
		ctx := auth.ContextWithIdentity(req.Context(), &model.Identity{Subject: accountID})
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req.WithContext(ctx))
		return resp
	}

	first := do("acct-1")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "60", first.Header().Get("X-RateLimit-Limit"))

	assert.Equal(t, http.StatusTooManyRequests, do("acct-1").Code)
	assert.Equal(t, http.StatusOK, do("acct-2").Code)
}
