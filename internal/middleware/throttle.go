package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/metrics"
)

// ThrottleConfig configures the in-process chat throttle.
type ThrottleConfig struct {
	Logger    *slog.Logger
	Recorder  metrics.Recorder
	PerMinute int
	Burst     int
	// CacheSize bounds the number of tracked accounts.
	CacheSize int
	// IdleTTL evicts limiters of accounts that stopped chatting.
	IdleTTL time.Duration
}

// Throttle keeps one token bucket per account in a bounded, expiring LRU.
type Throttle struct {
	cfg      ThrottleConfig
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
}

// NewThrottle creates a chat throttle. A zero PerMinute disables it.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10000
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Throttle{
		cfg:      cfg,
		limiters: expirable.NewLRU[string, *rate.Limiter](cfg.CacheSize, nil, cfg.IdleTTL),
	}
}

// Allow reports whether accountID may send another chat message now.
func (t *Throttle) Allow(accountID string) bool {
	if t.cfg.PerMinute <= 0 {
		return true
	}

	t.mu.Lock()
	limiter, ok := t.limiters.Get(accountID)
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(t.cfg.PerMinute)), t.cfg.Burst)
		t.limiters.Add(accountID, limiter)
	}
	t.mu.Unlock()

	return limiter.Allow()
}

// Middleware rejects chat requests over the per-account rate. It must run
// after Auth.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID := auth.UserIDFromContext(r.Context())
		if accountID == "" || t.Allow(accountID) {
			next.ServeHTTP(w, r)
			return
		}

		if t.cfg.Logger != nil {
			t.cfg.Logger.Warn("rate limit exceeded",
				slog.String("user_id", accountID),
				slog.String("type", metrics.ScopeChat),
				slog.String("request_id", GetRequestID(r.Context())),
			)
		}
		rateLimited(t.cfg.Recorder, metrics.ScopeChat, w, time.Minute/time.Duration(t.cfg.PerMinute))
	})
}
