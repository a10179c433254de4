package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const readinessTimeout = 5 * time.Second

// HealthChecker is implemented by the repository and the Redis cache.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	logger *slog.Logger
	deps   []dependency
}

type dependency struct {
	name     string
	checker  HealthChecker
	required bool
}

// NewHealthHandler probes db and, when non-nil, cache. A nil db is reported
// as not ready.
func NewHealthHandler(logger *slog.Logger, db, cache HealthChecker) *HealthHandler {
	return &HealthHandler{
		logger: logger.With(slog.String("component", "health")),
		deps: []dependency{
			{name: "database", checker: db, required: true},
			{name: "redis", checker: cache},
		},
	}
}

// ProbeResponse is the body of /healthz and /readyz.
type ProbeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz reports that the process is serving. It checks no dependencies.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProbeResponse{Status: "ok"})
}

// Readyz pings every dependency concurrently and answers 503 when a required
// one is missing or any configured one fails.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		checks  = make(map[string]string, len(h.deps))
		healthy = true
	)
	record := func(name, state string, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		checks[name] = state
		healthy = healthy && ok
	}

	var g errgroup.Group
	for _, dep := range h.deps {
		if dep.checker == nil {
			record(dep.name, "not configured", !dep.required)
			continue
		}
		g.Go(func() error {
			if err := dep.checker.Ping(ctx); err != nil {
				// Ping errors can carry connection details; only the log sees them.
				h.logger.Warn("readiness check failed",
					slog.String("dependency", dep.name),
					slog.String("error", err.Error()),
				)
				record(dep.name, "error", false)
				return nil
			}
			record(dep.name, "ok", true)
			return nil
		})
	}
	_ = g.Wait()

	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, ProbeResponse{Status: "unhealthy", Checks: checks})
		return
	}
	writeJSON(w, http.StatusOK, ProbeResponse{Status: "ok", Checks: checks})
}
