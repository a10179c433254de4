package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/middleware"
)

// RouterConfig holds everything NewRouter wires together.
type RouterConfig struct {
	Logger      *slog.Logger
	Environment string
	Production  bool
	// DebugEndpoints mounts /api/debug/* outside production.
	DebugEndpoints bool
	CORSOrigins    []string
	MaxBodySize    int64

	Tokens      middleware.TokenVerifier
	Recorder    metrics.Recorder
	Snapshotter metrics.Snapshotter

	Accounts  AccountService
	Tasks     TaskService
	Assistant Assistant

	// DB is required; Cache may be nil when Redis is not configured.
	DB    HealthChecker
	Cache HealthChecker

	RateLimit middleware.RateLimitConfig
	// Throttle limits chat per account; nil disables it.
	Throttle *middleware.Throttle

	// OpenAPI is served under /docs outside production.
	OpenAPI []byte
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := New(cfg.Environment)
	healthHandler := NewHealthHandler(logger, cfg.DB, cfg.Cache)
	metricsHandler := NewMetricsHandler(cfg.Snapshotter)
	authHandler := NewAuthHandler(cfg.Accounts, logger)
	taskHandler := NewTaskHandler(cfg.Tasks, logger)
	chatHandler := NewChatHandler(cfg.Assistant, cfg.Tasks, logger)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSOrigins

	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	authCfg := middleware.AuthConfig{
		Logger:   logger,
		Tokens:   cfg.Tokens,
		Recorder: cfg.Recorder,
	}
	rateLimitCfg := cfg.RateLimit
	if rateLimitCfg.Logger == nil {
		rateLimitCfg.Logger = logger
	}
	if rateLimitCfg.Recorder == nil {
		rateLimitCfg.Recorder = cfg.Recorder
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.Environment == "development"}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(maxBody))

	// Service endpoints (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	if !cfg.Production && len(cfg.OpenAPI) > 0 {
		docs := NewDocsHandler(cfg.OpenAPI)
		r.Get("/docs", docs.Index)
		r.Get("/docs/openapi.yaml", docs.OpenAPI)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.RateLimitAuth(rateLimitCfg))
			r.Post("/signup", authHandler.Signup)
			r.Post("/signin", authHandler.Signin)
		})

		if !cfg.Production && cfg.DebugEndpoints {
			r.With(middleware.RateLimitAuth(rateLimitCfg)).Post("/debug/signup", authHandler.DebugSignup)
		}

		r.Route("/chatbot", func(r chi.Router) {
			r.Get("/health", chatHandler.Health)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(authCfg))
				r.Use(middleware.RateLimitAPI(rateLimitCfg))

				chat := r.With()
				if cfg.Throttle != nil {
					chat = r.With(cfg.Throttle.Middleware)
				}
				chat.Post("/chat", chatHandler.Chat)

				r.Post("/query-tasks", chatHandler.QueryTasks)
				r.Post("/create-task-via-chat", chatHandler.CreateTaskViaChat)
				r.Get("/tools", chatHandler.Tools)
				r.Post("/tools/call", chatHandler.CallTool)
				r.Post("/knowledge", chatHandler.Ingest)
				r.Get("/knowledge/stats", chatHandler.Stats)
			})
		})

		r.Route("/{user_id}/tasks", func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))
			r.Use(middleware.RequireOwner(logger, "user_id"))
			r.Use(middleware.RateLimitAPI(rateLimitCfg))

			r.Get("/", taskHandler.List)
			r.Post("/", taskHandler.Create)
			r.Get("/{task_id}", taskHandler.Get)
			r.Put("/{task_id}", taskHandler.Update)
			r.Patch("/{task_id}/complete", taskHandler.Complete)
			r.Delete("/{task_id}", taskHandler.Delete)
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
