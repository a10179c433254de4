// Package main is the entrypoint for the Todo API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/taskflow/taskflow/docs"
	"github.com/taskflow/taskflow/internal/assistant"
	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/cache"
	"github.com/taskflow/taskflow/internal/config"
	"github.com/taskflow/taskflow/internal/handler"
	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/middleware"
	"github.com/taskflow/taskflow/internal/repository"
	"github.com/taskflow/taskflow/internal/server"
	"github.com/taskflow/taskflow/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var cleanup cleanupStack
	defer cleanup.run()

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL,
		repository.WithLogger(logger),
		repository.WithSQLEcho(cfg.DBEcho),
		repository.WithAutoMigrate(cfg.AutoMigrate),
	)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return err
	}
	cleanup.push(repo.Close)
	logger.Info("connected to database", slog.String("database_url", redactURL(cfg.DatabaseURL)))

	// Initialize cache. Redis is optional; without it the shared rate limits are off.
	var cacheClient *cache.Cache
	var cacheHealth handler.HealthChecker
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return err
		}
		cleanup.push(func() { _ = cacheClient.Close() })
		cacheHealth = cacheClient
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set; rate limiting disabled")
	}

	tokens, err := newTokenService(cfg, logger)
	if err != nil {
		return err
	}

	// Initialize services
	recorder := metrics.NewInMemory()
	accountService := service.NewAccountService(repo, tokens, recorder, logger)
	taskService := service.NewTaskService(repo, recorder, logger)

	httpClient := assistant.NewHTTPClient(cfg.AssistantTimeout)
	gateway := assistant.NewGateway(assistant.GatewayConfig{
		RAG:   assistant.NewRAGClient(cfg.RAGEngineURL, httpClient),
		Tools: assistant.NewToolsClient(cfg.MCPBaseURL, httpClient),
		Generator: assistant.NewGenerator(assistant.GeneratorConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			MaxRPS:  cfg.OpenAIMaxRPS,
		}, httpClient),
		Recorder: recorder,
		Logger:   logger,
		Timeout:  cfg.AssistantTimeout,

		RetrievalTimeout: cfg.RAGTimeout,
	})
	if !gateway.Configured() {
		logger.Warn("OPENAI_API_KEY not set; chat is disabled")
	}

	// Setup router
	r := handler.NewRouter(handler.RouterConfig{
		Logger:         logger,
		Environment:    cfg.AppEnv,
		Production:     cfg.IsProduction(),
		DebugEndpoints: cfg.DebugEndpoints,
		CORSOrigins:    cfg.GetCORSAllowedOrigins(),
		MaxBodySize:    cfg.MaxRequestBodySize,
		Tokens:         tokens,
		Recorder:       recorder,
		Snapshotter:    recorder,
		Accounts:       accountService,
		Tasks:          taskService,
		Assistant:      gateway,
		DB:             repo,
		Cache:          cacheHealth,
		RateLimit: middleware.RateLimitConfig{
			Logger:       logger,
			Cache:        cacheClient,
			Recorder:     recorder,
			AuthEnabled:  cfg.RateLimitAuthEnabled,
			AuthRPS:      cfg.RateLimitAuthRPS,
			AuthBurst:    cfg.RateLimitAuthBurst,
			APIEnabled:   cfg.RateLimitAPIEnabled,
			APIPerMinute: cfg.RateLimitAPIPerMinute,
			APIBurst:     cfg.RateLimitAPIBurst,
		},
		Throttle: middleware.NewThrottle(middleware.ThrottleConfig{
			Logger:    logger,
			Recorder:  recorder,
			PerMinute: cfg.ChatRatePerMinute,
			Burst:     cfg.ChatBurst,
			CacheSize: cfg.ChatThrottleCacheSize,
		}),
		OpenAPI: docs.OpenAPI,
	})

	// Create and run server
	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("database", func(context.Context) error {
		repo.Close()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return cacheClient.Close()
		})
	}

	cleanup.release()

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"assistant_configured", gateway.Configured(),
	)

	return srv.Run(ctx)
}

// cleanupStack closes startup resources in reverse order when run fails
// before the server owns them.
type cleanupStack struct {
	funcs []func()
}

func (c *cleanupStack) push(f func()) {
	c.funcs = append(c.funcs, f)
}

// release hands the resources to the server's shutdown hooks.
func (c *cleanupStack) release() {
	c.funcs = nil
}

func (c *cleanupStack) run() {
	for i := len(c.funcs) - 1; i >= 0; i-- {
		c.funcs[i]()
	}
	c.funcs = nil
}

// newTokenService builds the token issuer. Outside production a missing
// secret is replaced by a random one, which invalidates tokens on restart.
func newTokenService(cfg *config.Config, logger *slog.Logger) (*auth.TokenService, error) {
	secret := cfg.SigningSecret()
	if secret == "" {
		generated, err := auth.GenerateSecret()
		if err != nil {
			return nil, err
		}
		logger.Warn("no signing secret configured; using a random secret for this process")
		secret = generated
	}
	return auth.NewTokenService([]byte(secret), cfg.TokenTTL())
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
