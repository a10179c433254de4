// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// PlaceholderSecret is the well-known value shipped in sample env files.
// It is never accepted as a signing secret in production.
const PlaceholderSecret = "CHANGE_THIS_TO_ENV_SECRET"

// minProductionSecretLen is the shortest HS256 secret accepted in production.
const minProductionSecretLen = 32

var (
	// ErrInsecureSecret indicates a missing or placeholder signing secret in production.
	ErrInsecureSecret = errors.New("JWT_SECRET must be set to a strong value in production")
	// ErrInvalidTokenTTL indicates JWT_EXPIRES_IN could not be parsed.
	ErrInvalidTokenTTL = errors.New("invalid JWT_EXPIRES_IN")
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"ENVIRONMENT" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database. postgres:// URLs use pgx, sqlite:// URLs use a local file.
	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite://todo.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	DBEcho      bool   `env:"DB_ECHO" envDefault:"false"`

	// Cache (Redis). Optional; rate limiting is disabled without it.
	RedisURL string `env:"REDIS_URL"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts. WriteTimeout must exceed AssistantTimeout.
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"45s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Token signing. BETTER_AUTH_SECRET wins over JWT_SECRET when both are set.
	JWTSecret        string `env:"JWT_SECRET"`
	BetterAuthSecret string `env:"BETTER_AUTH_SECRET"`
	// Integer seconds ("3600") or a Go duration ("1h"). Empty picks the environment default.
	JWTExpiresIn     string `env:"JWT_EXPIRES_IN"`

	// CORS: comma-separated origins. Empty means "*" outside production.
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Debug-only endpoints; never mounted in production.
	DebugEndpoints bool `env:"DEBUG_ENDPOINTS" envDefault:"true"`

	// Rate limiting
	RateLimitAuthEnabled  bool `env:"RATE_LIMIT_AUTH_ENABLED" envDefault:"true"`
	RateLimitAuthRPS      int  `env:"RATE_LIMIT_AUTH_RPS" envDefault:"2"`
	RateLimitAuthBurst    int  `env:"RATE_LIMIT_AUTH_BURST" envDefault:"10"`
	RateLimitAPIEnabled   bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitAPIPerMinute int  `env:"RATE_LIMIT_API_PER_MINUTE" envDefault:"600"`
	RateLimitAPIBurst     int  `env:"RATE_LIMIT_API_BURST" envDefault:"50"`
	ChatRatePerMinute     int  `env:"CHAT_RATE_PER_MINUTE" envDefault:"20"`
	ChatBurst             int  `env:"CHAT_BURST" envDefault:"5"`
	ChatThrottleCacheSize int  `env:"CHAT_THROTTLE_CACHE_SIZE" envDefault:"10000"`

	// Assistant collaborators
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIModel      string        `env:"OPENAI_MODEL" envDefault:"gpt-4"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL"`
	OpenAIMaxRPS     float64       `env:"OPENAI_MAX_RPS" envDefault:"5"`
	RAGEngineURL     string        `env:"RAG_ENGINE_URL" envDefault:"http://localhost:8000"`
	MCPBaseURL       string        `env:"MCP_BASE_URL" envDefault:"http://localhost:3000/mcp"`
	AssistantTimeout time.Duration `env:"ASSISTANT_TIMEOUT" envDefault:"30s"`
	// RAG_TIMEOUT zero means a third of ASSISTANT_TIMEOUT.
	RAGTimeout       time.Duration `env:"RAG_TIMEOUT"`

	tokenTTL time.Duration
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
// Outside production an empty setting allows every origin.
func (c *Config) GetCORSAllowedOrigins() []string {
	if strings.TrimSpace(c.AllowedOrigins) == "" {
		if c.IsProduction() {
			return nil
		}
		return []string{"*"}
	}

	origins := strings.Split(c.AllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// SigningSecret returns the configured token secret, or "" when only the
// placeholder (or nothing) is configured.
func (c *Config) SigningSecret() string {
	secret := c.BetterAuthSecret
	if secret == "" {
		secret = c.JWTSecret
	}
	if secret == PlaceholderSecret {
		return ""
	}
	return secret
}

// TokenTTL returns the token lifetime resolved by Validate.
func (c *Config) TokenTTL() time.Duration {
	if c.tokenTTL > 0 {
		return c.tokenTTL
	}
	return defaultTokenTTL(c.IsProduction())
}

// AssistantConfigured reports whether a generation backend is configured.
func (c *Config) AssistantConfigured() bool {
	return c.OpenAIAPIKey != ""
}

// Validate checks cross-field constraints and resolves derived values.
func (c *Config) Validate() error {
	ttl, err := parseTokenTTL(c.JWTExpiresIn, c.IsProduction())
	if err != nil {
		return err
	}
	c.tokenTTL = ttl

	if c.IsProduction() && len(c.SigningSecret()) < minProductionSecretLen {
		return ErrInsecureSecret
	}

	return nil
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func defaultTokenTTL(production bool) time.Duration {
	if production {
		return 24 * time.Hour
	}
	return time.Hour
}

func parseTokenTTL(raw string, production bool) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultTokenTTL(production), nil
	}

	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTokenTTL, raw)
		}
		return time.Duration(secs) * time.Second, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTokenTTL, raw)
	}
	return d, nil
}
