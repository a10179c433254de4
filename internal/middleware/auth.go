package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/model"
)

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (*model.Identity, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Tokens   TokenVerifier
	Recorder metrics.Recorder
}

// Auth returns a middleware that requires a valid bearer token and injects
// the verified identity into the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				rejectToken(cfg, w, r, metrics.ReasonMissingToken)
				return
			}

			identity, err := cfg.Tokens.Verify(token)
			if err != nil {
				reason := metrics.ReasonTokenInvalid
				if errors.Is(err, auth.ErrTokenExpired) {
					reason = metrics.ReasonTokenExpired
				}
				rejectToken(cfg, w, r, reason)
				return
			}

			annotateUser(r.Context(), identity.Subject)
			ctx := auth.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func rejectToken(cfg AuthConfig, w http.ResponseWriter, r *http.Request, reason string) {
	cfg.Recorder.IncAuthFailure(reason)
	cfg.Logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)

	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Could not validate credentials")
}

// extractBearerToken returns the token of an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireOwner rejects requests whose {param} path segment differs from the
// authenticated subject. It must run after Auth.
func RequireOwner(logger *slog.Logger, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := auth.UserIDFromContext(r.Context())
			if subject == "" || chi.URLParam(r, param) != subject {
				logger.Warn("owner mismatch",
					slog.String("user_id", subject),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusForbidden, CodeForbidden, "Not authorized to access this user's tasks")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
