package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/taskflow/taskflow/internal/handler/dto"
	"github.com/taskflow/taskflow/internal/service"
)

// AccountService is the account logic used by AuthHandler.
type AccountService interface {
	Signup(ctx context.Context, input service.SignupInput) (*service.AuthResult, error)
	Signin(ctx context.Context, input service.SigninInput) (*service.AuthResult, error)
}

// AuthHandler handles signup and signin.
type AuthHandler struct {
	svc    AccountService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc AccountService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.Signup(r.Context(), service.SignupInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToAuthResponse(result.AccessToken, result.Account))
}

// Signin handles POST /api/auth/signin.
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req dto.SigninRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.Signin(r.Context(), service.SigninInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToAuthResponse(result.AccessToken, result.Account))
}

// handleServiceError maps service errors to HTTP responses.
func (h *AuthHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrSignupConflict):
		writeError(w, http.StatusBadRequest, dto.CodeValidation, "Signup failed")
	case errors.Is(err, service.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, dto.CodeUnauthorized, "Incorrect email or password")
	default:
		writeCommonError(w, r, h.logger, err)
	}
}
