// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/taskflow/taskflow/internal/assistant"
	"github.com/taskflow/taskflow/internal/handler/dto"
	"github.com/taskflow/taskflow/internal/middleware"
	"github.com/taskflow/taskflow/internal/service"
)

// Handler serves the unauthenticated root endpoints.
type Handler struct {
	environment string
}

// New creates a new Handler instance.
func New(environment string) *Handler {
	return &Handler{environment: environment}
}

// Root handles GET /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Todo API is running!",
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "healthy",
		"environment": h.environment,
	})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, dto.CodeNotFound, "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, dto.CodeMethodNotAllowed, "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already sent; an encode failure means the client went away.
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}

// decodeJSON decodes the request body into v and writes a 400 (or 413)
// when it cannot. It reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, dto.CodePayloadTooLarge, "Request body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, dto.CodeValidation, "Invalid request body")
	return false
}

// writeCommonError handles the error classes shared by every handler:
// validation failures and unexpected errors. Unexpected errors are logged
// with the request ID and never echoed.
func writeCommonError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:  "Validation failed",
			Code:   dto.CodeValidation,
			Fields: verr.Fields,
		})
		return
	}

	var rerr *assistant.RequestError
	if errors.As(err, &rerr) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:  "Validation failed",
			Code:   dto.CodeValidation,
			Fields: map[string]string{rerr.Field: rerr.Reason},
		})
		return
	}

	logger.Error("internal_error",
		"error", err,
		"request_id", requestID(r),
	)
	writeError(w, http.StatusInternalServerError, dto.CodeInternal, "An internal error occurred")
}

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}
