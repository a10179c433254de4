package handler

import (
	"net/http"

	"github.com/taskflow/taskflow/internal/handler/dto"
	"github.com/taskflow/taskflow/internal/service"
)

// DebugSignup handles POST /api/debug/signup?full_name=&email=&password=.
// It is only mounted outside production with DEBUG_ENDPOINTS enabled.
func (h *AuthHandler) DebugSignup(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	result, err := h.svc.Signup(r.Context(), service.SignupInput{
		FullName: query.Get("full_name"),
		Email:    query.Get("email"),
		Password: query.Get("password"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Debug("debug signup", "account_id", result.Account.ID)
	writeJSON(w, http.StatusOK, dto.ToAuthResponse(result.AccessToken, result.Account))
}
