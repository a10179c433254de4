package dto

import "github.com/taskflow/taskflow/internal/model"

// SignupRequest represents the request body for creating an account.
type SignupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SigninRequest represents the request body for signing in.
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by signup and signin.
type AuthResponse struct {
	AccessToken string              `json:"access_token"`
	TokenType   string              `json:"token_type"`
	User        model.PublicAccount `json:"user"`
}

// ToAuthResponse builds the token response for an account.
func ToAuthResponse(token string, account *model.Account) *AuthResponse {
	return &AuthResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        account.Public(),
	}
}
