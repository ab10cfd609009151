package dto

import (
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,password"`
	FirstName string `json:"first_name" validate:"required,max=100,personname"`
	LastName  string `json:"last_name" validate:"required,max=100,personname"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest payload for refresh-token rotation.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,min=10"`
}

// SessionResponse standard response for session operations.
type SessionResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         string    `json:"role"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AccountResponse summarizes an account for profile endpoints.
type AccountResponse struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Role        string     `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// NewSessionResponse maps a session result to its response shape.
func NewSessionResponse(result domain.SessionResult) SessionResponse {
	return SessionResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		Email:        result.Email,
		FirstName:    result.FirstName,
		LastName:     result.LastName,
		Role:         string(result.Role),
		ExpiresAt:    result.ExpiresAt,
	}
}

// NewAccountResponse maps an account to its response shape.
func NewAccountResponse(account *domain.Account) AccountResponse {
	return AccountResponse{
		ID:          account.ID,
		Email:       account.Email,
		FirstName:   account.FirstName,
		LastName:    account.LastName,
		Role:        string(account.Role),
		CreatedAt:   account.CreatedAt,
		LastLoginAt: account.LastLoginAt,
	}
}
