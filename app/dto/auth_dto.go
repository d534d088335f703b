// Package dto contains Data Transfer Objects for API request and response structures
package dto

import "time"

// LoginRequest represents the request payload for user login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255" example:"ana@example.com"`
	Password string `json:"password" validate:"max=100" example:"SecurePass123!"`
}

// UserInfo represents user information returned in login response
type UserInfo struct {
	Email       string  `json:"email" example:"ana@example.com"`
	Name        *string `json:"name,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`
	LogoURL     *string `json:"logo_url,omitempty"`
	Plan        string  `json:"plan" example:"free"`
	Role        string  `json:"role" example:"member"`
}

// LoginResponse carries the issued tokens
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type" example:"Bearer"`
	ExpiresIn    int       `json:"expires_in" example:"86400"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         UserInfo  `json:"user"`
	Degraded     bool      `json:"degraded"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ForgotPasswordRequest represents the request to initiate password reset
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=255" example:"ana@example.com"`
}

// ForgotPasswordResponse never reveals whether the account exists
type ForgotPasswordResponse struct {
	ExpiresIn int `json:"expires_in" example:"900"`
}

// ResetPasswordRequest represents the request to reset password with a recovery code
type ResetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email,max=255"`
	Code            string `json:"code" validate:"required,len=6,numeric" example:"123456"`
	NewPassword     string `json:"new_password" validate:"required,max=100"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// ResetPasswordResponse represents the response after successful password reset
type ResetPasswordResponse struct {
	PasswordChangedAt time.Time `json:"password_changed_at"`
}

// RefreshTokenResponse carries the rotated token pair
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type" example:"Bearer"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	Degraded     bool      `json:"degraded"`
}
