package handlers

import (
	"strings"
	"time"

	"github.com/amirphl/humanflow/app/dto"
	"github.com/amirphl/humanflow/app/middleware"
	businessflow "github.com/amirphl/humanflow/business_flow"
	"github.com/amirphl/humanflow/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	Login(c fiber.Ctx) error
	Refresh(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
	ForgotPassword(c fiber.Ctx) error
	ResetPassword(c fiber.Ctx) error
	Health(c fiber.Ctx) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	loginFlow businessflow.LoginFlow
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(loginFlow businessflow.LoginFlow, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		loginFlow: loginFlow,
		validator: validator.New(),
		logger:    logger,
	}
}

// Login handles user authentication
// @Summary User Login
// @Description Authenticate with email and password. Degraded sessions are flagged in the response.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponse} "Login successful with tokens"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if ok, err := bindAndValidate(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/auth/login")
	defer cancel()

	result, err := h.loginFlow.Login(ctx, &req)
	if err != nil {
		return flowError(c, h.logger, err, "LOGIN_FAILED", "Login failed")
	}
	if result.Degraded {
		c.Set(middleware.DegradedHeader, "true")
	}

	return SuccessResponse(c, fiber.StatusOK, "Login successful", result)
}

// Refresh exchanges a refresh token for a new token pair
// @Summary Refresh Tokens
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.RefreshTokenResponse}
// @Failure 401 {object} dto.APIResponse "Invalid or expired refresh token"
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if ok, err := bindAndValidate(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/auth/refresh")
	defer cancel()

	result, err := h.loginFlow.Refresh(ctx, &req)
	if err != nil {
		return flowError(c, h.logger, err, "REFRESH_FAILED", "Token refresh failed")
	}
	return SuccessResponse(c, fiber.StatusOK, "Tokens refreshed", result)
}

// Logout revokes the access token of the request
// @Summary Logout
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	token := strings.TrimSpace(strings.TrimPrefix(c.Get("Authorization"), "Bearer "))

	ctx, cancel := createRequestContext(c, "/api/v1/auth/logout")
	defer cancel()

	if err := h.loginFlow.Logout(ctx, token); err != nil {
		return flowError(c, h.logger, err, "LOGOUT_FAILED", "Logout failed")
	}
	return SuccessResponse(c, fiber.StatusOK, "Logged out", nil)
}

// ForgotPassword emails a recovery code
// @Summary Forgot Password
// @Description Send a recovery code to the account email. The answer is the same for unknown emails.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.ForgotPasswordRequest true "Password recovery request"
// @Success 200 {object} dto.APIResponse{data=dto.ForgotPasswordResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if ok, err := bindAndValidate(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/auth/forgot-password")
	defer cancel()

	result, err := h.loginFlow.ForgotPassword(ctx, &req)
	if err != nil {
		return flowError(c, h.logger, err, "PASSWORD_RECOVERY_FAILED", "Password recovery failed")
	}
	return SuccessResponse(c, fiber.StatusOK, "If the account exists a recovery code was sent", result)
}

// ResetPassword completes a password reset
// @Summary Reset Password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.ResetPasswordRequest true "Password reset data"
// @Success 200 {object} dto.APIResponse{data=dto.ResetPasswordResponse}
// @Failure 400 {object} dto.APIResponse "Invalid request or recovery code"
// @Router /api/v1/auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if ok, err := bindAndValidate(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/auth/reset-password")
	defer cancel()

	result, err := h.loginFlow.ResetPassword(ctx, &req)
	if err != nil {
		return flowError(c, h.logger, err, "PASSWORD_RESET_FAILED", "Password reset failed")
	}
	return SuccessResponse(c, fiber.StatusOK, "Password reset successful", result)
}

// Health handles health check requests
// @Summary Health Check
// @Tags Health
// @Produce json
// @Success 200 {object} dto.APIResponse "Service is healthy"
// @Router /api/v1/health [get]
func (h *AuthHandler) Health(c fiber.Ctx) error {
	return SuccessResponse(c, fiber.StatusOK, "Service is healthy", fiber.Map{
		"status":    "healthy",
		"timestamp": utils.UTCNow().Format(time.RFC3339),
		"service":   "humanflow-api",
		"version":   utils.AppVersion,
	})
}
