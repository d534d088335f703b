// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/amirphl/humanflow/app/dto"
	"github.com/amirphl/humanflow/app/services"
	"github.com/amirphl/humanflow/utils"
	"github.com/gofiber/fiber/v3"
)

// DegradedHeader is set on every response served to a degraded-mode session
const DegradedHeader = "X-Auth-Degraded"

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

func unauthorized(c fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}

// Authenticate is the middleware function that validates JWT tokens
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "MISSING_AUTHORIZATION_HEADER", "Authorization header is required")
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, "INVALID_AUTHORIZATION_FORMAT", "Invalid authorization header format. Expected 'Bearer <token>'")
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return unauthorized(c, "MISSING_ACCESS_TOKEN", "Access token is required")
		}

		// Validate the token (this already checks for revocation)
		claims, err := m.tokenService.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "TOKEN_EXPIRED", "Access token has expired")
			case errors.Is(err, services.ErrTokenRevoked):
				return unauthorized(c, "TOKEN_REVOKED", "Access token has been revoked")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "TOKEN_INVALID", "Invalid access token")
			default:
				return unauthorized(c, "TOKEN_VALIDATION_FAILED", "Token validation failed")
			}
		}
		if claims.TokenType != services.TokenTypeAccess {
			return unauthorized(c, "TOKEN_INVALID", "Invalid access token")
		}

		c.Locals(utils.UserEmailKey, claims.Email)
		c.Locals(utils.DegradedKey, claims.Degraded)
		c.Locals("token_claims", claims)
		if claims.Degraded {
			c.Set(DegradedHeader, "true")
		}

		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals(utils.RequestIDKey, requestID)
		}

		return c.Next()
	}
}

// GetUserEmailFromContext extracts the authenticated email from the request context
func GetUserEmailFromContext(c fiber.Ctx) (string, bool) {
	email, ok := c.Locals(utils.UserEmailKey).(string)
	return email, ok && email != ""
}

// IsDegraded reports whether the request belongs to a degraded-mode session
func IsDegraded(c fiber.Ctx) bool {
	degraded, _ := c.Locals(utils.DegradedKey).(bool)
	return degraded
}

// GetTokenClaimsFromContext extracts token claims from the request context
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.TokenClaims, bool) {
	claims, ok := c.Locals("token_claims").(*services.TokenClaims)
	return claims, ok
}
