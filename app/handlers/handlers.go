// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/humanflow/app/dto"
	"github.com/amirphl/humanflow/app/middleware"
	businessflow "github.com/amirphl/humanflow/business_flow"
	"github.com/amirphl/humanflow/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"go.uber.org/zap"
)

// RequestTimeout bounds every flow call made by a handler
const RequestTimeout = 30 * time.Second

// ErrorResponse writes a failed APIResponse
func ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

// SuccessResponse writes a successful APIResponse
func SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	if email, ok := middleware.GetUserEmailFromContext(c); ok {
		ctx = context.WithValue(ctx, utils.UserEmailKey, email)
	}

	return ctx, cancel
}

// principal returns the authenticated caller set by the auth middleware
func principal(c fiber.Ctx) businessflow.Principal {
	email, _ := middleware.GetUserEmailFromContext(c)
	return businessflow.Principal{Email: email, Degraded: middleware.IsDegraded(c)}
}

// bindAndValidate decodes the JSON body into req and runs the struct validations.
// It writes the error response itself and reports whether the handler may go on.
func bindAndValidate(c fiber.Ctx, v *validator.Validate, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := v.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return false, ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
		}
		messages := make([]string, 0, len(fieldErrors))
		for _, fe := range fieldErrors {
			messages = append(messages, getValidationErrorMessage(fe))
		}
		return false, ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}
	return true, nil
}

// statusFor maps business errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case businessflow.IsInvalidCredentials(err):
		return fiber.StatusUnauthorized
	case businessflow.IsWorkbookUnreadable(err):
		return fiber.StatusBadRequest
	case businessflow.IsWorkbookEmpty(err), businessflow.IsMappingInvalid(err), businessflow.IsTemplateTooLong(err):
		return fiber.StatusUnprocessableEntity
	case businessflow.IsFileTooLarge(err):
		return fiber.StatusRequestEntityTooLarge
	case businessflow.IsImportNotFound(err), businessflow.IsUploadNotFound(err),
		businessflow.IsUploadAccessDenied(err), businessflow.IsContactNotFound(err):
		return fiber.StatusNotFound
	case businessflow.IsPersistenceDisabled(err):
		return fiber.StatusServiceUnavailable
	case businessflow.IsInvalidRecoveryCode(err), businessflow.IsPasswordTooShort(err):
		return fiber.StatusBadRequest
	}

	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Code == "INVALID_TOKEN" {
		return fiber.StatusUnauthorized
	}
	return fiber.StatusInternalServerError
}

// flowError writes the response for an error returned by a flow. Server
// errors are logged with the request id; their cause is not exposed.
func flowError(c fiber.Ctx, logger *zap.Logger, err error, fallbackCode, fallbackMessage string) error {
	status := statusFor(err)
	code, message := fallbackCode, fallbackMessage

	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Code != "" {
		code, message = be.Code, be.Message
	}

	if status >= fiber.StatusInternalServerError && status != fiber.StatusServiceUnavailable {
		logger.Error(fallbackMessage,
			zap.String("request_id", requestid.FromContext(c)),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return ErrorResponse(c, status, message, code, nil)
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "len":
		return err.Field() + " must be exactly " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "eqfield":
		return err.Field() + " must match " + err.Param()
	case "numeric":
		return err.Field() + " must contain only numbers"
	case "uuid":
		return err.Field() + " must be a valid token"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
