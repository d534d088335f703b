// Package businessflow contains the core business logic and use cases for authentication workflows
package businessflow

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/amirphl/humanflow/app/dto"
	"github.com/amirphl/humanflow/app/services"
	"github.com/amirphl/humanflow/config"
	"github.com/amirphl/humanflow/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// LoginFlow handles user authentication and password reset operations
type LoginFlow interface {
	Login(ctx context.Context, request *dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, request *dto.RefreshTokenRequest) (*dto.RefreshTokenResponse, error)
	Logout(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, request *dto.ForgotPasswordRequest) (*dto.ForgotPasswordResponse, error)
	ResetPassword(ctx context.Context, request *dto.ResetPasswordRequest) (*dto.ResetPasswordResponse, error)
}

// LoginFlowImpl implements the login business flow
type LoginFlowImpl struct {
	auth           AuthProvider
	store          SessionStore
	tokenService   services.TokenService
	mailSvc        services.MailService
	securityConfig config.SecurityConfig
	logger         *zap.Logger
}

// NewLoginFlow creates a new login flow instance. store may be nil when no
// primary database is configured.
func NewLoginFlow(
	auth AuthProvider,
	store SessionStore,
	tokenService services.TokenService,
	mailSvc services.MailService,
	securityConfig config.SecurityConfig,
	logger *zap.Logger,
) LoginFlow {
	return &LoginFlowImpl{
		auth:           auth,
		store:          store,
		tokenService:   tokenService,
		mailSvc:        mailSvc,
		securityConfig: securityConfig,
		logger:         logger,
	}
}

func invalidCredentials() *BusinessError {
	return NewBusinessError("INVALID_CREDENTIALS", "Invalid email or password", ErrInvalidCredentials)
}

// Login authenticates a user and issues a token pair. Every failure reason
// is reported as invalid credentials.
func (lf *LoginFlowImpl) Login(ctx context.Context, request *dto.LoginRequest) (*dto.LoginResponse, error) {
	email := utils.NormalizeEmail(request.Email)

	result, err := lf.auth.Authenticate(ctx, email, request.Password)
	if err != nil {
		if IsAuthUnavailable(err) {
			lf.logger.Error("Login rejected, no credential store available", zap.String("email", email))
		} else {
			lf.logger.Info("Login failed", zap.String("email", email))
		}
		return nil, invalidCredentials()
	}

	if !result.Degraded && lf.store != nil {
		if _, err := lf.store.EnsureUser(ctx, result.User.Email); err != nil {
			lf.logger.Warn("Failed to record user visit", zap.String("email", result.User.Email), zap.Error(err))
		}
	}

	pair, err := lf.tokenService.GenerateTokens(result.User.Email, result.Degraded)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to issue tokens", err)
	}

	lf.logger.Info("User logged in",
		zap.String("email", result.User.Email),
		zap.String("source", string(result.Source)),
		zap.Bool("degraded", result.Degraded))

	return &dto.LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
		ExpiresAt:    pair.ExpiresAt,
		User:         ToUserInfo(*result.User),
		Degraded:     result.Degraded,
	}, nil
}

// Refresh rotates a refresh token into a new pair
func (lf *LoginFlowImpl) Refresh(ctx context.Context, request *dto.RefreshTokenRequest) (*dto.RefreshTokenResponse, error) {
	pair, err := lf.tokenService.RefreshToken(request.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("INVALID_TOKEN", "Invalid or expired refresh token", err)
	}
	claims, err := lf.tokenService.ValidateToken(pair.AccessToken)
	if err != nil {
		return nil, NewBusinessError("INVALID_TOKEN", "Invalid or expired refresh token", err)
	}
	return &dto.RefreshTokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
		ExpiresAt:    pair.ExpiresAt,
		Degraded:     claims.Degraded,
	}, nil
}

// Logout revokes the presented token
func (lf *LoginFlowImpl) Logout(ctx context.Context, token string) error {
	if err := lf.tokenService.RevokeToken(token); err != nil {
		return NewBusinessError("INVALID_TOKEN", "Invalid token", err)
	}
	return nil
}

// ForgotPassword emails a recovery code. The response is the same whether
// or not the account exists.
func (lf *LoginFlowImpl) ForgotPassword(ctx context.Context, request *dto.ForgotPasswordRequest) (*dto.ForgotPasswordResponse, error) {
	email := utils.NormalizeEmail(request.Email)
	resp := &dto.ForgotPasswordResponse{ExpiresIn: int(utils.RecoveryCodeTTL.Seconds())}

	if lf.store == nil {
		lf.logger.Warn("Password recovery requested without a session store", zap.String("email", email))
		return resp, nil
	}

	code, err := GenerateRecoveryCode()
	if err != nil {
		return nil, NewBusinessError("FORGOT_PASSWORD_FAILED", "Failed to start password recovery", err)
	}

	if err := lf.store.SetRecoveryCode(ctx, email, code, utils.UTCNowAdd(utils.RecoveryCodeTTL)); err != nil {
		if IsUserNotFound(err) {
			lf.logger.Info("Password recovery for unknown email", zap.String("email", email))
			return resp, nil
		}
		return nil, NewBusinessError("FORGOT_PASSWORD_FAILED", "Failed to start password recovery", err)
	}

	if err := lf.mailSvc.SendRecoveryCode(email, code, utils.RecoveryCodeTTL); err != nil {
		// TODO: Retry sending the recovery mail from a background job
		lf.logger.Error("Recovery code generated but mail failed", zap.String("email", email), zap.Error(err))
	}

	return resp, nil
}

// ResetPassword replaces the password of a user holding a valid recovery code
func (lf *LoginFlowImpl) ResetPassword(ctx context.Context, request *dto.ResetPasswordRequest) (*dto.ResetPasswordResponse, error) {
	minLength := lf.securityConfig.PasswordMinLength
	if minLength <= 0 {
		minLength = 8
	}
	if len(request.NewPassword) < minLength {
		return nil, NewBusinessErrorf("PASSWORD_TOO_SHORT", "Password must be at least %d characters", ErrPasswordTooShort, minLength)
	}
	if lf.store == nil {
		return nil, NewBusinessError("PERSISTENCE_UNAVAILABLE", "Password reset is not available", ErrPersistenceDisabled)
	}

	cost := lf.securityConfig.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(request.NewPassword), cost)
	if err != nil {
		return nil, NewBusinessError("RESET_PASSWORD_FAILED", "Failed to reset password", err)
	}

	email := utils.NormalizeEmail(request.Email)
	if err := lf.store.ResetPassword(ctx, email, request.Code, string(hash)); err != nil {
		if IsInvalidRecoveryCode(err) || IsUserNotFound(err) {
			return nil, NewBusinessError("INVALID_RECOVERY_CODE", "Invalid or expired recovery code", ErrInvalidRecoveryCode)
		}
		return nil, NewBusinessError("RESET_PASSWORD_FAILED", "Failed to reset password", err)
	}

	lf.logger.Info("Password reset", zap.String("email", email))
	return &dto.ResetPasswordResponse{PasswordChangedAt: utils.UTCNow()}, nil
}

// Recovery codes are uniform over [recoveryCodeMin, recoveryCodeMin+recoveryCodeSpan)
const (
	recoveryCodeMin  = 100000
	recoveryCodeSpan = 900000
)

// GenerateRecoveryCode returns a random 6-digit code
func GenerateRecoveryCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(recoveryCodeSpan))
	if err != nil {
		return "", err
	}
	return recoveryCodeFromOffset(n.Int64()), nil
}

func recoveryCodeFromOffset(n int64) string {
	return fmt.Sprintf("%06d", recoveryCodeMin+n)
}
