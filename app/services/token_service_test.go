package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService() (TokenService, error) {
	return NewTokenService(
		15*time.Minute,
		7*24*time.Hour,
		"test-issuer",
		"test-audience",
		false, // useRSAKeys
		"",    // privateKeyPEM
		"",    // publicKeyPEM
		"test-secret-key-for-jwt-signing-32-chars", // secretKey
	)
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		useRSAKeys  bool
		privateKey  string
		publicKey   string
		secretKey   string
		expectError bool
	}{
		{
			name:      "valid symmetric key configuration",
			secretKey: "test-secret-key-for-jwt-signing-32-chars",
		},
		{
			name:        "missing secret key",
			expectError: true,
		},
		{
			name:        "rsa without keys",
			useRSAKeys:  true,
			expectError: true,
		},
		{
			name:        "rsa with garbage keys",
			useRSAKeys:  true,
			privateKey:  "not a pem",
			publicKey:   "not a pem",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(15*time.Minute, time.Hour, "iss", "aud", tt.useRSAKeys, tt.privateKey, tt.publicKey, tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, service)
		})
	}
}

func TestGenerateAndValidateTokens(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		degraded bool
	}{
		{name: "regular user", email: "ana@example.com"},
		{name: "degraded session", email: "guest@example.com", degraded: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := service.GenerateTokens(tt.email, tt.degraded)
			require.NoError(t, err)
			assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
			assert.True(t, strings.HasPrefix(pair.AccessToken, "eyJ"))
			assert.Equal(t, int((15 * time.Minute).Seconds()), pair.ExpiresIn)

			access, err := service.ValidateToken(pair.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, tt.email, access.Email)
			assert.Equal(t, tt.degraded, access.Degraded)
			assert.Equal(t, TokenTypeAccess, access.TokenType)
			assert.NotEmpty(t, access.TokenID)
			assert.True(t, access.ExpiresAt.After(access.IssuedAt))

			refresh, err := service.ValidateToken(pair.RefreshToken)
			require.NoError(t, err)
			assert.Equal(t, TokenTypeRefresh, refresh.TokenType)
			assert.NotEqual(t, access.TokenID, refresh.TokenID)
		})
	}
}

func TestValidateToken_Invalid(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	other, err := NewTokenService(time.Minute, time.Hour, "iss", "aud", false, "", "", "another-secret-key-for-jwt-signing-32c")
	require.NoError(t, err)
	foreign, err := other.GenerateTokens("ana@example.com", false)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "invalid token format", token: "invalid.token.format"},
		{name: "malformed token", token: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature"},
		{name: "signed with another key", token: foreign.AccessToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
			assert.Nil(t, claims)
		})
	}
}

func TestRefreshToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	pair, err := service.GenerateTokens("ana@example.com", true)
	require.NoError(t, err)

	t.Run("valid refresh token", func(t *testing.T) {
		next, err := service.RefreshToken(pair.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

		claims, err := service.ValidateToken(next.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "ana@example.com", claims.Email)
		assert.True(t, claims.Degraded)
	})

	t.Run("refresh token cannot be reused", func(t *testing.T) {
		_, err := service.RefreshToken(pair.RefreshToken)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("access token instead of refresh token", func(t *testing.T) {
		_, err := service.RefreshToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := service.RefreshToken("invalid.token")
		assert.Error(t, err)
	})
}

func TestRevokeToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	pair, err := service.GenerateTokens("ana@example.com", false)
	require.NoError(t, err)

	claims, err := service.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.False(t, service.IsTokenRevoked(claims.TokenID))

	require.NoError(t, service.RevokeToken(pair.AccessToken))
	assert.True(t, service.IsTokenRevoked(claims.TokenID))

	_, err = service.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// the refresh token of the same pair stays valid
	_, err = service.ValidateToken(pair.RefreshToken)
	assert.NoError(t, err)

	assert.Error(t, service.RevokeToken(""))
}

func TestTokenExpiration(t *testing.T) {
	service, err := NewTokenService(-1*time.Second, time.Hour, "test-issuer", "test-audience", false, "", "", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)

	pair, err := service.GenerateTokens("ana@example.com", false)
	require.NoError(t, err)

	_, err = service.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
