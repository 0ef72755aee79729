package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newTestManager(expiry time.Duration) *JWTManager {
	return NewJWTManager([]byte("secret"), expiry, "eventplus", "eventplus-api", 5*time.Minute)
}

func TestJWTGenerateValidate(t *testing.T) {
	manager := newTestManager(time.Hour)
	token, expiresAt, err := manager.Generate(Principal{UserID: "user-1", Role: RoleOrganizer})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := manager.Validate(token)
	require.NoError(t, err)
	require.Equal(t, Principal{UserID: "user-1", Role: RoleOrganizer}, claims.Principal())
	require.NotEmpty(t, claims.ID)
	require.Equal(t, expiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestJWTGenerateInvalid(t *testing.T) {
	manager := newTestManager(time.Hour)
	_, _, err := manager.Generate(Principal{Role: RoleAttendee})
	require.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = manager.Generate(Principal{UserID: "user-1", Role: "superuser"})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidateMissing(t *testing.T) {
	manager := newTestManager(time.Hour)
	_, err := manager.Validate("  ")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestJWTValidateRejectsForeignTokens(t *testing.T) {
	manager := newTestManager(time.Hour)
	principal := Principal{UserID: "user-1", Role: RoleAttendee}

	otherSecret := NewJWTManager([]byte("other"), time.Hour, "eventplus", "eventplus-api", 0)
	token, _, err := otherSecret.Generate(principal)
	require.NoError(t, err)
	_, err = manager.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	otherAudience := NewJWTManager([]byte("secret"), time.Hour, "eventplus", "someone-else", 0)
	token, _, err = otherAudience.Generate(principal)
	require.NoError(t, err)
	_, err = manager.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	otherIssuer := NewJWTManager([]byte("secret"), time.Hour, "elsewhere", "eventplus-api", 0)
	token, _, err = otherIssuer.Generate(principal)
	require.NoError(t, err)
	_, err = manager.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidateExpiryHonoursLeeway(t *testing.T) {
	manager := newTestManager(time.Hour)
	sign := func(expiredFor time.Duration) string {
		now := time.Now()
		claims := &Claims{
			Role: string(RoleAttendee),
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				Issuer:    "eventplus",
				Audience:  jwt.ClaimStrings{"eventplus-api"},
				IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
				ExpiresAt: jwt.NewNumericDate(now.Add(-expiredFor)),
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		return signed
	}

	_, err := manager.Validate(sign(time.Minute))
	require.NoError(t, err, "expired within leeway")

	_, err = manager.Validate(sign(10 * time.Minute))
	require.True(t, errors.Is(err, ErrInvalidToken))
	require.True(t, errors.Is(err, jwt.ErrTokenExpired), "jwt cause is kept")
}

func TestJWTValidateRejectsUnknownRole(t *testing.T) {
	manager := newTestManager(time.Hour)
	claims := &Claims{
		Role: "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "eventplus",
			Audience:  jwt.ClaimStrings{"eventplus-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = manager.Validate(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromHeader(t *testing.T) {
	_, err := TokenFromHeader("nope")
	require.ErrorIs(t, err, ErrMissingToken)

	token, err := TokenFromHeader("Bearer token")
	require.NoError(t, err)
	require.Equal(t, "token", token)

	token, err = TokenFromHeader("bearer  token ")
	require.NoError(t, err)
	require.Equal(t, "token", token)
}

func TestTokenFromHeaderRejectsMalformed(t *testing.T) {
	for _, header := range []string{"", "Bearer", "Bearer ", "Basic dXNlcjpwYXNz", "Bearer a b"} {
		_, err := TokenFromHeader(header)
		require.ErrorIs(t, err, ErrMissingToken, header)
	}
}
