package jwtutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentline/frontdesk/pkg/config"
)

func TestGenerateAndValidate(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "unit-test-key", ExpirationHours: 2})

	token, err := GenerateToken(42, "owner@example.com")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.IdentityID)
	assert.Equal(t, "owner@example.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestValidateToken_WrongKey(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "key-one", ExpirationHours: 1})
	token, err := GenerateToken(1, "a@example.com")
	require.NoError(t, err)

	Initialize(&config.JWTConfig{SigningKey: "key-two", ExpirationHours: 1})
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "unit-test-key", ExpirationHours: 1})
	_, err := ValidateToken("definitely.not.a.token")
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "unit-test-key", ExpirationHours: 1})

	claims := SessionClaims{
		IdentityID: 9,
		Email:      "late@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("unit-test-key"))
	require.NoError(t, err)

	_, err = ValidateToken(signed)
	assert.Error(t, err)
}

func TestValidateToken_RejectsUnsignedToken(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "unit-test-key", ExpirationHours: 1})

	claims := SessionClaims{
		IdentityID: 9,
		Email:      "sneaky@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateToken(signed)
	assert.Error(t, err, "tokens not signed with HMAC must be rejected")
}

func TestRefreshToken_ExtendsExpiry(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "unit-test-key", ExpirationHours: 1})

	token, err := GenerateToken(7, "ops@example.com")
	require.NoError(t, err)
	claims, err := ValidateToken(token)
	require.NoError(t, err)

	refreshed, err := RefreshToken(claims)
	require.NoError(t, err)

	newClaims, err := ValidateToken(refreshed)
	require.NoError(t, err)
	assert.Equal(t, claims.IdentityID, newClaims.IdentityID)
	assert.Equal(t, claims.Email, newClaims.Email)
	assert.False(t, newClaims.ExpiresAt.Before(claims.ExpiresAt.Time))
}
