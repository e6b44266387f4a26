package jwtutil

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/dentline/frontdesk/pkg/config"
)

var (
	secret     []byte
	expiration = time.Hour * 24
)

// SessionClaims represents the JWT claims carried by the session cookie.
// The claims identify the authenticated identity only; roles and tenant
// membership are always re-derived from the store, never trusted from here.
type SessionClaims struct {
	IdentityID uint   `json:"identity_id"`
	Email      string `json:"email"`
	jwt.RegisteredClaims
}

// Initialize configures the signing key and token lifetime.
func Initialize(cfg *config.JWTConfig) {
	secret = []byte(cfg.SigningKey)
	if cfg.ExpirationHours > 0 {
		expiration = time.Duration(cfg.ExpirationHours) * time.Hour
	}
}

// GenerateToken creates a session token for an identity.
func GenerateToken(identityID uint, email string) (string, error) {
	claims := SessionClaims{
		IdentityID: identityID,
		Email:      email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates and parses a session token.
func ValidateToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}

// RefreshToken re-issues a token for the same identity with a fresh expiry.
// Called on every request so a session never expires out from under an
// active user.
func RefreshToken(claims *SessionClaims) (string, error) {
	return GenerateToken(claims.IdentityID, claims.Email)
}
