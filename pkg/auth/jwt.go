package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidJWT = errors.New("invalid JWT token")
	ErrExpiredJWT = errors.New("JWT token expired")
)

// sessionTTL keeps web tokens short-lived; the frontend refreshes them
// against the identity provider well before expiry.
const sessionTTL = 15 * time.Minute

// hmacMethods lists the signing algorithms tokens may carry. Anything
// else, including "none", fails validation outright.
var hmacMethods = []string{"HS256", "HS384", "HS512"}

// Claims represents JWT claims with account context. The identity provider
// issues these tokens; this service only validates them.
type Claims struct {
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateJWT mints a session token for the given identity.
func GenerateJWT(userID, accountID, email, role string, secret []byte) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		AccountID: accountID,
		Email:     email,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ValidateJWT checks a token's signature and validity window and returns
// its claims.
func ValidateJWT(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods(hmacMethods),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredJWT
	case err != nil:
		return nil, ErrInvalidJWT
	}
	return claims, nil
}
