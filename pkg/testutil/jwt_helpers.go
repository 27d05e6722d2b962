package testutil

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rentzentro/platform/pkg/auth"
)

// JWTTestHelper mints tokens for handler tests. The secret only has to
// match between the minted token and the middleware under test.
type JWTTestHelper struct {
	Secret []byte
}

func NewJWTTestHelper() *JWTTestHelper {
	return &JWTTestHelper{Secret: []byte("test-secret-for-unit-tests")}
}

func (h *JWTTestHelper) sign(p Persona, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := &auth.Claims{
		UserID:    p.UserID,
		AccountID: p.AccountID,
		Email:     p.Email,
		Role:      p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.Secret)
}

// Persona is a canned identity for request tests.
type Persona struct {
	UserID    string
	AccountID string
	Email     string
	Role      string
}

// GenerateJWT returns a token that is valid for the next few minutes.
func (p Persona) GenerateJWT(h *JWTTestHelper) (string, error) {
	return h.sign(p, time.Now(), 15*time.Minute)
}

// GenerateExpiredJWT returns a token whose validity window closed an hour ago.
func (p Persona) GenerateExpiredJWT(h *JWTTestHelper) (string, error) {
	return h.sign(p, time.Now().Add(-2*time.Hour), time.Hour)
}

var (
	TestLandlord = Persona{
		UserID:    "user-landlord-1",
		AccountID: "acct-landlord-1",
		Email:     "landlord@example.com",
		Role:      "landlord",
	}

	TestTenant = Persona{
		UserID:    "user-tenant-1",
		AccountID: "acct-tenant-1",
		Email:     "tenant@example.com",
		Role:      "tenant",
	}

	TestOtherLandlord = Persona{
		UserID:    "user-landlord-2",
		AccountID: "acct-landlord-2",
		Email:     "landlord2@example.com",
		Role:      "landlord",
	}
)
