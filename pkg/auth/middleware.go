package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rentzentro/platform/pkg/ctxkeys"
)

// sessionCookie is where browser clients keep the token; API clients
// send an Authorization header instead.
const sessionCookie = "access_token"

// JWTAuthMiddleware validates the caller's token and injects the
// identity claims into the Gin context for downstream handlers.
func JWTAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if cookie, err := c.Cookie(sessionCookie); err == nil && cookie != "" {
				header = "Bearer " + cookie
			}
		}
		if header == "" {
			abortUnauthorized(c, "No authorization header")
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" || strings.ContainsRune(token, ' ') {
			abortUnauthorized(c, "Invalid authorization header")
			return
		}

		claims, err := ValidateJWT(token, secret)
		if err != nil {
			abortUnauthorized(c, "Invalid JWT token")
			return
		}

		c.Set(string(ctxkeys.KeyUserID), claims.UserID)
		c.Set(string(ctxkeys.KeyAccountID), claims.AccountID)
		c.Set(string(ctxkeys.KeyEmail), claims.Email)
		c.Set(string(ctxkeys.KeyRole), claims.Role)
		c.Set(string(ctxkeys.KeyJWTToken), token)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

// RequireRole restricts a route group to callers whose role claim matches one
// of the allowed roles. Must run after JWTAuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(string(ctxkeys.KeyRole))
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient role"})
	}
}
