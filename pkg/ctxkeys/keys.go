// Package ctxkeys names the identity values the JWT middleware stores on
// the request context. Typed keys keep handler lookups and middleware
// writes pointing at the same slot.
package ctxkeys

// Key is the context key type shared by middleware and handlers.
type Key string

const (
	KeyUserID    Key = "user_id"
	KeyAccountID Key = "account_id"
	KeyEmail     Key = "email"
	KeyRole      Key = "role"
	KeyJWTToken  Key = "jwt_token"
)
