// Package auth provides JWT bearer authentication for lattice-engine.
// Tokens are validated against configured JWKS endpoints and must carry the
// workspace the caller is operating in.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// RoleAdmin is required for schema writes.
const RoleAdmin = "admin"

// Claims represents the JWT claims structure. It embeds RegisteredClaims for
// standard JWT fields (sub, iss, exp, ...) and adds the workspace context.
type Claims struct {
	jwt.RegisteredClaims
	WorkspaceID string   `json:"wid,omitempty"`   // Workspace UUID
	Email       string   `json:"email,omitempty"` // User email address
	Roles       []string `json:"roles,omitempty"` // User roles within the workspace
}

// HasRole reports whether the claims carry the given role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}
