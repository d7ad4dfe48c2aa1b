// Package testhelpers provides utilities for testing lattice-engine components.
package testhelpers

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// GenerateTestJWT creates a test JWT token for use when verification is
// disabled. The token has a valid structure but no signature (alg: none).
// This is useful for testing auth flows without needing real JWKS validation.
func GenerateTestJWT(sub, workspaceID, email string, roles ...string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	payload := fmt.Sprintf(`{"sub":"%s"`, sub)
	if workspaceID != "" {
		payload += fmt.Sprintf(`,"wid":"%s"`, workspaceID)
	}
	if email != "" {
		payload += fmt.Sprintf(`,"email":"%s"`, email)
	}
	if len(roles) > 0 {
		payload += fmt.Sprintf(`,"roles":["%s"]`, strings.Join(roles, `","`))
	}
	payload += "}"

	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return fmt.Sprintf("%s.%s.", header, encodedPayload)
}

// GenerateTestJWTWithBearer returns token with "Bearer " prefix for Authorization header.
func GenerateTestJWTWithBearer(sub, workspaceID, email string, roles ...string) string {
	return "Bearer " + GenerateTestJWT(sub, workspaceID, email, roles...)
}
