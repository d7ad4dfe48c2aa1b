package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
	ErrMissingWorkspaceID   = errors.New("missing workspace ID in token")
	ErrWorkspaceIDMismatch  = errors.New("workspace ID mismatch between token and URL")
)

// AuthService defines the interface for authentication operations.
// This abstraction enables clean separation between HTTP handling
// and authentication logic, making both easier to test.
type AuthService interface {
	// ValidateRequest extracts and validates a bearer JWT from the request.
	// Returns the validated claims, the raw token string, or an error.
	ValidateRequest(r *http.Request) (*Claims, string, error)

	// RequireWorkspaceID validates that the claims contain a workspace ID.
	RequireWorkspaceID(claims *Claims) error

	// ValidateWorkspaceIDMatch ensures the URL workspace ID matches the token
	// workspace ID. If urlWorkspaceID is empty, validation is skipped.
	ValidateWorkspaceIDMatch(claims *Claims, urlWorkspaceID string) error
}

type authService struct {
	jwksClient JWKSClientInterface
	logger     *zap.Logger
}

// NewAuthService creates a new AuthService with the given JWKS client and logger.
func NewAuthService(jwksClient JWKSClientInterface, logger *zap.Logger) AuthService {
	return &authService{
		jwksClient: jwksClient,
		logger:     logger,
	}
}

var _ AuthService = (*authService)(nil)

// ValidateRequest extracts and validates a bearer JWT from the request.
func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		s.logger.Debug("No JWT found in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method))
		return nil, "", ErrMissingAuthorization
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		s.logger.Debug("Invalid Authorization header format",
			zap.String("path", r.URL.Path))
		return nil, "", ErrInvalidAuthFormat
	}

	claims, err := s.jwksClient.ValidateToken(parts[1])
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path))
		return nil, "", err
	}

	return claims, parts[1], nil
}

// RequireWorkspaceID validates that the claims contain a workspace ID.
func (s *authService) RequireWorkspaceID(claims *Claims) error {
	if claims.WorkspaceID == "" {
		return ErrMissingWorkspaceID
	}
	return nil
}

// ValidateWorkspaceIDMatch ensures the URL workspace ID matches the token
// workspace ID.
func (s *authService) ValidateWorkspaceIDMatch(claims *Claims, urlWorkspaceID string) error {
	if urlWorkspaceID != "" && claims.WorkspaceID != urlWorkspaceID {
		s.logger.Warn("Workspace ID mismatch",
			zap.String("url_workspace_id", urlWorkspaceID),
			zap.String("token_workspace_id", claims.WorkspaceID))
		return ErrWorkspaceIDMismatch
	}
	return nil
}
