package database

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lattice-hq/lattice-engine/pkg/auth"
)

// WithTenantContext creates middleware that sets up a workspace-scoped DB
// connection. It runs AFTER auth middleware and uses the workspace ID from JWT
// claims. The connection is automatically cleaned up after the handler returns.
func WithTenantContext(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.GetClaims(r.Context())
			if !ok || claims.WorkspaceID == "" {
				logger.Error("Missing workspace context in claims")
				writeError(w, http.StatusInternalServerError, "internal_error", "Missing workspace context")
				return
			}

			workspaceID, err := uuid.Parse(claims.WorkspaceID)
			if err != nil {
				logger.Error("Invalid workspace ID format in claims",
					zap.String("workspace_id", claims.WorkspaceID),
					zap.Error(err))
				writeError(w, http.StatusBadRequest, "invalid_workspace_id", "Invalid workspace ID format")
				return
			}

			scope, err := db.WithTenant(r.Context(), workspaceID)
			if err != nil {
				logger.Error("Failed to acquire tenant connection",
					zap.String("workspace_id", workspaceID.String()),
					zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "graph_unavailable", "Graph store unavailable")
				return
			}
			defer scope.Close()

			ctx := SetTenantScope(r.Context(), scope)
			next(w, r.WithContext(ctx))
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
