package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lattice-hq/lattice-engine/pkg/apperrors"
	"github.com/lattice-hq/lattice-engine/pkg/services"
)

// ParseWorkspaceID extracts and validates the workspace ID from the request
// path. Returns the parsed UUID and true on success, or uuid.Nil and false
// after writing an error response.
// Expects path parameter: wid
func ParseWorkspaceID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "wid", "invalid_workspace_id", "Invalid workspace ID format", logger)
}

// ParseEntityID extracts and validates the entity ID from the request path.
// Expects path parameter: eid
func ParseEntityID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "eid", "invalid_entity_id", "Invalid entity ID format", logger)
}

// ParseEdgeID extracts and validates the edge ID from the request path.
// Expects path parameter: edgeid
func ParseEdgeID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "edgeid", "invalid_edge_id", "Invalid edge ID format", logger)
}

// ParseTargetID extracts and validates the traversal target ID from the
// request path.
// Expects path parameter: tid
func ParseTargetID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "tid", "invalid_target_id", "Invalid target ID format", logger)
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := WriteError(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// parsePageOptions reads limit and offset query parameters. Absent values stay
// nil so services can apply their defaults. Non-numeric values are rejected
// before any service call.
func parsePageOptions(w http.ResponseWriter, r *http.Request) (services.PageOptions, bool) {
	var page services.PageOptions

	limit, ok := parseOptionalInt(w, r, "limit")
	if !ok {
		return page, false
	}
	offset, ok := parseOptionalInt(w, r, "offset")
	if !ok {
		return page, false
	}

	page.Limit = limit
	page.Offset = offset
	return page, true
}

// parseOptionalInt reads one integer query parameter, returning nil when the
// parameter is absent.
func parseOptionalInt(w http.ResponseWriter, r *http.Request, name string) (*int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		_ = WriteValidationError(w, []apperrors.FieldError{
			{Field: name, Message: fmt.Sprintf("%s must be an integer", name), Constraint: "type"},
		})
		return nil, false
	}
	return &v, true
}

// parseDepth reads the depth query parameter. Absence stays nil so services
// apply their per-operation default; a supplied value passes through as-is,
// including an out-of-range zero, so the depth bound check can reject it.
func parseDepth(w http.ResponseWriter, r *http.Request) (*int, bool) {
	return parseOptionalInt(w, r, "depth")
}

// parseIncludeDeleted reads the include_deleted query parameter.
func parseIncludeDeleted(w http.ResponseWriter, r *http.Request) (bool, bool) {
	raw := r.URL.Query().Get("include_deleted")
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		_ = WriteValidationError(w, []apperrors.FieldError{
			{Field: "include_deleted", Message: "include_deleted must be a boolean", Constraint: "type"},
		})
		return false, false
	}
	return v, true
}
