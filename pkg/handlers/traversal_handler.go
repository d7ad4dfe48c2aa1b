package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lattice-hq/lattice-engine/pkg/apperrors"
	"github.com/lattice-hq/lattice-engine/pkg/auth"
	"github.com/lattice-hq/lattice-engine/pkg/models"
	"github.com/lattice-hq/lattice-engine/pkg/services"
)

// TraversalHandler serves neighbor, path and subgraph traversal endpoints.
type TraversalHandler struct {
	traversalService services.TraversalService
	logger           *zap.Logger
}

// NewTraversalHandler creates a new traversal handler.
func NewTraversalHandler(traversalService services.TraversalService, logger *zap.Logger) *TraversalHandler {
	return &TraversalHandler{
		traversalService: traversalService,
		logger:           logger,
	}
}

// RegisterRoutes registers the traversal handler's routes on the given mux.
func (h *TraversalHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/workspaces/{wid}"

	mux.HandleFunc("GET "+base+"/entities/{eid}/neighbors",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Neighbors)))
	mux.HandleFunc("GET "+base+"/entities/{eid}/paths/{tid}",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Paths)))
	mux.HandleFunc("GET "+base+"/traverse",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Traverse)))
}

// Neighbors handles GET /api/workspaces/{wid}/entities/{eid}/neighbors
func (h *TraversalHandler) Neighbors(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}
	entityID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}
	page, ok := parsePageOptions(w, r)
	if !ok {
		return
	}

	direction := models.Direction(r.URL.Query().Get("direction"))
	typeFilter := r.URL.Query().Get("type")

	neighbors, total, err := h.traversalService.Neighbors(r.Context(), workspaceID, entityID, direction, typeFilter, page)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteDataMeta(w, http.StatusOK, neighbors, listMeta(total, len(neighbors))); err != nil {
		h.logger.Error("Failed to encode neighbors response", zap.Error(err))
	}
}

// Paths handles GET /api/workspaces/{wid}/entities/{eid}/paths/{tid}
// Finds simple paths between the two entities up to the requested depth.
func (h *TraversalHandler) Paths(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}
	sourceID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}
	targetID, ok := ParseTargetID(w, r, h.logger)
	if !ok {
		return
	}
	depth, ok := parseDepth(w, r)
	if !ok {
		return
	}

	typeFilter := r.URL.Query().Get("type")

	paths, err := h.traversalService.Paths(r.Context(), workspaceID, sourceID, targetID, depth, typeFilter)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	meta := map[string]int{"count": len(paths)}
	if err := WriteDataMeta(w, http.StatusOK, paths, meta); err != nil {
		h.logger.Error("Failed to encode paths response", zap.Error(err))
	}
}

// Traverse handles GET /api/workspaces/{wid}/traverse
// Collects the subgraph reachable from start_id within depth hops.
func (h *TraversalHandler) Traverse(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	startRaw := r.URL.Query().Get("start_id")
	if startRaw == "" {
		_ = WriteValidationError(w, []apperrors.FieldError{
			{Field: "start_id", Message: "start_id is required", Constraint: "required"},
		})
		return
	}
	startID, err := uuid.Parse(startRaw)
	if err != nil {
		_ = WriteValidationError(w, []apperrors.FieldError{
			{Field: "start_id", Message: "start_id must be a UUID", Constraint: "type"},
		})
		return
	}

	depth, ok := parseDepth(w, r)
	if !ok {
		return
	}

	direction := models.Direction(r.URL.Query().Get("direction"))
	typeFilter := r.URL.Query().Get("type")

	subgraph, err := h.traversalService.Traverse(r.Context(), workspaceID, startID, depth, direction, typeFilter)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	hops := 1
	if depth != nil {
		hops = *depth
	}
	meta := map[string]int{"depth": hops}
	if err := WriteDataMeta(w, http.StatusOK, subgraph, meta); err != nil {
		h.logger.Error("Failed to encode traverse response", zap.Error(err))
	}
}
