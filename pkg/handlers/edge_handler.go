package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lattice-hq/lattice-engine/pkg/auth"
	"github.com/lattice-hq/lattice-engine/pkg/services"
)

// EdgeHandler serves edge CRUD endpoints.
type EdgeHandler struct {
	graphService services.GraphService
	logger       *zap.Logger
}

// NewEdgeHandler creates a new edge handler.
func NewEdgeHandler(graphService services.GraphService, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{
		graphService: graphService,
		logger:       logger,
	}
}

// RegisterRoutes registers the edge handler's routes on the given mux.
func (h *EdgeHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/workspaces/{wid}/edges"

	mux.HandleFunc("POST "+base,
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Create)))
	mux.HandleFunc("GET "+base,
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.List)))
	mux.HandleFunc("GET "+base+"/{edgeid}",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Get)))
	mux.HandleFunc("PUT "+base+"/{edgeid}",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{edgeid}",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Delete)))
}

// CreateEdgeRequest is the POST edge request body.
type CreateEdgeRequest struct {
	Type       string         `json:"type"`
	SourceID   uuid.UUID      `json:"source_id"`
	TargetID   uuid.UUID      `json:"target_id"`
	Properties map[string]any `json:"properties"`
}

// Create handles POST /api/workspaces/{wid}/edges
func (h *EdgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateEdgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	edge, err := h.graphService.CreateEdge(r.Context(), workspaceID, req.Type, req.SourceID, req.TargetID, req.Properties)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteData(w, http.StatusCreated, edge); err != nil {
		h.logger.Error("Failed to encode edge response", zap.Error(err))
	}
}

// List handles GET /api/workspaces/{wid}/edges
func (h *EdgeHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	page, ok := parsePageOptions(w, r)
	if !ok {
		return
	}
	includeDeleted, ok := parseIncludeDeleted(w, r)
	if !ok {
		return
	}

	opts := services.ListOptions{
		Type:           r.URL.Query().Get("type"),
		IncludeDeleted: includeDeleted,
		Page:           page,
	}

	edges, total, err := h.graphService.ListEdges(r.Context(), workspaceID, opts)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteDataMeta(w, http.StatusOK, edges, listMeta(total, len(edges))); err != nil {
		h.logger.Error("Failed to encode edge list response", zap.Error(err))
	}
}

// Get handles GET /api/workspaces/{wid}/edges/{edgeid}
func (h *EdgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}
	edgeID, ok := ParseEdgeID(w, r, h.logger)
	if !ok {
		return
	}
	includeDeleted, ok := parseIncludeDeleted(w, r)
	if !ok {
		return
	}

	edge, err := h.graphService.GetEdge(r.Context(), workspaceID, edgeID, includeDeleted)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteData(w, http.StatusOK, edge); err != nil {
		h.logger.Error("Failed to encode edge response", zap.Error(err))
	}
}

// UpdateEdgeRequest is the PUT edge request body. Properties is a merge patch
// over the stored properties.
type UpdateEdgeRequest struct {
	Properties map[string]any `json:"properties"`
}

// Update handles PUT /api/workspaces/{wid}/edges/{edgeid}
func (h *EdgeHandler) Update(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}
	edgeID, ok := ParseEdgeID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateEdgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	edge, err := h.graphService.UpdateEdge(r.Context(), workspaceID, edgeID, req.Properties)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteData(w, http.StatusOK, edge); err != nil {
		h.logger.Error("Failed to encode edge response", zap.Error(err))
	}
}

// Delete handles DELETE /api/workspaces/{wid}/edges/{edgeid}
func (h *EdgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}
	edgeID, ok := ParseEdgeID(w, r, h.logger)
	if !ok {
		return
	}

	edge, err := h.graphService.DeleteEdge(r.Context(), workspaceID, edgeID)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteData(w, http.StatusOK, edge); err != nil {
		h.logger.Error("Failed to encode edge response", zap.Error(err))
	}
}
