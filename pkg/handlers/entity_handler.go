package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/lattice-hq/lattice-engine/pkg/auth"
	"github.com/lattice-hq/lattice-engine/pkg/services"
)

// EntityHandler serves entity CRUD endpoints.
type EntityHandler struct {
	graphService services.GraphService
	logger       *zap.Logger
}

// NewEntityHandler creates a new entity handler.
func NewEntityHandler(graphService services.GraphService, logger *zap.Logger) *EntityHandler {
	return &EntityHandler{
		graphService: graphService,
		logger:       logger,
	}
}

// RegisterRoutes registers the entity handler's routes on the given mux.
func (h *EntityHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/workspaces/{wid}/entities"

	mux.HandleFunc("POST "+base,
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Create)))
	mux.HandleFunc("GET "+base,
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.List)))
	mux.HandleFunc("GET "+base+"/{eid}",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Get)))
	mux.HandleFunc("PUT "+base+"/{eid}",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{eid}",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Delete)))
}

// CreateEntityRequest is the POST entity request body.
type CreateEntityRequest struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// Create handles POST /api/workspaces/{wid}/entities
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateEntityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entity, err := h.graphService.CreateEntity(r.Context(), workspaceID, req.Type, req.Properties)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteData(w, http.StatusCreated, entity); err != nil {
		h.logger.Error("Failed to encode entity response", zap.Error(err))
	}
}

// List handles GET /api/workspaces/{wid}/entities
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
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

	entities, total, err := h.graphService.ListEntities(r.Context(), workspaceID, opts)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteDataMeta(w, http.StatusOK, entities, listMeta(total, len(entities))); err != nil {
		h.logger.Error("Failed to encode entity list response", zap.Error(err))
	}
}

// Get handles GET /api/workspaces/{wid}/entities/{eid}
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}
	entityID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}
	includeDeleted, ok := parseIncludeDeleted(w, r)
	if !ok {
		return
	}

	entity, err := h.graphService.GetEntity(r.Context(), workspaceID, entityID, includeDeleted)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteData(w, http.StatusOK, entity); err != nil {
		h.logger.Error("Failed to encode entity response", zap.Error(err))
	}
}

// UpdateEntityRequest is the PUT entity request body. Properties is a merge
// patch over the stored properties.
type UpdateEntityRequest struct {
	Properties map[string]any `json:"properties"`
}

// Update handles PUT /api/workspaces/{wid}/entities/{eid}
func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}
	entityID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateEntityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entity, err := h.graphService.UpdateEntity(r.Context(), workspaceID, entityID, req.Properties)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteData(w, http.StatusOK, entity); err != nil {
		h.logger.Error("Failed to encode entity response", zap.Error(err))
	}
}

// Delete handles DELETE /api/workspaces/{wid}/entities/{eid}
// Soft-deletes the entity and cascades to its incident edges.
func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}
	entityID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	entity, cascaded, err := h.graphService.DeleteEntity(r.Context(), workspaceID, entityID)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	meta := map[string]int{"cascade_deleted_edges": cascaded}
	if err := WriteDataMeta(w, http.StatusOK, entity, meta); err != nil {
		h.logger.Error("Failed to encode entity response", zap.Error(err))
	}
}

func listMeta(total, count int) map[string]int {
	return map[string]int{"total": total, "count": count}
}
