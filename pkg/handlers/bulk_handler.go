package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lattice-hq/lattice-engine/pkg/auth"
	"github.com/lattice-hq/lattice-engine/pkg/services"
)

// BulkHandler serves batch entity and edge endpoints. Atomic batches succeed
// or fail as a unit; partial batches report per-item outcomes with the
// original submission indexes.
type BulkHandler struct {
	bulkService services.BulkService
	logger      *zap.Logger
}

// NewBulkHandler creates a new bulk handler.
func NewBulkHandler(bulkService services.BulkService, logger *zap.Logger) *BulkHandler {
	return &BulkHandler{
		bulkService: bulkService,
		logger:      logger,
	}
}

// RegisterRoutes registers the bulk handler's routes on the given mux.
func (h *BulkHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/workspaces/{wid}"

	mux.HandleFunc("POST "+base+"/entities/bulk",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.CreateEntities)))
	mux.HandleFunc("PUT "+base+"/entities/bulk",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.UpdateEntities)))
	mux.HandleFunc("DELETE "+base+"/entities/bulk",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.DeleteEntities)))
	mux.HandleFunc("POST "+base+"/edges/bulk",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.CreateEdges)))
	mux.HandleFunc("PUT "+base+"/edges/bulk",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.UpdateEdges)))
	mux.HandleFunc("DELETE "+base+"/edges/bulk",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.DeleteEdges)))
}

// BulkEntityCreateRequest is the POST entities/bulk request body.
type BulkEntityCreateRequest struct {
	Entities []services.EntityInput `json:"entities"`
	Mode     string                 `json:"mode"`
}

// BulkEntityUpdateRequest is the PUT entities/bulk request body.
type BulkEntityUpdateRequest struct {
	Entities []services.EntityPatch `json:"entities"`
	Mode     string                 `json:"mode"`
}

// BulkDeleteRequest is the DELETE bulk request body for both entities and
// edges.
type BulkDeleteRequest struct {
	IDs  []uuid.UUID `json:"ids"`
	Mode string      `json:"mode"`
}

// BulkEdgeCreateRequest is the POST edges/bulk request body.
type BulkEdgeCreateRequest struct {
	Edges []services.EdgeInput `json:"edges"`
	Mode  string               `json:"mode"`
}

// BulkEdgeUpdateRequest is the PUT edges/bulk request body.
type BulkEdgeUpdateRequest struct {
	Edges []services.EdgePatch `json:"edges"`
	Mode  string               `json:"mode"`
}

// BulkResponse is the mixed-outcome body for partial batches: committed items
// under data, indexed failures under errors, counters under meta.
type BulkResponse struct {
	Data   any                  `json:"data"`
	Errors []services.ItemError `json:"errors"`
	Meta   map[string]any       `json:"meta"`
}

// BulkErrorBody is the error wrapper for batches where no item succeeded.
// The meta counters are still present with the succeeded count at zero.
type BulkErrorBody struct {
	Error  string               `json:"error"`
	Errors []services.ItemError `json:"errors"`
	Meta   map[string]any       `json:"meta"`
}

// CreateEntities handles POST /api/workspaces/{wid}/entities/bulk
func (h *BulkHandler) CreateEntities(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	var req BulkEntityCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode, err := services.ParseBulkMode(req.Mode)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	entities, itemErrs, err := h.bulkService.CreateEntities(r.Context(), workspaceID, req.Entities, mode)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}
	h.respond(w, "created", http.StatusCreated, entities, len(entities), itemErrs)
}

// UpdateEntities handles PUT /api/workspaces/{wid}/entities/bulk
func (h *BulkHandler) UpdateEntities(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	var req BulkEntityUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode, err := services.ParseBulkMode(req.Mode)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	entities, itemErrs, err := h.bulkService.UpdateEntities(r.Context(), workspaceID, req.Entities, mode)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}
	h.respond(w, "updated", http.StatusOK, entities, len(entities), itemErrs)
}

// DeleteEntities handles DELETE /api/workspaces/{wid}/entities/bulk
func (h *BulkHandler) DeleteEntities(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	var req BulkDeleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode, err := services.ParseBulkMode(req.Mode)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	entities, itemErrs, err := h.bulkService.DeleteEntities(r.Context(), workspaceID, req.IDs, mode)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}
	h.respond(w, "deleted", http.StatusOK, entities, len(entities), itemErrs)
}

// CreateEdges handles POST /api/workspaces/{wid}/edges/bulk
func (h *BulkHandler) CreateEdges(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	var req BulkEdgeCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode, err := services.ParseBulkMode(req.Mode)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	edges, itemErrs, err := h.bulkService.CreateEdges(r.Context(), workspaceID, req.Edges, mode)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}
	h.respond(w, "created", http.StatusCreated, edges, len(edges), itemErrs)
}

// UpdateEdges handles PUT /api/workspaces/{wid}/edges/bulk
func (h *BulkHandler) UpdateEdges(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	var req BulkEdgeUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode, err := services.ParseBulkMode(req.Mode)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	edges, itemErrs, err := h.bulkService.UpdateEdges(r.Context(), workspaceID, req.Edges, mode)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}
	h.respond(w, "updated", http.StatusOK, edges, len(edges), itemErrs)
}

// DeleteEdges handles DELETE /api/workspaces/{wid}/edges/bulk
func (h *BulkHandler) DeleteEdges(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	var req BulkDeleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode, err := services.ParseBulkMode(req.Mode)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	edges, itemErrs, err := h.bulkService.DeleteEdges(r.Context(), workspaceID, req.IDs, mode)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}
	h.respond(w, "deleted", http.StatusOK, edges, len(edges), itemErrs)
}

// respond maps a batch outcome to a status code. A clean batch uses the
// operation's success status, a mixed partial batch is 207, and a batch with
// no successful item is 422.
func (h *BulkHandler) respond(w http.ResponseWriter, verb string, successStatus int, items any, succeeded int, itemErrs []services.ItemError) {
	meta := map[string]any{verb: succeeded, "failed": len(itemErrs)}

	if len(itemErrs) == 0 {
		if err := WriteDataMeta(w, successStatus, items, meta); err != nil {
			h.logger.Error("Failed to encode bulk response", zap.Error(err))
		}
		return
	}

	if succeeded == 0 {
		if err := writeJSON(w, http.StatusUnprocessableEntity, BulkErrorBody{
			Error:  "bulk_failed",
			Errors: itemErrs,
			Meta:   meta,
		}); err != nil {
			h.logger.Error("Failed to encode bulk response", zap.Error(err))
		}
		return
	}

	if err := writeJSON(w, http.StatusMultiStatus, BulkResponse{
		Data:   items,
		Errors: itemErrs,
		Meta:   meta,
	}); err != nil {
		h.logger.Error("Failed to encode bulk response", zap.Error(err))
	}
}
