package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lattice-hq/lattice-engine/pkg/apperrors"
	"github.com/lattice-hq/lattice-engine/pkg/auth"
	"github.com/lattice-hq/lattice-engine/pkg/models"
	"github.com/lattice-hq/lattice-engine/pkg/services"
)

// TenantMiddleware wraps a handler with per-request tenant scoping.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc

// SchemaHandler serves the workspace schema endpoints.
type SchemaHandler struct {
	schemaService services.SchemaService
	logger        *zap.Logger
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(schemaService services.SchemaService, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{
		schemaService: schemaService,
		logger:        logger,
	}
}

// RegisterRoutes registers the schema handler's routes on the given mux.
// Schema writes are restricted to workspace admins.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/workspaces/{wid}/schema"

	mux.HandleFunc("GET "+base,
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Get)))
	mux.HandleFunc("PUT "+base,
		authMiddleware.RequireAuthWithPathValidation("wid")(authMiddleware.RequireRole(auth.RoleAdmin)(tenantMiddleware(h.Apply))))
}

// Get handles GET /api/workspaces/{wid}/schema
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	def, err := h.schemaService.Get(r.Context(), workspaceID)
	if err != nil {
		// An unset schema is an absent resource on this endpoint, not a
		// validation failure.
		if errors.Is(err, apperrors.ErrSchemaNotConfigured) {
			_ = writeJSON(w, http.StatusNotFound, ErrorBody{Error: "schema_not_found"})
			return
		}
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteData(w, http.StatusOK, def); err != nil {
		h.logger.Error("Failed to encode schema response", zap.Error(err))
	}
}

// ApplySchemaRequest is the PUT schema request body. ExpectedVersion 0 asserts
// that no schema exists yet.
type ApplySchemaRequest struct {
	EntityTypes     []models.TypeDef `json:"entity_types"`
	EdgeTypes       []models.TypeDef `json:"edge_types"`
	ExpectedVersion int              `json:"expected_version"`
}

// Apply handles PUT /api/workspaces/{wid}/schema
func (h *SchemaHandler) Apply(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	var req ApplySchemaRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	def := &models.SchemaDefinition{
		EntityTypes: req.EntityTypes,
		EdgeTypes:   req.EdgeTypes,
	}

	applied, err := h.schemaService.Apply(r.Context(), workspaceID, def, req.ExpectedVersion)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteData(w, http.StatusOK, applied); err != nil {
		h.logger.Error("Failed to encode schema response", zap.Error(err))
	}
}
