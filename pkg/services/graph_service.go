package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lattice-hq/lattice-engine/pkg/apperrors"
	"github.com/lattice-hq/lattice-engine/pkg/config"
	"github.com/lattice-hq/lattice-engine/pkg/database"
	"github.com/lattice-hq/lattice-engine/pkg/models"
	"github.com/lattice-hq/lattice-engine/pkg/query"
	"github.com/lattice-hq/lattice-engine/pkg/repositories"
	"github.com/lattice-hq/lattice-engine/pkg/schema"
)

// PageOptions carries optional pagination parameters. A nil field means the
// caller did not supply the parameter and the configured default applies.
type PageOptions struct {
	Limit  *int
	Offset *int
}

// ListOptions narrows entity/edge listings.
type ListOptions struct {
	Type           string
	IncludeDeleted bool
	Page           PageOptions
}

// GraphService provides validated CRUD for entities and edges. Every write
// re-validates the full property map against the current workspace schema.
type GraphService interface {
	CreateEntity(ctx context.Context, workspaceID uuid.UUID, entityType string, properties map[string]any) (*models.Entity, error)
	GetEntity(ctx context.Context, workspaceID, entityID uuid.UUID, includeDeleted bool) (*models.Entity, error)

	// UpdateEntity merges patch into the stored properties (patch keys
	// overwrite, others are retained) and re-validates the merged map.
	UpdateEntity(ctx context.Context, workspaceID, entityID uuid.UUID, patch map[string]any) (*models.Entity, error)

	// DeleteEntity soft-deletes the entity and, in the same transaction, every
	// active edge incident on it. Returns the cascaded edge count.
	DeleteEntity(ctx context.Context, workspaceID, entityID uuid.UUID) (*models.Entity, int, error)

	ListEntities(ctx context.Context, workspaceID uuid.UUID, opts ListOptions) ([]*models.Entity, int, error)

	CreateEdge(ctx context.Context, workspaceID uuid.UUID, edgeType string, sourceID, targetID uuid.UUID, properties map[string]any) (*models.Edge, error)
	GetEdge(ctx context.Context, workspaceID, edgeID uuid.UUID, includeDeleted bool) (*models.Edge, error)
	UpdateEdge(ctx context.Context, workspaceID, edgeID uuid.UUID, patch map[string]any) (*models.Edge, error)
	DeleteEdge(ctx context.Context, workspaceID, edgeID uuid.UUID) (*models.Edge, error)
	ListEdges(ctx context.Context, workspaceID uuid.UUID, opts ListOptions) ([]*models.Edge, int, error)
}

type graphService struct {
	schemaRepo repositories.SchemaRepository
	entityRepo repositories.EntityRepository
	edgeRepo   repositories.EdgeRepository
	cfg        config.GraphConfig
	inTx       func(ctx context.Context, fn func(ctx context.Context) error) error
	logger     *zap.Logger
}

// NewGraphService creates a new GraphService.
func NewGraphService(
	schemaRepo repositories.SchemaRepository,
	entityRepo repositories.EntityRepository,
	edgeRepo repositories.EdgeRepository,
	cfg config.GraphConfig,
	logger *zap.Logger,
) GraphService {
	return &graphService{
		schemaRepo: schemaRepo,
		entityRepo: entityRepo,
		edgeRepo:   edgeRepo,
		cfg:        cfg,
		inTx:       database.WithTx,
		logger:     logger.Named("graph-service"),
	}
}

var _ GraphService = (*graphService)(nil)

// ============================================================================
// Entities
// ============================================================================

func (s *graphService) CreateEntity(ctx context.Context, workspaceID uuid.UUID, entityType string, properties map[string]any) (*models.Entity, error) {
	normalized, err := s.validateProperties(ctx, workspaceID, schema.KindEntity, entityType, properties)
	if err != nil {
		return nil, err
	}

	now := nowUTC()
	entity := &models.Entity{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Type:        entityType,
		Properties:  normalized,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.entityRepo.Create(ctx, entity); err != nil {
		s.logger.Error("Failed to create entity",
			zap.String("workspace_id", workspaceID.String()),
			zap.String("entity_type", entityType),
			zap.Error(err))
		return nil, fmt.Errorf("create entity: %w", err)
	}

	return entity, nil
}

func (s *graphService) GetEntity(ctx context.Context, workspaceID, entityID uuid.UUID, includeDeleted bool) (*models.Entity, error) {
	return s.entityRepo.GetByID(ctx, workspaceID, entityID, includeDeleted)
}

func (s *graphService) UpdateEntity(ctx context.Context, workspaceID, entityID uuid.UUID, patch map[string]any) (*models.Entity, error) {
	current, err := s.entityRepo.GetByID(ctx, workspaceID, entityID, false)
	if err != nil {
		return nil, err
	}

	merged := mergeProperties(current.Properties, patch)
	normalized, err := s.validateProperties(ctx, workspaceID, schema.KindEntity, current.Type, merged)
	if err != nil {
		return nil, err
	}

	updated, err := s.entityRepo.UpdateProperties(ctx, workspaceID, entityID, normalized)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to update entity",
			zap.String("workspace_id", workspaceID.String()),
			zap.String("entity_id", entityID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("update entity: %w", err)
	}

	return updated, nil
}

func (s *graphService) DeleteEntity(ctx context.Context, workspaceID, entityID uuid.UUID) (*models.Entity, int, error) {
	var entity *models.Entity
	var edgesDeleted int

	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		entity, edgesDeleted, err = s.entityRepo.SoftDelete(ctx, workspaceID, entityID)
		return err
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, 0, err
		}
		s.logger.Error("Failed to delete entity",
			zap.String("workspace_id", workspaceID.String()),
			zap.String("entity_id", entityID.String()),
			zap.Error(err))
		return nil, 0, fmt.Errorf("delete entity: %w", err)
	}

	s.logger.Debug("Entity soft-deleted",
		zap.String("entity_id", entityID.String()),
		zap.Int("edges_deleted", edgesDeleted))

	return entity, edgesDeleted, nil
}

func (s *graphService) ListEntities(ctx context.Context, workspaceID uuid.UUID, opts ListOptions) ([]*models.Entity, int, error) {
	limit, offset, err := resolvePage(s.cfg, opts.Page)
	if err != nil {
		return nil, 0, err
	}

	return s.entityRepo.List(ctx, workspaceID, query.ListFilter{
		Type:           opts.Type,
		IncludeDeleted: opts.IncludeDeleted,
		Limit:          limit,
		Offset:         offset,
	})
}

// ============================================================================
// Edges
// ============================================================================

func (s *graphService) CreateEdge(ctx context.Context, workspaceID uuid.UUID, edgeType string, sourceID, targetID uuid.UUID, properties map[string]any) (*models.Edge, error) {
	normalized, err := s.validateProperties(ctx, workspaceID, schema.KindEdge, edgeType, properties)
	if err != nil {
		return nil, err
	}

	if err := s.checkEndpoints(ctx, workspaceID, sourceID, targetID); err != nil {
		return nil, err
	}

	now := nowUTC()
	edge := &models.Edge{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Type:        edgeType,
		SourceID:    sourceID,
		TargetID:    targetID,
		Properties:  normalized,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.edgeRepo.Create(ctx, edge); err != nil {
		s.logger.Error("Failed to create edge",
			zap.String("workspace_id", workspaceID.String()),
			zap.String("edge_type", edgeType),
			zap.Error(err))
		return nil, fmt.Errorf("create edge: %w", err)
	}

	return edge, nil
}

func (s *graphService) GetEdge(ctx context.Context, workspaceID, edgeID uuid.UUID, includeDeleted bool) (*models.Edge, error) {
	return s.edgeRepo.GetByID(ctx, workspaceID, edgeID, includeDeleted)
}

func (s *graphService) UpdateEdge(ctx context.Context, workspaceID, edgeID uuid.UUID, patch map[string]any) (*models.Edge, error) {
	current, err := s.edgeRepo.GetByID(ctx, workspaceID, edgeID, false)
	if err != nil {
		return nil, err
	}

	merged := mergeProperties(current.Properties, patch)
	normalized, err := s.validateProperties(ctx, workspaceID, schema.KindEdge, current.Type, merged)
	if err != nil {
		return nil, err
	}

	updated, err := s.edgeRepo.UpdateProperties(ctx, workspaceID, edgeID, normalized)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to update edge",
			zap.String("workspace_id", workspaceID.String()),
			zap.String("edge_id", edgeID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("update edge: %w", err)
	}

	return updated, nil
}

func (s *graphService) DeleteEdge(ctx context.Context, workspaceID, edgeID uuid.UUID) (*models.Edge, error) {
	edge, err := s.edgeRepo.SoftDelete(ctx, workspaceID, edgeID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to delete edge",
			zap.String("workspace_id", workspaceID.String()),
			zap.String("edge_id", edgeID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("delete edge: %w", err)
	}
	return edge, nil
}

func (s *graphService) ListEdges(ctx context.Context, workspaceID uuid.UUID, opts ListOptions) ([]*models.Edge, int, error) {
	limit, offset, err := resolvePage(s.cfg, opts.Page)
	if err != nil {
		return nil, 0, err
	}

	return s.edgeRepo.List(ctx, workspaceID, query.ListFilter{
		Type:           opts.Type,
		IncludeDeleted: opts.IncludeDeleted,
		Limit:          limit,
		Offset:         offset,
	})
}

// ============================================================================
// Shared validation
// ============================================================================

// validateProperties loads the current schema and validates props against the
// named type, screening string values for injection payloads afterwards.
func (s *graphService) validateProperties(ctx context.Context, workspaceID uuid.UUID, kind schema.TypeKind, typeName string, props map[string]any) (map[string]any, error) {
	def, err := s.schemaRepo.Get(ctx, workspaceID)
	if err != nil {
		s.logger.Error("Failed to load schema for validation",
			zap.String("workspace_id", workspaceID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if def == nil {
		return nil, apperrors.ErrSchemaNotConfigured
	}

	normalized, fieldErrs, err := schema.ValidateInstance(def, kind, typeName, props)
	if err != nil {
		return nil, err
	}
	if len(fieldErrs) > 0 {
		return nil, apperrors.NewValidationError(fieldErrs...)
	}

	if injErrs := query.ScreenProperties(normalized); len(injErrs) > 0 {
		return nil, apperrors.NewValidationError(injErrs...)
	}

	return normalized, nil
}

// checkEndpoints verifies both edge endpoints resolve to active entities in
// the workspace, reporting each missing endpoint as a field error.
func (s *graphService) checkEndpoints(ctx context.Context, workspaceID, sourceID, targetID uuid.UUID) error {
	ids := []uuid.UUID{sourceID}
	if targetID != sourceID {
		ids = append(ids, targetID)
	}

	found, err := s.entityRepo.GetByIDs(ctx, workspaceID, ids)
	if err != nil {
		return fmt.Errorf("resolve edge endpoints: %w", err)
	}

	active := make(map[uuid.UUID]bool, len(found))
	for _, e := range found {
		active[e.ID] = true
	}

	var fieldErrs []apperrors.FieldError
	if !active[sourceID] {
		fieldErrs = append(fieldErrs, apperrors.FieldError{
			Field:      "source_id",
			Message:    "source entity not found",
			Constraint: "exists",
		})
	}
	if !active[targetID] {
		fieldErrs = append(fieldErrs, apperrors.FieldError{
			Field:      "target_id",
			Message:    "target entity not found",
			Constraint: "exists",
		})
	}
	if len(fieldErrs) > 0 {
		return apperrors.NewValidationError(fieldErrs...)
	}

	return nil
}

// resolvePage applies defaults and bounds to pagination parameters.
func resolvePage(cfg config.GraphConfig, page PageOptions) (limit, offset int, err error) {
	limit = cfg.DefaultPageSize
	if page.Limit != nil {
		limit = *page.Limit
		if limit < 1 || limit > cfg.MaxPageSize {
			return 0, 0, apperrors.NewValidationError(apperrors.FieldError{
				Field:      "limit",
				Message:    fmt.Sprintf("limit %d must be between 1 and %d", limit, cfg.MaxPageSize),
				Constraint: "range",
			})
		}
	}

	if page.Offset != nil {
		offset = *page.Offset
		if offset < 0 {
			return 0, 0, apperrors.NewValidationError(apperrors.FieldError{
				Field:      "offset",
				Message:    "offset must be non-negative",
				Constraint: "range",
			})
		}
	}

	return limit, offset, nil
}

func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// mergeProperties overlays patch onto base without mutating either.
func mergeProperties(base, patch map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}
