package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lattice-hq/lattice-engine/pkg/apperrors"
	"github.com/lattice-hq/lattice-engine/pkg/models"
	"github.com/lattice-hq/lattice-engine/pkg/repositories"
	"github.com/lattice-hq/lattice-engine/pkg/schema"
)

// SchemaService manages the workspace schema document with optimistic
// concurrency. The caller supplies the version it last saw; a mismatch at
// write time rejects the update without mutating anything.
type SchemaService interface {
	// Get returns the workspace schema. Returns apperrors.ErrSchemaNotConfigured
	// when none has been defined.
	Get(ctx context.Context, workspaceID uuid.UUID) (*models.SchemaDefinition, error)

	// Apply validates and writes a proposed schema. expectedVersion 0 means
	// first creation (no prior schema); any other value is compared against the
	// stored version. Returns apperrors.ErrVersionConflict on mismatch and a
	// *apperrors.ValidationError when the document shape is invalid. On success
	// the stored version is exactly expectedVersion+1.
	Apply(ctx context.Context, workspaceID uuid.UUID, def *models.SchemaDefinition, expectedVersion int) (*models.SchemaDefinition, error)
}

type schemaService struct {
	schemaRepo repositories.SchemaRepository
	logger     *zap.Logger
}

// NewSchemaService creates a new SchemaService.
func NewSchemaService(schemaRepo repositories.SchemaRepository, logger *zap.Logger) SchemaService {
	return &schemaService{
		schemaRepo: schemaRepo,
		logger:     logger.Named("schema-service"),
	}
}

var _ SchemaService = (*schemaService)(nil)

func (s *schemaService) Get(ctx context.Context, workspaceID uuid.UUID) (*models.SchemaDefinition, error) {
	def, err := s.schemaRepo.Get(ctx, workspaceID)
	if err != nil {
		s.logger.Error("Failed to get schema",
			zap.String("workspace_id", workspaceID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("get schema: %w", err)
	}
	if def == nil {
		return nil, apperrors.ErrSchemaNotConfigured
	}
	return def, nil
}

func (s *schemaService) Apply(ctx context.Context, workspaceID uuid.UUID, def *models.SchemaDefinition, expectedVersion int) (*models.SchemaDefinition, error) {
	if expectedVersion < 0 {
		return nil, apperrors.NewValidationError(apperrors.FieldError{
			Field:   "version",
			Message: "version must be non-negative",
		})
	}

	if fieldErrs := schema.ValidateShape(def); len(fieldErrs) > 0 {
		return nil, apperrors.NewValidationError(fieldErrs...)
	}

	def.WorkspaceID = workspaceID

	var applied *models.SchemaDefinition
	var err error
	if expectedVersion == 0 {
		applied, err = s.schemaRepo.Create(ctx, def)
	} else {
		applied, err = s.schemaRepo.UpdateCAS(ctx, def, expectedVersion)
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrVersionConflict) {
			return nil, err
		}
		s.logger.Error("Failed to apply schema",
			zap.String("workspace_id", workspaceID.String()),
			zap.Int("expected_version", expectedVersion),
			zap.Error(err))
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s.logger.Info("Schema applied",
		zap.String("workspace_id", workspaceID.String()),
		zap.Int("version", applied.Version))

	return applied, nil
}
