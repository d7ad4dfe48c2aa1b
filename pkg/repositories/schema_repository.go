package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lattice-hq/lattice-engine/pkg/apperrors"
	"github.com/lattice-hq/lattice-engine/pkg/database"
	"github.com/lattice-hq/lattice-engine/pkg/models"
	"github.com/lattice-hq/lattice-engine/pkg/query"
)

// SchemaRepository provides data access for the versioned workspace schema
// document. All concurrency control is pushed into the statements themselves:
// creation races resolve through the unique workspace constraint and updates
// through a compare-and-swap on version.
type SchemaRepository interface {
	// Get returns the workspace schema, or nil when none is configured.
	Get(ctx context.Context, workspaceID uuid.UUID) (*models.SchemaDefinition, error)

	// Create writes the first schema version for a workspace. Returns
	// apperrors.ErrVersionConflict if a schema already exists.
	Create(ctx context.Context, def *models.SchemaDefinition) (*models.SchemaDefinition, error)

	// UpdateCAS replaces the schema only if the stored version still equals
	// expectedVersion, incrementing the version by exactly 1. Returns
	// apperrors.ErrVersionConflict on any mismatch (including no schema).
	UpdateCAS(ctx context.Context, def *models.SchemaDefinition, expectedVersion int) (*models.SchemaDefinition, error)
}

// schemaDocument is the JSONB payload persisted in graph_schemas.definition.
type schemaDocument struct {
	EntityTypes []models.TypeDef `json:"entity_types"`
	EdgeTypes   []models.TypeDef `json:"edge_types"`
}

type schemaRepository struct{}

// NewSchemaRepository creates a new SchemaRepository.
func NewSchemaRepository() SchemaRepository {
	return &schemaRepository{}
}

var _ SchemaRepository = (*schemaRepository)(nil)

func (r *schemaRepository) Get(ctx context.Context, workspaceID uuid.UUID) (*models.SchemaDefinition, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	stmt := query.SelectSchema(workspaceID)
	def, err := scanSchema(q.QueryRow(ctx, stmt.SQL, stmt.Args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return def, nil
}

func (r *schemaRepository) Create(ctx context.Context, def *models.SchemaDefinition) (*models.SchemaDefinition, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	payload, err := json.Marshal(schemaDocument{EntityTypes: def.EntityTypes, EdgeTypes: def.EdgeTypes})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema definition: %w", err)
	}

	id := def.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	stmt := query.InsertSchema(def.WorkspaceID, id, payload, nowUTC())
	created, err := scanSchema(q.QueryRow(ctx, stmt.SQL, stmt.Args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict target suppressed the insert: a schema already exists.
			return nil, apperrors.ErrVersionConflict
		}
		return nil, err
	}

	return created, nil
}

func (r *schemaRepository) UpdateCAS(ctx context.Context, def *models.SchemaDefinition, expectedVersion int) (*models.SchemaDefinition, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	payload, err := json.Marshal(schemaDocument{EntityTypes: def.EntityTypes, EdgeTypes: def.EdgeTypes})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema definition: %w", err)
	}

	stmt := query.UpdateSchemaCAS(def.WorkspaceID, payload, expectedVersion, nowUTC())
	updated, err := scanSchema(q.QueryRow(ctx, stmt.SQL, stmt.Args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrVersionConflict
		}
		return nil, err
	}

	return updated, nil
}

func scanSchema(row pgx.Row) (*models.SchemaDefinition, error) {
	var def models.SchemaDefinition
	var payload []byte

	err := row.Scan(&def.ID, &def.WorkspaceID, &payload, &def.Version, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan schema: %w", err)
	}

	var doc schemaDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema definition: %w", err)
	}
	def.EntityTypes = doc.EntityTypes
	def.EdgeTypes = doc.EdgeTypes

	return &def, nil
}
