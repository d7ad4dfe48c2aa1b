package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lattice-hq/lattice-engine/pkg/apperrors"
	"github.com/lattice-hq/lattice-engine/pkg/database"
	"github.com/lattice-hq/lattice-engine/pkg/models"
	"github.com/lattice-hq/lattice-engine/pkg/query"
)

// EntityRepository provides data access for graph entities. Every statement
// carries the workspace scope as its first predicate, so a foreign id behaves
// exactly like a missing one.
type EntityRepository interface {
	Create(ctx context.Context, entity *models.Entity) error
	GetByID(ctx context.Context, workspaceID, entityID uuid.UUID, includeDeleted bool) (*models.Entity, error)
	UpdateProperties(ctx context.Context, workspaceID, entityID uuid.UUID, properties map[string]any) (*models.Entity, error)

	// SoftDelete marks the entity and every active incident edge as deleted.
	// Returns the deleted entity and the number of cascaded edges. The caller
	// is expected to run this inside a transaction.
	SoftDelete(ctx context.Context, workspaceID, entityID uuid.UUID) (*models.Entity, int, error)

	// List returns a page of entities plus the total count for the filter.
	List(ctx context.Context, workspaceID uuid.UUID, filter query.ListFilter) ([]*models.Entity, int, error)

	// GetByIDs returns the active entities among ids, in no particular order.
	// Missing ids are silently absent from the result.
	GetByIDs(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID) ([]*models.Entity, error)
}

type entityRepository struct{}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository() EntityRepository {
	return &entityRepository{}
}

var _ EntityRepository = (*entityRepository)(nil)

func (r *entityRepository) Create(ctx context.Context, entity *models.Entity) error {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	stmt := query.InsertEntity(entity)
	if _, err := q.Exec(ctx, stmt.SQL, stmt.Args...); err != nil {
		return fmt.Errorf("failed to insert entity: %w", err)
	}

	return nil
}

func (r *entityRepository) GetByID(ctx context.Context, workspaceID, entityID uuid.UUID, includeDeleted bool) (*models.Entity, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	stmt := query.SelectEntityByID(workspaceID, entityID, includeDeleted)
	entity, err := scanEntity(q.QueryRow(ctx, stmt.SQL, stmt.Args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return entity, nil
}

func (r *entityRepository) UpdateProperties(ctx context.Context, workspaceID, entityID uuid.UUID, properties map[string]any) (*models.Entity, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	stmt := query.UpdateEntityProperties(workspaceID, entityID, properties, nowUTC())
	entity, err := scanEntity(q.QueryRow(ctx, stmt.SQL, stmt.Args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return entity, nil
}

func (r *entityRepository) SoftDelete(ctx context.Context, workspaceID, entityID uuid.UUID) (*models.Entity, int, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no tenant scope in context")
	}

	now := nowUTC()

	stmt := query.SoftDeleteEntity(workspaceID, entityID, now)
	entity, err := scanEntity(q.QueryRow(ctx, stmt.SQL, stmt.Args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, apperrors.ErrNotFound
		}
		return nil, 0, err
	}

	cascade := query.SoftDeleteIncidentEdges(workspaceID, entityID, now)
	tag, err := q.Exec(ctx, cascade.SQL, cascade.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to cascade delete edges: %w", err)
	}

	return entity, int(tag.RowsAffected()), nil
}

func (r *entityRepository) List(ctx context.Context, workspaceID uuid.UUID, filter query.ListFilter) ([]*models.Entity, int, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no tenant scope in context")
	}

	countStmt := query.CountEntities(workspaceID, filter)
	var total int
	if err := q.QueryRow(ctx, countStmt.SQL, countStmt.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count entities: %w", err)
	}

	stmt := query.ListEntities(workspaceID, filter)
	rows, err := q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	entities, err := collectEntities(rows)
	if err != nil {
		return nil, 0, err
	}

	return entities, total, nil
}

func (r *entityRepository) GetByIDs(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID) ([]*models.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	stmt := query.SelectEntitiesByIDs(workspaceID, ids)
	rows, err := q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select entities: %w", err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

func scanEntity(row pgx.Row) (*models.Entity, error) {
	var e models.Entity
	err := row.Scan(&e.ID, &e.WorkspaceID, &e.Type, &e.Properties, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}
	return &e, nil
}

func collectEntities(rows pgx.Rows) ([]*models.Entity, error) {
	var entities []*models.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entity rows: %w", err)
	}
	return entities, nil
}

func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
