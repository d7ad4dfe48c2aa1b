package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lattice-hq/lattice-engine/pkg/apperrors"
	"github.com/lattice-hq/lattice-engine/pkg/database"
	"github.com/lattice-hq/lattice-engine/pkg/models"
	"github.com/lattice-hq/lattice-engine/pkg/query"
)

// EdgeRepository provides data access for graph edges, including the adjacency
// reads that back neighbor listings and traversal expansion.
type EdgeRepository interface {
	Create(ctx context.Context, edge *models.Edge) error
	GetByID(ctx context.Context, workspaceID, edgeID uuid.UUID, includeDeleted bool) (*models.Edge, error)
	UpdateProperties(ctx context.Context, workspaceID, edgeID uuid.UUID, properties map[string]any) (*models.Edge, error)
	SoftDelete(ctx context.Context, workspaceID, edgeID uuid.UUID) (*models.Edge, error)

	// List returns a page of edges plus the total count for the filter.
	List(ctx context.Context, workspaceID uuid.UUID, filter query.ListFilter) ([]*models.Edge, int, error)

	// AdjacentEdges returns every active edge touching any of entityIDs in the
	// given direction, optionally restricted to one edge type.
	AdjacentEdges(ctx context.Context, workspaceID uuid.UUID, entityIDs []uuid.UUID, direction models.Direction, typeFilter string) ([]*models.Edge, error)

	// Neighbors returns a page of distinct entities adjacent to entityID plus
	// the total neighbor count.
	Neighbors(ctx context.Context, workspaceID, entityID uuid.UUID, direction models.Direction, typeFilter string, limit, offset int) ([]*models.Entity, int, error)
}

type edgeRepository struct{}

// NewEdgeRepository creates a new EdgeRepository.
func NewEdgeRepository() EdgeRepository {
	return &edgeRepository{}
}

var _ EdgeRepository = (*edgeRepository)(nil)

func (r *edgeRepository) Create(ctx context.Context, edge *models.Edge) error {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	stmt := query.InsertEdge(edge)
	if _, err := q.Exec(ctx, stmt.SQL, stmt.Args...); err != nil {
		return fmt.Errorf("failed to insert edge: %w", err)
	}

	return nil
}

func (r *edgeRepository) GetByID(ctx context.Context, workspaceID, edgeID uuid.UUID, includeDeleted bool) (*models.Edge, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	stmt := query.SelectEdgeByID(workspaceID, edgeID, includeDeleted)
	edge, err := scanEdge(q.QueryRow(ctx, stmt.SQL, stmt.Args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return edge, nil
}

func (r *edgeRepository) UpdateProperties(ctx context.Context, workspaceID, edgeID uuid.UUID, properties map[string]any) (*models.Edge, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	stmt := query.UpdateEdgeProperties(workspaceID, edgeID, properties, nowUTC())
	edge, err := scanEdge(q.QueryRow(ctx, stmt.SQL, stmt.Args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return edge, nil
}

func (r *edgeRepository) SoftDelete(ctx context.Context, workspaceID, edgeID uuid.UUID) (*models.Edge, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	stmt := query.SoftDeleteEdge(workspaceID, edgeID, nowUTC())
	edge, err := scanEdge(q.QueryRow(ctx, stmt.SQL, stmt.Args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return edge, nil
}

func (r *edgeRepository) List(ctx context.Context, workspaceID uuid.UUID, filter query.ListFilter) ([]*models.Edge, int, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no tenant scope in context")
	}

	countStmt := query.CountEdges(workspaceID, filter)
	var total int
	if err := q.QueryRow(ctx, countStmt.SQL, countStmt.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count edges: %w", err)
	}

	stmt := query.ListEdges(workspaceID, filter)
	rows, err := q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	edges, err := collectEdges(rows)
	if err != nil {
		return nil, 0, err
	}

	return edges, total, nil
}

func (r *edgeRepository) AdjacentEdges(ctx context.Context, workspaceID uuid.UUID, entityIDs []uuid.UUID, direction models.Direction, typeFilter string) ([]*models.Edge, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}

	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	stmt := query.SelectAdjacentEdges(workspaceID, entityIDs, direction, typeFilter)
	rows, err := q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select adjacent edges: %w", err)
	}
	defer rows.Close()

	return collectEdges(rows)
}

func (r *edgeRepository) Neighbors(ctx context.Context, workspaceID, entityID uuid.UUID, direction models.Direction, typeFilter string, limit, offset int) ([]*models.Entity, int, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no tenant scope in context")
	}

	countStmt := query.CountNeighbors(workspaceID, entityID, direction, typeFilter)
	var total int
	if err := q.QueryRow(ctx, countStmt.SQL, countStmt.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count neighbors: %w", err)
	}

	stmt := query.SelectNeighbors(workspaceID, entityID, direction, typeFilter, limit, offset)
	rows, err := q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select neighbors: %w", err)
	}
	defer rows.Close()

	neighbors, err := collectEntities(rows)
	if err != nil {
		return nil, 0, err
	}

	return neighbors, total, nil
}

func scanEdge(row pgx.Row) (*models.Edge, error) {
	var e models.Edge
	err := row.Scan(&e.ID, &e.WorkspaceID, &e.Type, &e.SourceID, &e.TargetID, &e.Properties, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan edge: %w", err)
	}
	return &e, nil
}

func collectEdges(rows pgx.Rows) ([]*models.Edge, error) {
	var edges []*models.Edge
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edge rows: %w", err)
	}
	return edges, nil
}
