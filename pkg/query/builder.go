// Package query translates typed graph operations into parameterized SQL
// statements. No user-controlled value is ever concatenated into statement
// text: workspace ids, type names, property maps, and entity ids are always
// bound parameters, and every entity/edge statement carries the workspace
// predicate as its first clause.
package query

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lattice-hq/lattice-engine/pkg/models"
)

// Statement is a parameterized SQL statement with its bound arguments.
type Statement struct {
	SQL  string
	Args []any
}

const (
	entityColumns = "id, workspace_id, entity_type, properties, created_at, updated_at, deleted_at"
	edgeColumns   = "id, workspace_id, edge_type, source_id, target_id, properties, created_at, updated_at, deleted_at"
)

// ListFilter narrows and pages list statements. Type is bound as a parameter
// when set; it is never interpolated.
type ListFilter struct {
	Type           string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// ============================================================================
// Entity statements
// ============================================================================

// InsertEntity builds the insert for a new entity.
func InsertEntity(e *models.Entity) Statement {
	return Statement{
		SQL: `
			INSERT INTO graph_entities (workspace_id, id, entity_type, properties, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
		Args: []any{e.WorkspaceID, e.ID, e.Type, e.Properties, e.CreatedAt, e.UpdatedAt},
	}
}

// SelectEntityByID builds the scoped point lookup for an entity.
func SelectEntityByID(workspaceID, entityID uuid.UUID, includeDeleted bool) Statement {
	sql := `
		SELECT ` + entityColumns + `
		FROM graph_entities
		WHERE workspace_id = $1 AND id = $2`
	if !includeDeleted {
		sql += ` AND deleted_at IS NULL`
	}
	return Statement{SQL: sql, Args: []any{workspaceID, entityID}}
}

// UpdateEntityProperties builds the property replacement for an active entity.
// The caller supplies the already-merged, already-validated property map.
func UpdateEntityProperties(workspaceID, entityID uuid.UUID, properties map[string]any, now time.Time) Statement {
	return Statement{
		SQL: `
			UPDATE graph_entities
			SET properties = $3, updated_at = $4
			WHERE workspace_id = $1 AND id = $2 AND deleted_at IS NULL
			RETURNING ` + entityColumns,
		Args: []any{workspaceID, entityID, properties, now},
	}
}

// SoftDeleteEntity builds the soft delete for an active entity.
func SoftDeleteEntity(workspaceID, entityID uuid.UUID, now time.Time) Statement {
	return Statement{
		SQL: `
			UPDATE graph_entities
			SET deleted_at = $3, updated_at = $3
			WHERE workspace_id = $1 AND id = $2 AND deleted_at IS NULL
			RETURNING ` + entityColumns,
		Args: []any{workspaceID, entityID, now},
	}
}

// SoftDeleteIncidentEdges builds the cascade that soft-deletes every active
// edge touching the given entity in either direction.
func SoftDeleteIncidentEdges(workspaceID, entityID uuid.UUID, now time.Time) Statement {
	return Statement{
		SQL: `
			UPDATE graph_edges
			SET deleted_at = $3, updated_at = $3
			WHERE workspace_id = $1 AND (source_id = $2 OR target_id = $2) AND deleted_at IS NULL`,
		Args: []any{workspaceID, entityID, now},
	}
}

// ListEntities builds the paged, filtered entity listing.
func ListEntities(workspaceID uuid.UUID, f ListFilter) Statement {
	sql := `
		SELECT ` + entityColumns + `
		FROM graph_entities
		WHERE workspace_id = $1`
	args := []any{workspaceID}

	if !f.IncludeDeleted {
		sql += ` AND deleted_at IS NULL`
	}
	if f.Type != "" {
		args = append(args, f.Type)
		sql += fmt.Sprintf(` AND entity_type = $%d`, len(args))
	}

	args = append(args, f.Limit)
	sql += fmt.Sprintf(` ORDER BY created_at, id LIMIT $%d`, len(args))
	args = append(args, f.Offset)
	sql += fmt.Sprintf(` OFFSET $%d`, len(args))

	return Statement{SQL: sql, Args: args}
}

// CountEntities builds the total count matching the same filter as ListEntities.
func CountEntities(workspaceID uuid.UUID, f ListFilter) Statement {
	sql := `
		SELECT count(*)
		FROM graph_entities
		WHERE workspace_id = $1`
	args := []any{workspaceID}

	if !f.IncludeDeleted {
		sql += ` AND deleted_at IS NULL`
	}
	if f.Type != "" {
		args = append(args, f.Type)
		sql += fmt.Sprintf(` AND entity_type = $%d`, len(args))
	}

	return Statement{SQL: sql, Args: args}
}

// ============================================================================
// Edge statements
// ============================================================================

// InsertEdge builds the insert for a new edge.
func InsertEdge(e *models.Edge) Statement {
	return Statement{
		SQL: `
			INSERT INTO graph_edges (workspace_id, id, edge_type, source_id, target_id, properties, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		Args: []any{e.WorkspaceID, e.ID, e.Type, e.SourceID, e.TargetID, e.Properties, e.CreatedAt, e.UpdatedAt},
	}
}

// SelectEdgeByID builds the scoped point lookup for an edge.
func SelectEdgeByID(workspaceID, edgeID uuid.UUID, includeDeleted bool) Statement {
	sql := `
		SELECT ` + edgeColumns + `
		FROM graph_edges
		WHERE workspace_id = $1 AND id = $2`
	if !includeDeleted {
		sql += ` AND deleted_at IS NULL`
	}
	return Statement{SQL: sql, Args: []any{workspaceID, edgeID}}
}

// UpdateEdgeProperties builds the property replacement for an active edge.
func UpdateEdgeProperties(workspaceID, edgeID uuid.UUID, properties map[string]any, now time.Time) Statement {
	return Statement{
		SQL: `
			UPDATE graph_edges
			SET properties = $3, updated_at = $4
			WHERE workspace_id = $1 AND id = $2 AND deleted_at IS NULL
			RETURNING ` + edgeColumns,
		Args: []any{workspaceID, edgeID, properties, now},
	}
}

// SoftDeleteEdge builds the soft delete for an active edge.
func SoftDeleteEdge(workspaceID, edgeID uuid.UUID, now time.Time) Statement {
	return Statement{
		SQL: `
			UPDATE graph_edges
			SET deleted_at = $3, updated_at = $3
			WHERE workspace_id = $1 AND id = $2 AND deleted_at IS NULL
			RETURNING ` + edgeColumns,
		Args: []any{workspaceID, edgeID, now},
	}
}

// ListEdges builds the paged, filtered edge listing.
func ListEdges(workspaceID uuid.UUID, f ListFilter) Statement {
	sql := `
		SELECT ` + edgeColumns + `
		FROM graph_edges
		WHERE workspace_id = $1`
	args := []any{workspaceID}

	if !f.IncludeDeleted {
		sql += ` AND deleted_at IS NULL`
	}
	if f.Type != "" {
		args = append(args, f.Type)
		sql += fmt.Sprintf(` AND edge_type = $%d`, len(args))
	}

	args = append(args, f.Limit)
	sql += fmt.Sprintf(` ORDER BY created_at, id LIMIT $%d`, len(args))
	args = append(args, f.Offset)
	sql += fmt.Sprintf(` OFFSET $%d`, len(args))

	return Statement{SQL: sql, Args: args}
}

// CountEdges builds the total count matching the same filter as ListEdges.
func CountEdges(workspaceID uuid.UUID, f ListFilter) Statement {
	sql := `
		SELECT count(*)
		FROM graph_edges
		WHERE workspace_id = $1`
	args := []any{workspaceID}

	if !f.IncludeDeleted {
		sql += ` AND deleted_at IS NULL`
	}
	if f.Type != "" {
		args = append(args, f.Type)
		sql += fmt.Sprintf(` AND edge_type = $%d`, len(args))
	}

	return Statement{SQL: sql, Args: args}
}

// ============================================================================
// Traversal statements
// ============================================================================

// neighborJoin returns the fixed join predicate for a direction. Directions
// select among constant SQL fragments; the value itself never reaches the
// statement text.
func neighborJoin(direction models.Direction) string {
	switch direction {
	case models.DirectionOut:
		return `g.source_id = $2 AND g.target_id = e.id`
	case models.DirectionIn:
		return `g.target_id = $2 AND g.source_id = e.id`
	default:
		return `(g.source_id = $2 AND g.target_id = e.id) OR (g.target_id = $2 AND g.source_id = e.id)`
	}
}

// SelectNeighbors builds the single-hop neighbor expansion, deduplicated by
// neighbor id for the both direction.
func SelectNeighbors(workspaceID, entityID uuid.UUID, direction models.Direction, typeFilter string, limit, offset int) Statement {
	sql := `
		SELECT DISTINCT e.id, e.workspace_id, e.entity_type, e.properties, e.created_at, e.updated_at, e.deleted_at
		FROM graph_entities e
		JOIN graph_edges g ON ` + neighborJoin(direction) + `
		WHERE e.workspace_id = $1 AND g.workspace_id = $1
		  AND e.deleted_at IS NULL AND g.deleted_at IS NULL`
	args := []any{workspaceID, entityID}

	if typeFilter != "" {
		args = append(args, typeFilter)
		sql += fmt.Sprintf(` AND g.edge_type = $%d`, len(args))
	}

	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY e.created_at, e.id LIMIT $%d`, len(args))
	args = append(args, offset)
	sql += fmt.Sprintf(` OFFSET $%d`, len(args))

	return Statement{SQL: sql, Args: args}
}

// CountNeighbors builds the total distinct-neighbor count matching SelectNeighbors.
func CountNeighbors(workspaceID, entityID uuid.UUID, direction models.Direction, typeFilter string) Statement {
	sql := `
		SELECT count(DISTINCT e.id)
		FROM graph_entities e
		JOIN graph_edges g ON ` + neighborJoin(direction) + `
		WHERE e.workspace_id = $1 AND g.workspace_id = $1
		  AND e.deleted_at IS NULL AND g.deleted_at IS NULL`
	args := []any{workspaceID, entityID}

	if typeFilter != "" {
		args = append(args, typeFilter)
		sql += fmt.Sprintf(` AND g.edge_type = $%d`, len(args))
	}

	return Statement{SQL: sql, Args: args}
}

// SelectAdjacentEdges builds the frontier expansion used by path search and
// N-degree traversal: every active edge incident (per direction) on any of
// the given entity ids.
func SelectAdjacentEdges(workspaceID uuid.UUID, entityIDs []uuid.UUID, direction models.Direction, typeFilter string) Statement {
	var incident string
	switch direction {
	case models.DirectionOut:
		incident = `source_id = ANY($2::uuid[])`
	case models.DirectionIn:
		incident = `target_id = ANY($2::uuid[])`
	default:
		incident = `(source_id = ANY($2::uuid[]) OR target_id = ANY($2::uuid[]))`
	}

	sql := `
		SELECT ` + edgeColumns + `
		FROM graph_edges
		WHERE workspace_id = $1 AND ` + incident + ` AND deleted_at IS NULL`
	args := []any{workspaceID, uuidStrings(entityIDs)}

	if typeFilter != "" {
		args = append(args, typeFilter)
		sql += fmt.Sprintf(` AND edge_type = $%d`, len(args))
	}
	sql += ` ORDER BY created_at, id`

	return Statement{SQL: sql, Args: args}
}

// SelectEntitiesByIDs builds the batch hydration of active entities by id.
func SelectEntitiesByIDs(workspaceID uuid.UUID, entityIDs []uuid.UUID) Statement {
	return Statement{
		SQL: `
			SELECT ` + entityColumns + `
			FROM graph_entities
			WHERE workspace_id = $1 AND id = ANY($2::uuid[]) AND deleted_at IS NULL
			ORDER BY created_at, id`,
		Args: []any{workspaceID, uuidStrings(entityIDs)},
	}
}

// uuidStrings renders ids for a uuid[] bind parameter.
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// ============================================================================
// Schema statements
// ============================================================================

// SelectSchema builds the workspace schema lookup.
func SelectSchema(workspaceID uuid.UUID) Statement {
	return Statement{
		SQL: `
			SELECT id, workspace_id, definition, version, created_at, updated_at
			FROM graph_schemas
			WHERE workspace_id = $1`,
		Args: []any{workspaceID},
	}
}

// InsertSchema builds the first-version schema insert. The conflict target on
// workspace_id makes concurrent first creations resolve to exactly one winner.
func InsertSchema(workspaceID, id uuid.UUID, definition []byte, now time.Time) Statement {
	return Statement{
		SQL: `
			INSERT INTO graph_schemas (workspace_id, id, definition, version, created_at, updated_at)
			VALUES ($1, $2, $3, 1, $4, $4)
			ON CONFLICT (workspace_id) DO NOTHING
			RETURNING id, workspace_id, definition, version, created_at, updated_at`,
		Args: []any{workspaceID, id, definition, now},
	}
}

// UpdateSchemaCAS builds the compare-and-swap schema update: the row is only
// written when the stored version still equals expectedVersion, and the
// version increments by exactly 1 in the same statement.
func UpdateSchemaCAS(workspaceID uuid.UUID, definition []byte, expectedVersion int, now time.Time) Statement {
	return Statement{
		SQL: `
			UPDATE graph_schemas
			SET definition = $3, version = version + 1, updated_at = $4
			WHERE workspace_id = $1 AND version = $2
			RETURNING id, workspace_id, definition, version, created_at, updated_at`,
		Args: []any{workspaceID, expectedVersion, definition, now},
	}
}
