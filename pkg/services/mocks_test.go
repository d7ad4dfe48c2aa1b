package services

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/lattice-hq/lattice-engine/pkg/apperrors"
	"github.com/lattice-hq/lattice-engine/pkg/config"
	"github.com/lattice-hq/lattice-engine/pkg/models"
	"github.com/lattice-hq/lattice-engine/pkg/query"
)

// ============================================================================
// Mock repositories shared by the service tests
// ============================================================================

type mockSchemaRepo struct {
	def      *models.SchemaDefinition
	getErr   error
	writeErr error
}

func (m *mockSchemaRepo) Get(ctx context.Context, workspaceID uuid.UUID) (*models.SchemaDefinition, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.def == nil || m.def.WorkspaceID != workspaceID {
		return nil, nil
	}
	return m.def, nil
}

func (m *mockSchemaRepo) Create(ctx context.Context, def *models.SchemaDefinition) (*models.SchemaDefinition, error) {
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	if m.def != nil {
		return nil, apperrors.ErrVersionConflict
	}
	stored := *def
	stored.ID = uuid.New()
	stored.Version = 1
	m.def = &stored
	return m.def, nil
}

func (m *mockSchemaRepo) UpdateCAS(ctx context.Context, def *models.SchemaDefinition, expectedVersion int) (*models.SchemaDefinition, error) {
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	if m.def == nil || m.def.Version != expectedVersion {
		return nil, apperrors.ErrVersionConflict
	}
	stored := *def
	stored.ID = m.def.ID
	stored.Version = expectedVersion + 1
	m.def = &stored
	return m.def, nil
}

type mockEntityRepo struct {
	entities map[uuid.UUID]*models.Entity
	order    []uuid.UUID
	edges    *mockEdgeRepo
	err      error
}

func (m *mockEntityRepo) Create(ctx context.Context, entity *models.Entity) error {
	if m.err != nil {
		return m.err
	}
	stored := *entity
	m.entities[entity.ID] = &stored
	m.order = append(m.order, entity.ID)
	return nil
}

func (m *mockEntityRepo) GetByID(ctx context.Context, workspaceID, entityID uuid.UUID, includeDeleted bool) (*models.Entity, error) {
	if m.err != nil {
		return nil, m.err
	}
	e, ok := m.entities[entityID]
	if !ok || e.WorkspaceID != workspaceID || (!includeDeleted && e.DeletedAt != nil) {
		return nil, apperrors.ErrNotFound
	}
	return e, nil
}

func (m *mockEntityRepo) UpdateProperties(ctx context.Context, workspaceID, entityID uuid.UUID, properties map[string]any) (*models.Entity, error) {
	e, err := m.GetByID(ctx, workspaceID, entityID, false)
	if err != nil {
		return nil, err
	}
	e.Properties = properties
	e.UpdatedAt = nowUTC()
	return e, nil
}

func (m *mockEntityRepo) SoftDelete(ctx context.Context, workspaceID, entityID uuid.UUID) (*models.Entity, int, error) {
	e, err := m.GetByID(ctx, workspaceID, entityID, false)
	if err != nil {
		return nil, 0, err
	}
	now := nowUTC()
	e.DeletedAt = &now

	cascaded := 0
	for _, edge := range m.edges.edges {
		if edge.WorkspaceID == workspaceID && edge.DeletedAt == nil &&
			(edge.SourceID == entityID || edge.TargetID == entityID) {
			edge.DeletedAt = &now
			cascaded++
		}
	}
	return e, cascaded, nil
}

func (m *mockEntityRepo) List(ctx context.Context, workspaceID uuid.UUID, filter query.ListFilter) ([]*models.Entity, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	var matched []*models.Entity
	for _, id := range m.order {
		e := m.entities[id]
		if e.WorkspaceID != workspaceID {
			continue
		}
		if !filter.IncludeDeleted && e.DeletedAt != nil {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		matched = append(matched, e)
	}
	total := len(matched)
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (m *mockEntityRepo) GetByIDs(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID) ([]*models.Entity, error) {
	if m.err != nil {
		return nil, m.err
	}
	var found []*models.Entity
	for _, id := range ids {
		if e, ok := m.entities[id]; ok && e.WorkspaceID == workspaceID && e.DeletedAt == nil {
			found = append(found, e)
		}
	}
	return found, nil
}

type mockEdgeRepo struct {
	edges    map[uuid.UUID]*models.Edge
	order    []uuid.UUID
	entities *mockEntityRepo
	err      error
}

func (m *mockEdgeRepo) Create(ctx context.Context, edge *models.Edge) error {
	if m.err != nil {
		return m.err
	}
	stored := *edge
	m.edges[edge.ID] = &stored
	m.order = append(m.order, edge.ID)
	return nil
}

func (m *mockEdgeRepo) GetByID(ctx context.Context, workspaceID, edgeID uuid.UUID, includeDeleted bool) (*models.Edge, error) {
	if m.err != nil {
		return nil, m.err
	}
	e, ok := m.edges[edgeID]
	if !ok || e.WorkspaceID != workspaceID || (!includeDeleted && e.DeletedAt != nil) {
		return nil, apperrors.ErrNotFound
	}
	return e, nil
}

func (m *mockEdgeRepo) UpdateProperties(ctx context.Context, workspaceID, edgeID uuid.UUID, properties map[string]any) (*models.Edge, error) {
	e, err := m.GetByID(ctx, workspaceID, edgeID, false)
	if err != nil {
		return nil, err
	}
	e.Properties = properties
	e.UpdatedAt = nowUTC()
	return e, nil
}

func (m *mockEdgeRepo) SoftDelete(ctx context.Context, workspaceID, edgeID uuid.UUID) (*models.Edge, error) {
	e, err := m.GetByID(ctx, workspaceID, edgeID, false)
	if err != nil {
		return nil, err
	}
	now := nowUTC()
	e.DeletedAt = &now
	return e, nil
}

func (m *mockEdgeRepo) List(ctx context.Context, workspaceID uuid.UUID, filter query.ListFilter) ([]*models.Edge, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	var matched []*models.Edge
	for _, id := range m.order {
		e := m.edges[id]
		if e.WorkspaceID != workspaceID {
			continue
		}
		if !filter.IncludeDeleted && e.DeletedAt != nil {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		matched = append(matched, e)
	}
	total := len(matched)
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (m *mockEdgeRepo) AdjacentEdges(ctx context.Context, workspaceID uuid.UUID, entityIDs []uuid.UUID, direction models.Direction, typeFilter string) ([]*models.Edge, error) {
	if m.err != nil {
		return nil, m.err
	}
	in := make(map[uuid.UUID]bool, len(entityIDs))
	for _, id := range entityIDs {
		in[id] = true
	}
	var matched []*models.Edge
	for _, id := range m.order {
		e := m.edges[id]
		if e.WorkspaceID != workspaceID || e.DeletedAt != nil {
			continue
		}
		if typeFilter != "" && e.Type != typeFilter {
			continue
		}
		switch direction {
		case models.DirectionOut:
			if !in[e.SourceID] {
				continue
			}
		case models.DirectionIn:
			if !in[e.TargetID] {
				continue
			}
		default:
			if !in[e.SourceID] && !in[e.TargetID] {
				continue
			}
		}
		matched = append(matched, e)
	}
	return matched, nil
}

func (m *mockEdgeRepo) Neighbors(ctx context.Context, workspaceID, entityID uuid.UUID, direction models.Direction, typeFilter string, limit, offset int) ([]*models.Entity, int, error) {
	adjacent, err := m.AdjacentEdges(ctx, workspaceID, []uuid.UUID{entityID}, direction, typeFilter)
	if err != nil {
		return nil, 0, err
	}
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, e := range adjacent {
		other := e.TargetID
		if other == entityID {
			other = e.SourceID
		}
		if !seen[other] {
			seen[other] = true
			ids = append(ids, other)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	total := len(ids)
	if offset >= len(ids) {
		return nil, total, nil
	}
	ids = ids[offset:]
	if limit < len(ids) {
		ids = ids[:limit]
	}
	neighbors, err := m.entities.GetByIDs(ctx, workspaceID, ids)
	if err != nil {
		return nil, 0, err
	}
	return neighbors, total, nil
}

// newMockStore wires an entity and edge mock sharing one in-memory graph.
func newMockStore() (*mockEntityRepo, *mockEdgeRepo) {
	entities := &mockEntityRepo{entities: make(map[uuid.UUID]*models.Entity)}
	edges := &mockEdgeRepo{edges: make(map[uuid.UUID]*models.Edge), entities: entities}
	entities.edges = edges
	return entities, edges
}

// passthroughTx runs fn directly; rollback behavior is covered by the
// snapshotting variant in the bulk tests.
func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testGraphConfig() config.GraphConfig {
	return config.GraphConfig{
		MaxTraversalDepth: 10,
		DefaultPageSize:   50,
		MaxPageSize:       500,
	}
}

// personSchema returns a schema with a Person entity type and a knows edge
// type, enough to exercise validation on both kinds.
func personSchema(workspaceID uuid.UUID) *models.SchemaDefinition {
	minAge := 0.0
	maxAge := 150.0
	return &models.SchemaDefinition{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Version:     1,
		EntityTypes: []models.TypeDef{
			{
				Name: "Person",
				Properties: []models.PropertyDef{
					{Name: "full_name", Type: models.PropertyString, Required: true},
					{Name: "age", Type: models.PropertyInteger, Constraints: &models.Constraints{Min: &minAge, Max: &maxAge}},
				},
			},
		},
		EdgeTypes: []models.TypeDef{
			{
				Name: "knows",
				Properties: []models.PropertyDef{
					{Name: "since", Type: models.PropertyString},
				},
			},
		},
	}
}
