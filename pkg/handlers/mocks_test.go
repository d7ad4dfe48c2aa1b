package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/lattice-hq/lattice-engine/pkg/models"
	"github.com/lattice-hq/lattice-engine/pkg/services"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockSchemaService implements services.SchemaService for handler tests.
type mockSchemaService struct {
	def      *models.SchemaDefinition
	getErr   error
	applyErr error
	applied  *models.SchemaDefinition
}

func (m *mockSchemaService) Get(ctx context.Context, workspaceID uuid.UUID) (*models.SchemaDefinition, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.def, nil
}

func (m *mockSchemaService) Apply(ctx context.Context, workspaceID uuid.UUID, def *models.SchemaDefinition, expectedVersion int) (*models.SchemaDefinition, error) {
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	m.applied = def
	def.WorkspaceID = workspaceID
	def.Version = expectedVersion + 1
	return def, nil
}

// mockGraphService implements services.GraphService for handler tests.
type mockGraphService struct {
	entity   *models.Entity
	entities []*models.Entity
	edge     *models.Edge
	edges    []*models.Edge
	total    int
	cascaded int
	err      error

	lastListOpts services.ListOptions
}

func (m *mockGraphService) CreateEntity(ctx context.Context, workspaceID uuid.UUID, entityType string, properties map[string]any) (*models.Entity, error) {
	return m.entity, m.err
}

func (m *mockGraphService) GetEntity(ctx context.Context, workspaceID, entityID uuid.UUID, includeDeleted bool) (*models.Entity, error) {
	return m.entity, m.err
}

func (m *mockGraphService) UpdateEntity(ctx context.Context, workspaceID, entityID uuid.UUID, patch map[string]any) (*models.Entity, error) {
	return m.entity, m.err
}

func (m *mockGraphService) DeleteEntity(ctx context.Context, workspaceID, entityID uuid.UUID) (*models.Entity, int, error) {
	return m.entity, m.cascaded, m.err
}

func (m *mockGraphService) ListEntities(ctx context.Context, workspaceID uuid.UUID, opts services.ListOptions) ([]*models.Entity, int, error) {
	m.lastListOpts = opts
	return m.entities, m.total, m.err
}

func (m *mockGraphService) CreateEdge(ctx context.Context, workspaceID uuid.UUID, edgeType string, sourceID, targetID uuid.UUID, properties map[string]any) (*models.Edge, error) {
	return m.edge, m.err
}

func (m *mockGraphService) GetEdge(ctx context.Context, workspaceID, edgeID uuid.UUID, includeDeleted bool) (*models.Edge, error) {
	return m.edge, m.err
}

func (m *mockGraphService) UpdateEdge(ctx context.Context, workspaceID, edgeID uuid.UUID, patch map[string]any) (*models.Edge, error) {
	return m.edge, m.err
}

func (m *mockGraphService) DeleteEdge(ctx context.Context, workspaceID, edgeID uuid.UUID) (*models.Edge, error) {
	return m.edge, m.err
}

func (m *mockGraphService) ListEdges(ctx context.Context, workspaceID uuid.UUID, opts services.ListOptions) ([]*models.Edge, int, error) {
	m.lastListOpts = opts
	return m.edges, m.total, m.err
}

// mockTraversalService implements services.TraversalService for handler tests.
type mockTraversalService struct {
	neighbors []*models.Entity
	total     int
	paths     []*models.Path
	subgraph  *models.Subgraph
	err       error

	lastDirection models.Direction
	lastDepth     *int
}

func (m *mockTraversalService) Neighbors(ctx context.Context, workspaceID, entityID uuid.UUID, direction models.Direction, typeFilter string, page services.PageOptions) ([]*models.Entity, int, error) {
	m.lastDirection = direction
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.neighbors, m.total, nil
}

func (m *mockTraversalService) Paths(ctx context.Context, workspaceID, sourceID, targetID uuid.UUID, depth *int, typeFilter string) ([]*models.Path, error) {
	m.lastDepth = depth
	if m.err != nil {
		return nil, m.err
	}
	return m.paths, nil
}

func (m *mockTraversalService) Traverse(ctx context.Context, workspaceID, startID uuid.UUID, depth *int, direction models.Direction, typeFilter string) (*models.Subgraph, error) {
	m.lastDepth = depth
	m.lastDirection = direction
	if m.err != nil {
		return nil, m.err
	}
	return m.subgraph, nil
}

// mockBulkService implements services.BulkService for handler tests.
type mockBulkService struct {
	entities []*models.Entity
	edges    []*models.Edge
	itemErrs []services.ItemError
	err      error

	lastMode services.BulkMode
}

func (m *mockBulkService) CreateEntities(ctx context.Context, workspaceID uuid.UUID, items []services.EntityInput, mode services.BulkMode) ([]*models.Entity, []services.ItemError, error) {
	m.lastMode = mode
	return m.entities, m.itemErrs, m.err
}

func (m *mockBulkService) UpdateEntities(ctx context.Context, workspaceID uuid.UUID, items []services.EntityPatch, mode services.BulkMode) ([]*models.Entity, []services.ItemError, error) {
	m.lastMode = mode
	return m.entities, m.itemErrs, m.err
}

func (m *mockBulkService) DeleteEntities(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID, mode services.BulkMode) ([]*models.Entity, []services.ItemError, error) {
	m.lastMode = mode
	return m.entities, m.itemErrs, m.err
}

func (m *mockBulkService) CreateEdges(ctx context.Context, workspaceID uuid.UUID, items []services.EdgeInput, mode services.BulkMode) ([]*models.Edge, []services.ItemError, error) {
	m.lastMode = mode
	return m.edges, m.itemErrs, m.err
}

func (m *mockBulkService) UpdateEdges(ctx context.Context, workspaceID uuid.UUID, items []services.EdgePatch, mode services.BulkMode) ([]*models.Edge, []services.ItemError, error) {
	m.lastMode = mode
	return m.edges, m.itemErrs, m.err
}

func (m *mockBulkService) DeleteEdges(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID, mode services.BulkMode) ([]*models.Edge, []services.ItemError, error) {
	m.lastMode = mode
	return m.edges, m.itemErrs, m.err
}
