package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lattice-hq/lattice-engine/pkg/apperrors"
	"github.com/lattice-hq/lattice-engine/pkg/models"
)

// snapshotTx mimics transactional rollback over the in-memory store: on
// error the whole store is restored to its pre-batch state.
func snapshotTx(entities *mockEntityRepo, edges *mockEdgeRepo) func(ctx context.Context, fn func(ctx context.Context) error) error {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		entSnap := make(map[uuid.UUID]*models.Entity, len(entities.entities))
		for id, e := range entities.entities {
			copied := *e
			entSnap[id] = &copied
		}
		entOrder := append([]uuid.UUID(nil), entities.order...)

		edgeSnap := make(map[uuid.UUID]*models.Edge, len(edges.edges))
		for id, e := range edges.edges {
			copied := *e
			edgeSnap[id] = &copied
		}
		edgeOrder := append([]uuid.UUID(nil), edges.order...)

		if err := fn(ctx); err != nil {
			entities.entities = entSnap
			entities.order = entOrder
			edges.edges = edgeSnap
			edges.order = edgeOrder
			return err
		}
		return nil
	}
}

func newTestBulkService(workspaceID uuid.UUID) (BulkService, GraphService, *mockEntityRepo, *mockEdgeRepo) {
	entities, edges := newMockStore()
	schemaRepo := &mockSchemaRepo{def: personSchema(workspaceID)}

	graph := NewGraphService(schemaRepo, entities, edges, testGraphConfig(), zap.NewNop()).(*graphService)
	graph.inTx = passthroughTx

	bulk := NewBulkService(graph, zap.NewNop()).(*bulkService)
	bulk.inTx = snapshotTx(entities, edges)

	return bulk, graph, entities, edges
}

func TestParseBulkMode(t *testing.T) {
	mode, err := ParseBulkMode("")
	require.NoError(t, err)
	assert.Equal(t, BulkAtomic, mode, "atomic is the default")

	mode, err = ParseBulkMode("partial")
	require.NoError(t, err)
	assert.Equal(t, BulkPartial, mode)

	_, err = ParseBulkMode("best_effort")
	ve, ok := apperrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "mode", ve.Fields[0].Field)
}

func TestBulkService_EmptyBatchRejected(t *testing.T) {
	workspaceID := uuid.New()
	bulk, _, _, _ := newTestBulkService(workspaceID)
	ctx := context.Background()

	_, _, err := bulk.CreateEntities(ctx, workspaceID, nil, BulkAtomic)
	ve, ok := apperrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "entities", ve.Fields[0].Field)

	_, _, err = bulk.DeleteEntities(ctx, workspaceID, []uuid.UUID{}, BulkPartial)
	ve, ok = apperrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "ids", ve.Fields[0].Field)
}

func TestBulkService_CreateEntities_PartialIndexStability(t *testing.T) {
	workspaceID := uuid.New()
	bulk, _, _, _ := newTestBulkService(workspaceID)

	items := []EntityInput{
		{Type: "Person", Properties: map[string]any{"full_name": "P0"}},
		{Type: "Person", Properties: map[string]any{}}, // missing required
		{Type: "Person", Properties: map[string]any{"full_name": "P2"}},
		{Type: "Robot", Properties: map[string]any{}}, // unknown type
	}

	created, itemErrs, err := bulk.CreateEntities(context.Background(), workspaceID, items, BulkPartial)
	require.NoError(t, err)

	require.Len(t, created, 2)
	assert.Equal(t, "P0", created[0].Properties["full_name"])
	assert.Equal(t, "P2", created[1].Properties["full_name"], "success order follows input order")

	require.Len(t, itemErrs, 2)
	assert.Equal(t, 1, itemErrs[0].Index)
	assert.Equal(t, "full_name", itemErrs[0].Errors[0].Field)
	assert.Equal(t, 3, itemErrs[1].Index)
	assert.Equal(t, "type", itemErrs[1].Errors[0].Field)
}

func TestBulkService_CreateEntities_AtomicRollsBackOnAnyFailure(t *testing.T) {
	workspaceID := uuid.New()
	bulk, _, entities, _ := newTestBulkService(workspaceID)

	items := []EntityInput{
		{Type: "Person", Properties: map[string]any{"full_name": "P0"}},
		{Type: "Person", Properties: map[string]any{"full_name": "P1"}},
		{Type: "Person", Properties: map[string]any{}},
	}

	created, itemErrs, err := bulk.CreateEntities(context.Background(), workspaceID, items, BulkAtomic)
	require.NoError(t, err)

	assert.Empty(t, created, "atomic failure reports zero succeeded items")
	require.Len(t, itemErrs, 1)
	assert.Equal(t, 2, itemErrs[0].Index)
	assert.Empty(t, entities.entities, "nothing is committed")
}

func TestBulkService_CreateEntities_AtomicAllSucceed(t *testing.T) {
	workspaceID := uuid.New()
	bulk, _, entities, _ := newTestBulkService(workspaceID)

	items := []EntityInput{
		{Type: "Person", Properties: map[string]any{"full_name": "P0"}},
		{Type: "Person", Properties: map[string]any{"full_name": "P1"}},
	}

	created, itemErrs, err := bulk.CreateEntities(context.Background(), workspaceID, items, BulkAtomic)
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Empty(t, itemErrs)
	assert.Len(t, entities.entities, 2)
}

func TestBulkService_UpdateEntities_Partial(t *testing.T) {
	workspaceID := uuid.New()
	bulk, graph, _, _ := newTestBulkService(workspaceID)
	ctx := context.Background()

	existing, err := graph.CreateEntity(ctx, workspaceID, "Person", map[string]any{"full_name": "P"})
	require.NoError(t, err)

	patches := []EntityPatch{
		{ID: existing.ID, Properties: map[string]any{"age": float64(30)}},
		{ID: uuid.New(), Properties: map[string]any{"age": float64(30)}},
	}

	updated, itemErrs, err := bulk.UpdateEntities(ctx, workspaceID, patches, BulkPartial)
	require.NoError(t, err)

	require.Len(t, updated, 1)
	assert.Equal(t, int64(30), updated[0].Properties["age"])

	require.Len(t, itemErrs, 1)
	assert.Equal(t, 1, itemErrs[0].Index)
	assert.Equal(t, "id", itemErrs[0].Errors[0].Field)
}

func TestBulkService_DeleteEntities_AtomicMissingIDRollsBack(t *testing.T) {
	workspaceID := uuid.New()
	bulk, graph, entities, _ := newTestBulkService(workspaceID)
	ctx := context.Background()

	a, err := graph.CreateEntity(ctx, workspaceID, "Person", map[string]any{"full_name": "A"})
	require.NoError(t, err)

	deleted, itemErrs, err := bulk.DeleteEntities(ctx, workspaceID, []uuid.UUID{a.ID, uuid.New()}, BulkAtomic)
	require.NoError(t, err)

	assert.Empty(t, deleted)
	require.Len(t, itemErrs, 1)
	assert.Equal(t, 1, itemErrs[0].Index)
	assert.Nil(t, entities.entities[a.ID].DeletedAt, "the deletable item is rolled back too")
}

func TestBulkService_DeleteEntities_Partial(t *testing.T) {
	workspaceID := uuid.New()
	bulk, graph, _, edges := newTestBulkService(workspaceID)
	ctx := context.Background()

	a, err := graph.CreateEntity(ctx, workspaceID, "Person", map[string]any{"full_name": "A"})
	require.NoError(t, err)
	b, err := graph.CreateEntity(ctx, workspaceID, "Person", map[string]any{"full_name": "B"})
	require.NoError(t, err)
	edge, err := graph.CreateEdge(ctx, workspaceID, "knows", a.ID, b.ID, nil)
	require.NoError(t, err)

	deleted, itemErrs, err := bulk.DeleteEntities(ctx, workspaceID, []uuid.UUID{a.ID, uuid.New()}, BulkPartial)
	require.NoError(t, err)

	require.Len(t, deleted, 1)
	assert.NotNil(t, deleted[0].DeletedAt)
	require.Len(t, itemErrs, 1)
	assert.Equal(t, 1, itemErrs[0].Index)

	assert.NotNil(t, edges.edges[edge.ID].DeletedAt, "cascade still applies per item")
}

func TestBulkService_CreateEdges_Atomic(t *testing.T) {
	workspaceID := uuid.New()
	bulk, graph, _, edges := newTestBulkService(workspaceID)
	ctx := context.Background()

	a, err := graph.CreateEntity(ctx, workspaceID, "Person", map[string]any{"full_name": "A"})
	require.NoError(t, err)
	b, err := graph.CreateEntity(ctx, workspaceID, "Person", map[string]any{"full_name": "B"})
	require.NoError(t, err)

	items := []EdgeInput{
		{Type: "knows", SourceID: a.ID, TargetID: b.ID},
		{Type: "knows", SourceID: a.ID, TargetID: uuid.New()},
	}

	created, itemErrs, err := bulk.CreateEdges(ctx, workspaceID, items, BulkAtomic)
	require.NoError(t, err)

	assert.Empty(t, created)
	require.Len(t, itemErrs, 1)
	assert.Equal(t, 1, itemErrs[0].Index)
	assert.Equal(t, "target_id", itemErrs[0].Errors[0].Field)
	assert.Empty(t, edges.edges, "no edge from the batch is committed")
}

func TestBulkService_PartialAllFail(t *testing.T) {
	workspaceID := uuid.New()
	bulk, _, _, _ := newTestBulkService(workspaceID)

	items := []EntityInput{
		{Type: "Person", Properties: map[string]any{}},
		{Type: "Person", Properties: map[string]any{}},
	}

	created, itemErrs, err := bulk.CreateEntities(context.Background(), workspaceID, items, BulkPartial)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Len(t, itemErrs, 2)
}
