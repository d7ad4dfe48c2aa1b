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

// testGraph seeds a workspace with named person entities and knows edges.
type testGraph struct {
	svc         TraversalService
	graph       GraphService
	workspaceID uuid.UUID
	nodes       map[string]*models.Entity
	edges       map[string]*models.Edge
	t           *testing.T
}

func newTestGraph(t *testing.T) *testGraph {
	workspaceID := uuid.New()
	entities, edges := newMockStore()
	schemaRepo := &mockSchemaRepo{def: personSchema(workspaceID)}

	graph := NewGraphService(schemaRepo, entities, edges, testGraphConfig(), zap.NewNop()).(*graphService)
	graph.inTx = passthroughTx

	return &testGraph{
		svc:         NewTraversalService(entities, edges, testGraphConfig(), zap.NewNop()),
		graph:       graph,
		workspaceID: workspaceID,
		nodes:       map[string]*models.Entity{},
		edges:       map[string]*models.Edge{},
		t:           t,
	}
}

func (g *testGraph) node(name string) *models.Entity {
	if e, ok := g.nodes[name]; ok {
		return e
	}
	e, err := g.graph.CreateEntity(context.Background(), g.workspaceID, "Person", map[string]any{"full_name": name})
	require.NoError(g.t, err)
	g.nodes[name] = e
	return e
}

func (g *testGraph) connect(from, to string) *models.Edge {
	e, err := g.graph.CreateEdge(context.Background(), g.workspaceID, "knows", g.node(from).ID, g.node(to).ID, nil)
	require.NoError(g.t, err)
	g.edges[from+"->"+to] = e
	return e
}

func hops(n int) *int { return &n }

func (g *testGraph) names(entities []*models.Entity) []string {
	var names []string
	for _, e := range entities {
		names = append(names, e.Properties["full_name"].(string))
	}
	return names
}

func TestTraversalService_Neighbors_Directions(t *testing.T) {
	g := newTestGraph(t)
	g.connect("A", "B")
	g.connect("C", "A")
	g.connect("A", "B") // parallel edge, neighbor still reported once

	ctx := context.Background()

	out, total, err := g.svc.Neighbors(ctx, g.workspaceID, g.nodes["A"].ID, models.DirectionOut, "", PageOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.ElementsMatch(t, []string{"B"}, g.names(out))

	in, _, err := g.svc.Neighbors(ctx, g.workspaceID, g.nodes["A"].ID, models.DirectionIn, "", PageOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"C"}, g.names(in))

	both, total, err := g.svc.Neighbors(ctx, g.workspaceID, g.nodes["A"].ID, models.DirectionBoth, "", PageOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.ElementsMatch(t, []string{"B", "C"}, g.names(both))
}

func TestTraversalService_Neighbors_InvalidDirection(t *testing.T) {
	g := newTestGraph(t)
	g.node("A")

	_, _, err := g.svc.Neighbors(context.Background(), g.workspaceID, g.nodes["A"].ID, "sideways", "", PageOptions{})
	ve, ok := apperrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "direction", ve.Fields[0].Field)
}

func TestTraversalService_Neighbors_UnknownEntity(t *testing.T) {
	g := newTestGraph(t)

	_, _, err := g.svc.Neighbors(context.Background(), g.workspaceID, uuid.New(), models.DirectionBoth, "", PageOptions{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTraversalService_Paths_Chain(t *testing.T) {
	g := newTestGraph(t)
	g.connect("A", "B")
	g.connect("B", "C")

	paths, err := g.svc.Paths(context.Background(), g.workspaceID, g.nodes["A"].ID, g.nodes["C"].ID, hops(2), "")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"A", "B", "C"}, g.names(paths[0].Nodes))
	assert.Len(t, paths[0].Edges, 2)
}

func TestTraversalService_Paths_DepthTooLowIsEmpty(t *testing.T) {
	g := newTestGraph(t)
	g.connect("A", "B")
	g.connect("B", "C")

	paths, err := g.svc.Paths(context.Background(), g.workspaceID, g.nodes["A"].ID, g.nodes["C"].ID, hops(1), "")
	require.NoError(t, err)
	assert.Empty(t, paths, "an undershooting depth bound yields no partial paths")
}

func TestTraversalService_Paths_Diamond(t *testing.T) {
	g := newTestGraph(t)
	g.connect("A", "B")
	g.connect("B", "D")
	g.connect("A", "C")
	g.connect("C", "D")

	paths, err := g.svc.Paths(context.Background(), g.workspaceID, g.nodes["A"].ID, g.nodes["D"].ID, nil, "")
	require.NoError(t, err)
	require.Len(t, paths, 2)

	var middles []string
	for _, p := range paths {
		require.Len(t, p.Nodes, 3)
		middles = append(middles, p.Nodes[1].Properties["full_name"].(string))
	}
	assert.ElementsMatch(t, []string{"B", "C"}, middles)
}

func TestTraversalService_Paths_DirectionAgnostic(t *testing.T) {
	g := newTestGraph(t)
	// Both edges point away from B; the path A..C still exists because path
	// search ignores edge direction.
	g.connect("B", "A")
	g.connect("B", "C")

	paths, err := g.svc.Paths(context.Background(), g.workspaceID, g.nodes["A"].ID, g.nodes["C"].ID, hops(2), "")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"A", "B", "C"}, g.names(paths[0].Nodes))
}

func TestTraversalService_Paths_CycleProducesSimplePathsOnly(t *testing.T) {
	g := newTestGraph(t)
	g.connect("A", "B")
	g.connect("B", "A")
	g.connect("B", "C")

	paths, err := g.svc.Paths(context.Background(), g.workspaceID, g.nodes["A"].ID, g.nodes["C"].ID, nil, "")
	require.NoError(t, err)
	// Two parallel A-B connections give two simple paths; none revisits a node.
	require.Len(t, paths, 2)
	for _, p := range paths {
		seen := map[uuid.UUID]bool{}
		for _, n := range p.Nodes {
			assert.False(t, seen[n.ID], "path revisited a node")
			seen[n.ID] = true
		}
	}
}

func TestTraversalService_Paths_UnknownEndpoint(t *testing.T) {
	g := newTestGraph(t)
	g.node("A")

	_, err := g.svc.Paths(context.Background(), g.workspaceID, g.nodes["A"].ID, uuid.New(), hops(2), "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = g.svc.Paths(context.Background(), g.workspaceID, uuid.New(), g.nodes["A"].ID, hops(2), "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTraversalService_Paths_NoPathIsEmptyNotError(t *testing.T) {
	g := newTestGraph(t)
	g.node("A")
	g.node("B")

	paths, err := g.svc.Paths(context.Background(), g.workspaceID, g.nodes["A"].ID, g.nodes["B"].ID, nil, "")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestTraversalService_Traverse_CycleSafety(t *testing.T) {
	g := newTestGraph(t)
	g.connect("A", "B")
	g.connect("B", "C")
	g.connect("C", "A")

	sub, err := g.svc.Traverse(context.Background(), g.workspaceID, g.nodes["A"].ID, hops(5), models.DirectionBoth, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, g.names(sub.Nodes))
	assert.Len(t, sub.Edges, 3)

	seen := map[uuid.UUID]bool{}
	for _, n := range sub.Nodes {
		assert.False(t, seen[n.ID], "node sets contain no duplicates")
		seen[n.ID] = true
	}
}

func TestTraversalService_Traverse_RespectsDepthAndDirection(t *testing.T) {
	g := newTestGraph(t)
	g.connect("A", "B")
	g.connect("B", "C")
	g.connect("Z", "A")

	sub, err := g.svc.Traverse(context.Background(), g.workspaceID, g.nodes["A"].ID, hops(1), models.DirectionOut, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, g.names(sub.Nodes))
	assert.Len(t, sub.Edges, 1)

	sub, err = g.svc.Traverse(context.Background(), g.workspaceID, g.nodes["A"].ID, hops(2), models.DirectionOut, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, g.names(sub.Nodes))
}

func TestTraversalService_Traverse_DepthBounds(t *testing.T) {
	g := newTestGraph(t)
	g.node("A")

	_, err := g.svc.Traverse(context.Background(), g.workspaceID, g.nodes["A"].ID, hops(11), models.DirectionBoth, "")
	ve, ok := apperrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "depth", ve.Fields[0].Field)
	assert.Contains(t, ve.Fields[0].Message, "10")

	_, err = g.svc.Traverse(context.Background(), g.workspaceID, g.nodes["A"].ID, hops(-2), models.DirectionBoth, "")
	_, ok = apperrors.AsValidation(err)
	assert.True(t, ok)

	// An explicit zero is out of range, only an absent depth gets the default.
	_, err = g.svc.Traverse(context.Background(), g.workspaceID, g.nodes["A"].ID, hops(0), models.DirectionBoth, "")
	_, ok = apperrors.AsValidation(err)
	assert.True(t, ok)
}

func TestTraversalService_Paths_ExplicitZeroDepthRejected(t *testing.T) {
	g := newTestGraph(t)
	g.connect("A", "B")

	_, err := g.svc.Paths(context.Background(), g.workspaceID, g.nodes["A"].ID, g.nodes["B"].ID, hops(0), "")
	ve, ok := apperrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "depth", ve.Fields[0].Field)
}

func TestTraversalService_Traverse_UnknownStart(t *testing.T) {
	g := newTestGraph(t)

	_, err := g.svc.Traverse(context.Background(), g.workspaceID, uuid.New(), hops(1), models.DirectionBoth, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTraversalService_Traverse_ExcludesDeleted(t *testing.T) {
	g := newTestGraph(t)
	g.connect("A", "B")
	g.connect("A", "C")

	_, _, err := g.graph.DeleteEntity(context.Background(), g.workspaceID, g.nodes["C"].ID)
	require.NoError(t, err)

	sub, err := g.svc.Traverse(context.Background(), g.workspaceID, g.nodes["A"].ID, hops(3), models.DirectionBoth, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, g.names(sub.Nodes))
	assert.Len(t, sub.Edges, 1, "cascaded edges disappear from traversal")
}
