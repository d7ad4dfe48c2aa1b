package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lattice-hq/lattice-engine/pkg/apperrors"
	"github.com/lattice-hq/lattice-engine/pkg/config"
	"github.com/lattice-hq/lattice-engine/pkg/models"
	"github.com/lattice-hq/lattice-engine/pkg/repositories"
)

// TraversalService implements the read-only graph algorithms: single-hop
// neighbor expansion, bounded simple-path search, and N-degree breadth-first
// traversal. All three are tenant-scoped and exclude soft-deleted rows.
type TraversalService interface {
	// Neighbors returns a page of entities one hop from entityID plus the
	// total neighbor count for the direction and type filter.
	Neighbors(ctx context.Context, workspaceID, entityID uuid.UUID, direction models.Direction, typeFilter string, page PageOptions) ([]*models.Entity, int, error)

	// Paths returns every simple path between sourceID and targetID of at
	// most depth hops, treating edges as traversable in either direction.
	// A nil depth means the configured maximum; a supplied depth must be in
	// range, so an explicit zero is rejected rather than defaulted. An empty
	// result is not an error.
	Paths(ctx context.Context, workspaceID, sourceID, targetID uuid.UUID, depth *int, typeFilter string) ([]*models.Path, error)

	// Traverse expands breadth-first from startID up to depth hops and
	// returns the deduplicated visited node and edge sets. A nil depth means
	// one hop; a supplied depth must be in range.
	Traverse(ctx context.Context, workspaceID, startID uuid.UUID, depth *int, direction models.Direction, typeFilter string) (*models.Subgraph, error)
}

type traversalService struct {
	entityRepo repositories.EntityRepository
	edgeRepo   repositories.EdgeRepository
	cfg        config.GraphConfig
	logger     *zap.Logger
}

// NewTraversalService creates a new TraversalService.
func NewTraversalService(
	entityRepo repositories.EntityRepository,
	edgeRepo repositories.EdgeRepository,
	cfg config.GraphConfig,
	logger *zap.Logger,
) TraversalService {
	return &traversalService{
		entityRepo: entityRepo,
		edgeRepo:   edgeRepo,
		cfg:        cfg,
		logger:     logger.Named("traversal-service"),
	}
}

var _ TraversalService = (*traversalService)(nil)

func (s *traversalService) Neighbors(ctx context.Context, workspaceID, entityID uuid.UUID, direction models.Direction, typeFilter string, page PageOptions) ([]*models.Entity, int, error) {
	if direction == "" {
		direction = models.DirectionBoth
	}
	if !models.IsValidDirection(direction) {
		return nil, 0, apperrors.NewValidationError(apperrors.FieldError{
			Field:      "direction",
			Message:    `direction must be one of "in", "out", "both"`,
			Constraint: "enum",
		})
	}

	limit, offset, err := resolvePage(s.cfg, page)
	if err != nil {
		return nil, 0, err
	}

	if _, err := s.entityRepo.GetByID(ctx, workspaceID, entityID, false); err != nil {
		return nil, 0, err
	}

	return s.edgeRepo.Neighbors(ctx, workspaceID, entityID, direction, typeFilter, limit, offset)
}

func (s *traversalService) Paths(ctx context.Context, workspaceID, sourceID, targetID uuid.UUID, depth *int, typeFilter string) ([]*models.Path, error) {
	hops := s.cfg.MaxTraversalDepth
	if depth != nil {
		hops = *depth
	}
	if err := s.checkDepth(hops); err != nil {
		return nil, err
	}

	if _, err := s.entityRepo.GetByID(ctx, workspaceID, sourceID, false); err != nil {
		return nil, err
	}
	if _, err := s.entityRepo.GetByID(ctx, workspaceID, targetID, false); err != nil {
		return nil, err
	}

	if sourceID == targetID {
		return []*models.Path{}, nil
	}

	// Iterative depth-first search over simple paths. Each frame tracks how
	// far into its node's adjacency list the search has advanced, so the
	// explicit stack replaces recursion without losing the depth bound.
	adjacency := map[uuid.UUID][]*models.Edge{}
	adjacent := func(id uuid.UUID) ([]*models.Edge, error) {
		if edges, ok := adjacency[id]; ok {
			return edges, nil
		}
		edges, err := s.edgeRepo.AdjacentEdges(ctx, workspaceID, []uuid.UUID{id}, models.DirectionBoth, typeFilter)
		if err != nil {
			return nil, fmt.Errorf("load adjacency for %s: %w", id, err)
		}
		adjacency[id] = edges
		return edges, nil
	}

	type frame struct {
		node uuid.UUID
		next int
	}

	stack := []frame{{node: sourceID}}
	onPath := map[uuid.UUID]bool{sourceID: true}
	var pathEdges []*models.Edge
	var found [][]*models.Edge

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		edges, err := adjacent(top.node)
		if err != nil {
			return nil, err
		}

		if top.next >= len(edges) {
			delete(onPath, top.node)
			stack = stack[:len(stack)-1]
			if len(pathEdges) > 0 {
				pathEdges = pathEdges[:len(pathEdges)-1]
			}
			continue
		}

		edge := edges[top.next]
		top.next++

		other := otherEnd(edge, top.node)
		if onPath[other] {
			continue
		}

		if other == targetID {
			path := make([]*models.Edge, len(pathEdges)+1)
			copy(path, pathEdges)
			path[len(pathEdges)] = edge
			found = append(found, path)
			continue
		}

		// Extending here costs one hop now and at least one more to reach
		// the target, so stop one short of the bound.
		if len(stack) < hops {
			stack = append(stack, frame{node: other})
			onPath[other] = true
			pathEdges = append(pathEdges, edge)
		}
	}

	return s.materializePaths(ctx, workspaceID, sourceID, found)
}

func (s *traversalService) Traverse(ctx context.Context, workspaceID, startID uuid.UUID, depth *int, direction models.Direction, typeFilter string) (*models.Subgraph, error) {
	hops := 1
	if depth != nil {
		hops = *depth
	}
	if err := s.checkDepth(hops); err != nil {
		return nil, err
	}
	if direction == "" {
		direction = models.DirectionBoth
	}
	if !models.IsValidDirection(direction) {
		return nil, apperrors.NewValidationError(apperrors.FieldError{
			Field:      "direction",
			Message:    `direction must be one of "in", "out", "both"`,
			Constraint: "enum",
		})
	}

	if _, err := s.entityRepo.GetByID(ctx, workspaceID, startID, false); err != nil {
		return nil, err
	}

	// Breadth-first expansion with an explicit frontier. A node already in
	// the visited set is never re-expanded, so cycles cannot loop and each
	// node and edge is examined at most once.
	visited := map[uuid.UUID]bool{startID: true}
	nodeOrder := []uuid.UUID{startID}
	edgeSeen := map[uuid.UUID]bool{}
	var edges []*models.Edge

	frontier := []uuid.UUID{startID}
	for hop := 0; hop < hops && len(frontier) > 0; hop++ {
		adjacent, err := s.edgeRepo.AdjacentEdges(ctx, workspaceID, frontier, direction, typeFilter)
		if err != nil {
			return nil, fmt.Errorf("expand frontier at hop %d: %w", hop+1, err)
		}

		var next []uuid.UUID
		for _, edge := range adjacent {
			if !edgeSeen[edge.ID] {
				edgeSeen[edge.ID] = true
				edges = append(edges, edge)
			}
			for _, end := range [2]uuid.UUID{edge.SourceID, edge.TargetID} {
				if !visited[end] {
					visited[end] = true
					nodeOrder = append(nodeOrder, end)
					next = append(next, end)
				}
			}
		}
		frontier = next
	}

	entities, err := s.entitiesByID(ctx, workspaceID, nodeOrder)
	if err != nil {
		return nil, err
	}

	nodes := make([]*models.Entity, 0, len(nodeOrder))
	for _, id := range nodeOrder {
		if e, ok := entities[id]; ok {
			nodes = append(nodes, e)
		}
	}

	if edges == nil {
		edges = []*models.Edge{}
	}

	return &models.Subgraph{Nodes: nodes, Edges: edges}, nil
}

func (s *traversalService) checkDepth(depth int) error {
	if depth < 1 || depth > s.cfg.MaxTraversalDepth {
		return apperrors.NewValidationError(apperrors.FieldError{
			Field:      "depth",
			Message:    fmt.Sprintf("depth must be between 1 and %d", s.cfg.MaxTraversalDepth),
			Constraint: "range",
		})
	}
	return nil
}

// materializePaths resolves the entities along each edge sequence and builds
// ordered node lists, source first.
func (s *traversalService) materializePaths(ctx context.Context, workspaceID, sourceID uuid.UUID, found [][]*models.Edge) ([]*models.Path, error) {
	ids := []uuid.UUID{sourceID}
	seen := map[uuid.UUID]bool{sourceID: true}
	for _, path := range found {
		node := sourceID
		for _, edge := range path {
			node = otherEnd(edge, node)
			if !seen[node] {
				seen[node] = true
				ids = append(ids, node)
			}
		}
	}

	entities, err := s.entitiesByID(ctx, workspaceID, ids)
	if err != nil {
		return nil, err
	}

	paths := make([]*models.Path, 0, len(found))
	for _, edgeSeq := range found {
		nodes := make([]*models.Entity, 0, len(edgeSeq)+1)
		node := sourceID
		nodes = append(nodes, entities[node])
		for _, edge := range edgeSeq {
			node = otherEnd(edge, node)
			nodes = append(nodes, entities[node])
		}
		paths = append(paths, &models.Path{Nodes: nodes, Edges: edgeSeq})
	}

	return paths, nil
}

func (s *traversalService) entitiesByID(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*models.Entity, error) {
	found, err := s.entityRepo.GetByIDs(ctx, workspaceID, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve traversal entities: %w", err)
	}
	byID := make(map[uuid.UUID]*models.Entity, len(found))
	for _, e := range found {
		byID[e.ID] = e
	}
	return byID, nil
}

// otherEnd returns the endpoint of edge that is not node. For self-loops both
// ends coincide and node itself comes back.
func otherEnd(edge *models.Edge, node uuid.UUID) uuid.UUID {
	if edge.SourceID == node {
		return edge.TargetID
	}
	return edge.SourceID
}
