package models

import (
	"time"

	"github.com/google/uuid"
)

// Entity is a schema-conformant node in a workspace graph.
// Properties hold values already normalized by schema validation (string,
// int64, float64, bool, or time.Time keyed by property name).
// Stored in graph_entities.
type Entity struct {
	ID          uuid.UUID      `json:"id"`
	WorkspaceID uuid.UUID      `json:"workspace_id"`
	Type        string         `json:"type"`
	Properties  map[string]any `json:"properties"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"` // nil means active
}

// Edge is a typed, directed relationship between two entities of the same
// workspace. Endpoint liveness is enforced at entity delete time: soft-deleting
// an entity soft-deletes its incident edges.
// Stored in graph_edges.
type Edge struct {
	ID          uuid.UUID      `json:"id"`
	WorkspaceID uuid.UUID      `json:"workspace_id"`
	Type        string         `json:"type"`
	SourceID    uuid.UUID      `json:"source_id"`
	TargetID    uuid.UUID      `json:"target_id"`
	Properties  map[string]any `json:"properties"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
}

// Direction selects which incident edges a traversal follows.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionBoth Direction = "both"
)

// IsValidDirection reports whether d is one of in, out, both.
func IsValidDirection(d Direction) bool {
	return d == DirectionIn || d == DirectionOut || d == DirectionBoth
}

// Path is one simple path between two entities: Nodes has one more element
// than Edges, and Edges[i] connects Nodes[i] with Nodes[i+1].
type Path struct {
	Nodes []*Entity `json:"nodes"`
	Edges []*Edge   `json:"edges"`
}

// Subgraph is the deduplicated node and edge set visited by an N-degree
// traversal.
type Subgraph struct {
	Nodes []*Entity `json:"nodes"`
	Edges []*Edge   `json:"edges"`
}
