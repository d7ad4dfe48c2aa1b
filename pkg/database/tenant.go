package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantScope wraps a connection with workspace context and ensures cleanup.
// The connection has app.current_workspace_id set for RLS policy evaluation.
// Row-level security is a second line of defense: every statement the query
// builder emits already carries an explicit workspace_id predicate.
type TenantScope struct {
	Conn        *pgxpool.Conn
	WorkspaceID uuid.UUID
}

// Close resets workspace context and releases the connection to the pool.
// This MUST be called to prevent workspace context from leaking to the next request.
func (s *TenantScope) Close() {
	if s.Conn == nil {
		return
	}
	_, _ = s.Conn.Exec(context.Background(), "RESET app.current_workspace_id")
	s.Conn.Release()
}

// WithTenant acquires a connection and sets the workspace context for RLS.
// The returned TenantScope MUST be closed with defer scope.Close().
func (db *DB) WithTenant(ctx context.Context, workspaceID uuid.UUID) (*TenantScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('app.current_workspace_id', $1, false)", workspaceID.String())
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &TenantScope{Conn: conn, WorkspaceID: workspaceID}, nil
}
