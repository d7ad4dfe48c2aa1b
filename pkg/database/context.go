package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type contextKey string

const (
	// TenantScopeKey is the context key for storing the tenant-scoped database connection.
	TenantScopeKey contextKey = "tenantScope"
	// TxKey is the context key for storing an open transaction on the tenant connection.
	TxKey contextKey = "tenantTx"
)

// Querier is the subset of pgx operations repositories execute statements
// through. Both *pgxpool.Conn and pgx.Tx satisfy it, so repository code is
// identical inside and outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetTenantScope retrieves the tenant-scoped database connection from context.
// Returns nil and false if not present.
func GetTenantScope(ctx context.Context) (*TenantScope, bool) {
	scope, ok := ctx.Value(TenantScopeKey).(*TenantScope)
	return scope, ok
}

// SetTenantScope stores the tenant-scoped database connection in context.
func SetTenantScope(ctx context.Context, scope *TenantScope) context.Context {
	return context.WithValue(ctx, TenantScopeKey, scope)
}

// SetTx stores an open transaction in context. Repository operations executed
// with the returned context run inside the transaction. Used by the bulk
// orchestrator (atomic mode) and cascade deletes.
func SetTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, TxKey, tx)
}

// GetQuerier returns the executor for the current request: the open
// transaction if one is set, otherwise the tenant-scoped connection.
// Returns false if no tenant scope is present.
func GetQuerier(ctx context.Context) (Querier, bool) {
	if tx, ok := ctx.Value(TxKey).(pgx.Tx); ok {
		return tx, true
	}
	scope, ok := GetTenantScope(ctx)
	if !ok || scope.Conn == nil {
		return nil, false
	}
	return scope.Conn, true
}
