package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lattice-hq/lattice-engine/pkg/apperrors"
	"github.com/lattice-hq/lattice-engine/pkg/database"
	"github.com/lattice-hq/lattice-engine/pkg/models"
)

// BulkMode selects the failure policy for a batch.
type BulkMode string

const (
	// BulkAtomic commits all items or none. Any failing item rolls back the
	// whole batch and the succeeded count is zero.
	BulkAtomic BulkMode = "atomic"
	// BulkPartial commits items independently and skips failing ones.
	BulkPartial BulkMode = "partial"
)

// ParseBulkMode parses the request-level mode string. Empty means atomic.
func ParseBulkMode(s string) (BulkMode, error) {
	switch BulkMode(s) {
	case "":
		return BulkAtomic, nil
	case BulkAtomic, BulkPartial:
		return BulkMode(s), nil
	default:
		return "", apperrors.NewValidationError(apperrors.FieldError{
			Field:      "mode",
			Message:    `mode must be "atomic" or "partial"`,
			Constraint: "enum",
		})
	}
}

// ItemError correlates field errors with the failing item's position in the
// input batch. Indices always refer to the original batch, regardless of how
// many earlier items succeeded or failed.
type ItemError struct {
	Index  int                    `json:"index"`
	Errors []apperrors.FieldError `json:"errors"`
}

// EntityInput is one bulk-create item.
type EntityInput struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// EntityPatch is one bulk-update item.
type EntityPatch struct {
	ID         uuid.UUID      `json:"id"`
	Properties map[string]any `json:"properties"`
}

// EdgeInput is one bulk edge-create item.
type EdgeInput struct {
	Type       string         `json:"type"`
	SourceID   uuid.UUID      `json:"source_id"`
	TargetID   uuid.UUID      `json:"target_id"`
	Properties map[string]any `json:"properties"`
}

// EdgePatch is one bulk edge-update item.
type EdgePatch struct {
	ID         uuid.UUID      `json:"id"`
	Properties map[string]any `json:"properties"`
}

// BulkService sequences homogeneous batches through the validated graph
// operations. Each method returns the committed items in input order plus the
// per-item errors; in atomic mode a non-empty error list means nothing was
// committed. Only infrastructure failures surface as the third return value.
type BulkService interface {
	CreateEntities(ctx context.Context, workspaceID uuid.UUID, items []EntityInput, mode BulkMode) ([]*models.Entity, []ItemError, error)
	UpdateEntities(ctx context.Context, workspaceID uuid.UUID, items []EntityPatch, mode BulkMode) ([]*models.Entity, []ItemError, error)
	DeleteEntities(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID, mode BulkMode) ([]*models.Entity, []ItemError, error)
	CreateEdges(ctx context.Context, workspaceID uuid.UUID, items []EdgeInput, mode BulkMode) ([]*models.Edge, []ItemError, error)
	UpdateEdges(ctx context.Context, workspaceID uuid.UUID, items []EdgePatch, mode BulkMode) ([]*models.Edge, []ItemError, error)
	DeleteEdges(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID, mode BulkMode) ([]*models.Edge, []ItemError, error)
}

type bulkService struct {
	graph  GraphService
	inTx   func(ctx context.Context, fn func(ctx context.Context) error) error
	logger *zap.Logger
}

// NewBulkService creates a new BulkService on top of the graph operations.
func NewBulkService(graph GraphService, logger *zap.Logger) BulkService {
	return &bulkService{
		graph:  graph,
		inTx:   database.WithTx,
		logger: logger.Named("bulk-service"),
	}
}

var _ BulkService = (*bulkService)(nil)

func (s *bulkService) CreateEntities(ctx context.Context, workspaceID uuid.UUID, items []EntityInput, mode BulkMode) ([]*models.Entity, []ItemError, error) {
	if err := requireBatch("entities", len(items)); err != nil {
		return nil, nil, err
	}
	return runBulk(ctx, s.inTx, mode, len(items), func(ctx context.Context, i int) (*models.Entity, error) {
		return s.graph.CreateEntity(ctx, workspaceID, items[i].Type, items[i].Properties)
	})
}

func (s *bulkService) UpdateEntities(ctx context.Context, workspaceID uuid.UUID, items []EntityPatch, mode BulkMode) ([]*models.Entity, []ItemError, error) {
	if err := requireBatch("entities", len(items)); err != nil {
		return nil, nil, err
	}
	return runBulk(ctx, s.inTx, mode, len(items), func(ctx context.Context, i int) (*models.Entity, error) {
		return s.graph.UpdateEntity(ctx, workspaceID, items[i].ID, items[i].Properties)
	})
}

func (s *bulkService) DeleteEntities(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID, mode BulkMode) ([]*models.Entity, []ItemError, error) {
	if err := requireBatch("ids", len(ids)); err != nil {
		return nil, nil, err
	}
	return runBulk(ctx, s.inTx, mode, len(ids), func(ctx context.Context, i int) (*models.Entity, error) {
		entity, _, err := s.graph.DeleteEntity(ctx, workspaceID, ids[i])
		return entity, err
	})
}

func (s *bulkService) CreateEdges(ctx context.Context, workspaceID uuid.UUID, items []EdgeInput, mode BulkMode) ([]*models.Edge, []ItemError, error) {
	if err := requireBatch("edges", len(items)); err != nil {
		return nil, nil, err
	}
	return runBulk(ctx, s.inTx, mode, len(items), func(ctx context.Context, i int) (*models.Edge, error) {
		return s.graph.CreateEdge(ctx, workspaceID, items[i].Type, items[i].SourceID, items[i].TargetID, items[i].Properties)
	})
}

func (s *bulkService) UpdateEdges(ctx context.Context, workspaceID uuid.UUID, items []EdgePatch, mode BulkMode) ([]*models.Edge, []ItemError, error) {
	if err := requireBatch("edges", len(items)); err != nil {
		return nil, nil, err
	}
	return runBulk(ctx, s.inTx, mode, len(items), func(ctx context.Context, i int) (*models.Edge, error) {
		return s.graph.UpdateEdge(ctx, workspaceID, items[i].ID, items[i].Properties)
	})
}

func (s *bulkService) DeleteEdges(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID, mode BulkMode) ([]*models.Edge, []ItemError, error) {
	if err := requireBatch("ids", len(ids)); err != nil {
		return nil, nil, err
	}
	return runBulk(ctx, s.inTx, mode, len(ids), func(ctx context.Context, i int) (*models.Edge, error) {
		return s.graph.DeleteEdge(ctx, workspaceID, ids[i])
	})
}

// errBulkAborted signals the atomic transaction wrapper to roll back after
// item errors were collected. It never escapes runBulk.
var errBulkAborted = errors.New("bulk batch aborted")

// requireBatch rejects empty batches before any processing begins.
func requireBatch(field string, n int) error {
	if n == 0 {
		return apperrors.NewValidationError(apperrors.FieldError{
			Field:      field,
			Message:    "batch must not be empty",
			Constraint: "min_length",
		})
	}
	return nil
}

// runBulk drives a batch with the chosen failure policy. Items run in input
// order; the i-th item's outcome is always reported against index i. In
// atomic mode all statements share one transaction that is rolled back when
// any item fails, and the succeeded list comes back empty.
func runBulk[T any](ctx context.Context, inTx func(ctx context.Context, fn func(ctx context.Context) error) error, mode BulkMode, n int, run func(ctx context.Context, i int) (T, error)) ([]T, []ItemError, error) {
	var succeeded []T
	var itemErrs []ItemError

	execute := func(ctx context.Context) error {
		for i := 0; i < n; i++ {
			item, err := run(ctx, i)
			if err != nil {
				fields, expected := itemFieldErrors(err)
				if !expected {
					return fmt.Errorf("bulk item %d: %w", i, err)
				}
				itemErrs = append(itemErrs, ItemError{Index: i, Errors: fields})
				continue
			}
			succeeded = append(succeeded, item)
		}
		return nil
	}

	if mode == BulkPartial {
		if err := execute(ctx); err != nil {
			return nil, nil, err
		}
		return succeeded, itemErrs, nil
	}

	err := inTx(ctx, func(ctx context.Context) error {
		if err := execute(ctx); err != nil {
			return err
		}
		if len(itemErrs) > 0 {
			return errBulkAborted
		}
		return nil
	})
	if err != nil && !errors.Is(err, errBulkAborted) {
		return nil, nil, err
	}
	if len(itemErrs) > 0 {
		return nil, itemErrs, nil
	}

	return succeeded, itemErrs, nil
}

// itemFieldErrors maps an expected per-item failure to field errors. The
// second return is false for infrastructure faults, which abort the batch.
func itemFieldErrors(err error) ([]apperrors.FieldError, bool) {
	if ve, ok := apperrors.AsValidation(err); ok {
		return ve.Fields, true
	}
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return []apperrors.FieldError{{Field: "id", Message: "not found"}}, true
	case errors.Is(err, apperrors.ErrUnknownType):
		return []apperrors.FieldError{{Field: "type", Message: err.Error(), Constraint: "unknown"}}, true
	case errors.Is(err, apperrors.ErrSchemaNotConfigured):
		return []apperrors.FieldError{{Field: "type", Message: apperrors.ErrSchemaNotConfigured.Error()}}, true
	default:
		return nil, false
	}
}
