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

func TestSchemaService_Get_NotConfigured(t *testing.T) {
	repo := &mockSchemaRepo{}
	svc := NewSchemaService(repo, zap.NewNop())

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrSchemaNotConfigured)
}

func TestSchemaService_Apply_FirstCreation(t *testing.T) {
	workspaceID := uuid.New()
	repo := &mockSchemaRepo{}
	svc := NewSchemaService(repo, zap.NewNop())

	proposed := personSchema(workspaceID)
	proposed.Version = 0

	applied, err := svc.Apply(context.Background(), workspaceID, proposed, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, applied.Version)
	assert.Equal(t, workspaceID, applied.WorkspaceID)

	got, err := svc.Get(context.Background(), workspaceID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
}

func TestSchemaService_Apply_CASIncrementsByOne(t *testing.T) {
	workspaceID := uuid.New()
	repo := &mockSchemaRepo{def: personSchema(workspaceID)}
	repo.def.Version = 5
	svc := NewSchemaService(repo, zap.NewNop())

	applied, err := svc.Apply(context.Background(), workspaceID, personSchema(workspaceID), 5)
	require.NoError(t, err)
	assert.Equal(t, 6, applied.Version)
}

func TestSchemaService_Apply_VersionConflict(t *testing.T) {
	workspaceID := uuid.New()
	repo := &mockSchemaRepo{def: personSchema(workspaceID)}
	repo.def.Version = 5
	svc := NewSchemaService(repo, zap.NewNop())

	_, err := svc.Apply(context.Background(), workspaceID, personSchema(workspaceID), 3)
	assert.ErrorIs(t, err, apperrors.ErrVersionConflict)
	assert.Equal(t, 5, repo.def.Version, "conflict must not mutate the stored schema")
}

func TestSchemaService_Apply_ConflictOnExistingFirstCreation(t *testing.T) {
	workspaceID := uuid.New()
	repo := &mockSchemaRepo{def: personSchema(workspaceID)}
	svc := NewSchemaService(repo, zap.NewNop())

	_, err := svc.Apply(context.Background(), workspaceID, personSchema(workspaceID), 0)
	assert.ErrorIs(t, err, apperrors.ErrVersionConflict)
}

func TestSchemaService_Apply_InvalidShape(t *testing.T) {
	repo := &mockSchemaRepo{}
	svc := NewSchemaService(repo, zap.NewNop())

	bad := &models.SchemaDefinition{
		EntityTypes: []models.TypeDef{
			{Name: "bad-name"},
			{Name: ""},
		},
	}

	_, err := svc.Apply(context.Background(), uuid.New(), bad, 0)
	ve, ok := apperrors.AsValidation(err)
	require.True(t, ok)
	assert.Len(t, ve.Fields, 2, "all shape errors are collected together")
	assert.Nil(t, repo.def, "invalid schema must not be written")
}

func TestSchemaService_Apply_NegativeVersion(t *testing.T) {
	svc := NewSchemaService(&mockSchemaRepo{}, zap.NewNop())

	_, err := svc.Apply(context.Background(), uuid.New(), personSchema(uuid.New()), -1)
	ve, ok := apperrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "version", ve.Fields[0].Field)
}
