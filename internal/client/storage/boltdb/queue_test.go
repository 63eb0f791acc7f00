package boltdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shoetrack/internal/models"
)

func appendOps(t *testing.T, store *Storage, ids ...string) []*models.Operation {
	t.Helper()
	var ops []*models.Operation
	for _, id := range ids {
		op := &models.Operation{ID: "op-" + id, EntityType: models.EntityShoe, EntityID: id, Kind: models.OpCreate}
		require.NoError(t, store.AppendOperation(context.Background(), op))
		ops = append(ops, op)
	}
	return ops
}

func TestQueue_AppendAssignsIncreasingSeq(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ops := appendOps(t, store, "a", "b", "c")
	assert.Less(t, ops[0].Seq, ops[1].Seq)
	assert.Less(t, ops[1].Seq, ops[2].Seq)

	list, err := store.ListOperations(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{list[0].EntityID, list[1].EntityID, list[2].EntityID})
}

func TestQueue_TakeAndRestoreKeepsPosition(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	appendOps(t, store, "a", "b", "c")

	taken, err := store.TakeOperations(ctx, func(op *models.Operation) bool {
		return op.EntityID != "b"
	})
	require.NoError(t, err)
	require.Len(t, taken, 2)

	left, err := store.ListOperations(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "b", left[0].EntityID)

	// возвращаем "a" под прежним Seq: он снова впереди "b"
	taken[0].RetryCount = 1
	require.NoError(t, store.SaveOperation(ctx, taken[0]))

	left, err = store.ListOperations(ctx)
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, "a", left[0].EntityID)
	assert.Equal(t, 1, left[0].RetryCount)
}

func TestQueue_SaveWithoutSeq(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	err := store.SaveOperation(context.Background(), &models.Operation{ID: "x"})
	assert.Error(t, err)
}

func TestQueue_Clear(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	ops := appendOps(t, store, "a", "b", "c")

	require.NoError(t, store.ClearOperations(ctx))
	left, err := store.ListOperations(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)

	// последовательность не сбрасывается после очистки
	next := appendOps(t, store, "d")
	assert.Greater(t, next[0].Seq, ops[2].Seq)
}
