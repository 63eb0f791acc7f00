package boltdb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/models"
)

func TestConflicts_CRUD(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now()
	second := &models.Conflict{ID: "c2", EntityType: models.EntityShoe, EntityID: "s2", DetectedAt: now}
	first := &models.Conflict{ID: "c1", EntityType: models.EntityShoe, EntityID: "s1", DetectedAt: now.Add(-time.Minute)}
	require.NoError(t, store.SaveConflict(ctx, second))
	require.NoError(t, store.SaveConflict(ctx, first))

	list, err := store.ListConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].ID)

	got, err := store.GetConflict(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, "s2", got.EntityID)

	require.NoError(t, store.DeleteConflict(ctx, "c2"))
	_, err = store.GetConflict(ctx, "c2")
	assert.ErrorIs(t, err, storage.ErrConflictNotFound)
	assert.ErrorIs(t, store.DeleteConflict(ctx, "c2"), storage.ErrConflictNotFound)
}

func TestSyncErrors_CappedJournal(t *testing.T) {
	store, cleanup := createTestStorage(t, WithMaxSyncErrors(3))
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendSyncError(ctx, &models.SyncError{
			ID:      fmt.Sprintf("e%d", i),
			Class:   models.ErrorTransient,
			Message: "connection refused",
		}))
	}

	entries, err := store.ListSyncErrors(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "e2", entries[0].ID)
	assert.Equal(t, "e4", entries[2].ID)

	require.NoError(t, store.ClearSyncErrors(ctx))
	entries, err = store.ListSyncErrors(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAuth_SaveGetDelete(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)

	auth := &storage.AuthData{Username: "runner", UserID: "u1", AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.SaveAuth(ctx, auth))

	got, err := store.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", got.AccessToken)
	assert.False(t, got.Expired(time.Now()))

	require.NoError(t, store.DeleteAuth(ctx))
	assert.ErrorIs(t, store.DeleteAuth(ctx), storage.ErrAuthNotFound)
}

func TestMetadata_Times(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	at, err := store.GetTime(ctx, storage.MetaLastSync)
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	now := time.Date(2024, 6, 1, 7, 30, 0, 0, time.UTC)
	require.NoError(t, store.SaveTime(ctx, storage.MetaLastSync, now))

	at, err = store.GetTime(ctx, storage.MetaLastSync)
	require.NoError(t, err)
	assert.True(t, now.Equal(at))
}
