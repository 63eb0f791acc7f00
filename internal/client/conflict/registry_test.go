package conflict

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shoetrack/internal/client/queue"
	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/client/storage/boltdb"
	"github.com/iudanet/shoetrack/internal/client/store"
	"github.com/iudanet/shoetrack/internal/models"
)

type fixture struct {
	registry *Registry
	queue    *queue.Queue
	store    *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "conflicts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := queue.New(st, logger, queue.DefaultPolicy())
	s := store.New(st, q, logger)
	return &fixture{registry: NewRegistry(st, q, s, logger), queue: q, store: s}
}

// parkedConflict имитирует проход движка: локальная правка s1 упёрлась в серверную версию
func (f *fixture) parkedConflict(t *testing.T, remoteDeleted bool) *models.Conflict {
	t.Helper()
	ctx := context.Background()

	_, err := f.store.Put(ctx, &models.Shoe{ID: "s1", Name: "Local", MaxMileage: 800}, true)
	require.NoError(t, err)

	ops, err := f.queue.DequeueAll(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)

	c := &models.Conflict{
		ID:            "c1",
		EntityType:    models.EntityShoe,
		EntityID:      "s1",
		OperationID:   ops[0].ID,
		Kind:          ops[0].Kind,
		LocalPayload:  ops[0].Payload,
		RemotePayload: []byte(`{"id":"s1","name":"Remote","max_mileage":700}`),
		RemoteVersion: 4,
		RemoteDeleted: remoteDeleted,
	}
	if remoteDeleted {
		c.RemotePayload = nil
	}
	require.NoError(t, f.registry.Record(ctx, c))
	require.NoError(t, f.queue.Park(ctx, ops[0], c.ID))
	f.queue.EndDrain()
	return c
}

func TestRegistry_ResolveLocal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.parkedConflict(t, false)

	list, err := f.registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	resolved, err := f.registry.Resolve(ctx, c.ID, models.ResolveLocal)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)

	list, err = f.registry.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	// операция снова готова к отправке и помечена как принудительная
	ops, err := f.queue.DequeueAll(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.True(t, ops[0].Force)
	assert.Equal(t, models.OpUpdate, ops[0].Kind)
	assert.JSONEq(t, string(c.LocalPayload), string(ops[0].Payload))
	f.queue.EndDrain()
}

func TestRegistry_ResolveRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.parkedConflict(t, false)

	_, err := f.registry.Resolve(ctx, c.ID, models.ResolveRemote)
	require.NoError(t, err)

	rec, err := f.store.Get(ctx, models.EntityShoe, "s1")
	require.NoError(t, err)
	assert.False(t, rec.IsDirty)
	assert.Equal(t, int64(4), rec.RemoteVersion)
	assert.JSONEq(t, string(c.RemotePayload), string(rec.Payload))

	ops, err := f.queue.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)

	_, err = f.registry.Get(ctx, c.ID)
	assert.ErrorIs(t, err, ErrConflictNotFound)
}

func TestRegistry_ResolveRemoteDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.parkedConflict(t, true)

	_, err := f.registry.Resolve(ctx, c.ID, models.ResolveRemote)
	require.NoError(t, err)

	_, err = f.store.Get(ctx, models.EntityShoe, "s1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestRegistry_ResolveLocalAfterQueueCleared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.parkedConflict(t, false)
	require.NoError(t, f.queue.Clear(ctx))

	_, err := f.registry.Resolve(ctx, c.ID, models.ResolveLocal)
	require.NoError(t, err)

	ops, err := f.queue.List(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.True(t, ops[0].Force)
	assert.Equal(t, models.OpUpdate, ops[0].Kind)
}

func TestRegistry_ResolveErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.Resolve(ctx, "missing", models.ResolveLocal)
	assert.ErrorIs(t, err, ErrConflictNotFound)

	c := f.parkedConflict(t, false)
	_, err = f.registry.Resolve(ctx, c.ID, "merge")
	assert.ErrorIs(t, err, ErrInvalidResolution)

	// неверный выбор не трогает реестр
	got, err := f.registry.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.Resolved)
	assert.WithinDuration(t, time.Now(), got.DetectedAt, time.Minute)
}
