package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shoetrack/internal/client/queue"
	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/client/storage/boltdb"
	"github.com/iudanet/shoetrack/internal/models"
	"github.com/iudanet/shoetrack/internal/validation"
)

func createTestStore(t *testing.T) (*Store, *queue.Queue) {
	t.Helper()
	st, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := queue.New(st, logger, queue.DefaultPolicy())
	return New(st, q, logger), q
}

func TestStore_PutCreateThenUpdate(t *testing.T) {
	s, q := createTestStore(t)
	ctx := context.Background()

	rec, err := s.Put(ctx, &models.Shoe{ID: "s1", Name: "Pegasus", MaxMileage: 800}, true)
	require.NoError(t, err)
	assert.True(t, rec.IsDirty)
	assert.Equal(t, int64(1), rec.LocalVersion)

	_, err = s.Put(ctx, &models.Shoe{ID: "s1", Name: "Pegasus 40", MaxMileage: 800}, true)
	require.NoError(t, err)

	ops, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, models.OpCreate, ops[0].Kind)
	assert.Equal(t, models.OpUpdate, ops[1].Kind)

	got, err := s.Get(ctx, models.EntityShoe, "s1")
	require.NoError(t, err)
	assert.True(t, got.IsDirty)
	assert.Equal(t, int64(2), got.LocalVersion)

	shoe, err := models.DecodeRecord[models.Shoe](got)
	require.NoError(t, err)
	assert.Equal(t, "Pegasus 40", shoe.Name)
}

func TestStore_PutValidationRejectsBeforeEnqueue(t *testing.T) {
	s, q := createTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, &models.Shoe{ID: "s1", Name: "", MaxMileage: 800}, true)
	assert.ErrorIs(t, err, validation.ErrInvalid)

	_, err = s.Get(ctx, models.EntityShoe, "s1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	ops, err := q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestStore_PutWithoutDirtyDoesNotEnqueue(t *testing.T) {
	s, q := createTestStore(t)
	ctx := context.Background()

	rec, err := s.Put(ctx, &models.Collection{ID: "c1", Name: "Road"}, false)
	require.NoError(t, err)
	assert.False(t, rec.IsDirty)

	ops, err := q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

// Длина очереди равна числу put/delete с markDirty
func TestStore_QueueLengthMatchesDirtyCalls(t *testing.T) {
	s, q := createTestStore(t)
	ctx := context.Background()

	calls := []func() error{
		func() error { _, err := s.Put(ctx, &models.Shoe{ID: "s1", Name: "A", MaxMileage: 500}, true); return err },
		func() error { _, err := s.Put(ctx, &models.Shoe{ID: "s2", Name: "B", MaxMileage: 500}, true); return err },
		func() error { _, err := s.Put(ctx, &models.Shoe{ID: "s1", Name: "A2", MaxMileage: 500}, true); return err },
		func() error { return s.Delete(ctx, models.EntityShoe, "s2", true) },
		func() error { return s.Delete(ctx, models.EntityShoe, "missing", true) },
		func() error { _, err := s.Put(ctx, &models.Shoe{ID: "s3", Name: "C", MaxMileage: 500}, false); return err },
	}
	for _, call := range calls {
		require.NoError(t, call())
	}

	ops, err := q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ops, 5)
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, models.EntityRun, "nope", false))

	_, err := s.Put(ctx, &models.Collection{ID: "c1", Name: "Road"}, false)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, models.EntityCollection, "c1", false))
	require.NoError(t, s.Delete(ctx, models.EntityCollection, "c1", false))

	_, err = s.Get(ctx, models.EntityCollection, "c1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestStore_DeleteCarriesRemoteVersion(t *testing.T) {
	s, q := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ApplyRemote(ctx, models.EntityShoe, "s1", []byte(`{"id":"s1","name":"A","max_mileage":500}`), 7, time.Now()))
	require.NoError(t, s.Delete(ctx, models.EntityShoe, "s1", true))

	ops, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, int64(7), ops[0].BaseVersion)
}

func TestStore_ApplyRemoteAndMarkSynced(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.ApplyRemote(ctx, models.EntityShoe, "s1", []byte(`{"id":"s1","name":"Remote","max_mileage":500}`), 3, at))

	rec, err := s.Get(ctx, models.EntityShoe, "s1")
	require.NoError(t, err)
	assert.False(t, rec.IsDirty)
	assert.Equal(t, int64(3), rec.RemoteVersion)
	require.NotNil(t, rec.LastSyncedAt)
	assert.True(t, at.Equal(*rec.LastSyncedAt))

	require.NoError(t, s.MarkSynced(ctx, models.EntityShoe, "s1", 4, at.Add(time.Minute)))
	rec, err = s.Get(ctx, models.EntityShoe, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.RemoteVersion)

	// локально удалённая запись: MarkSynced ничего не делает
	assert.NoError(t, s.MarkSynced(ctx, models.EntityShoe, "gone", 1, at))
}

func TestStore_ListWithFilters(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, &models.Shoe{ID: "s1", Name: "A", MaxMileage: 500, CollectionID: "road"}, true)
	require.NoError(t, err)
	_, err = s.Put(ctx, &models.Shoe{ID: "s2", Name: "B", MaxMileage: 500, CollectionID: "trail"}, false)
	require.NoError(t, err)

	road, err := s.List(ctx, models.EntityShoe, Match(func(sh *models.Shoe) bool { return sh.CollectionID == "road" }))
	require.NoError(t, err)
	require.Len(t, road, 1)
	assert.Equal(t, "s1", road[0].ID)

	dirty, err := s.List(ctx, models.EntityShoe, DirtyOnly)
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, "s1", dirty[0].ID)

	all, err := s.List(ctx, models.EntityShoe)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_Stats(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, &models.Shoe{ID: "s1", Name: "A", MaxMileage: 500}, true)
	require.NoError(t, err)
	_, err = s.Put(ctx, &models.Collection{ID: "c1", Name: "Road"}, false)
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCount)
	assert.Equal(t, 1, stats.TotalDirty)
	assert.Equal(t, 1, stats.Types[models.EntityShoe].Dirty)
	assert.Equal(t, 0, stats.Types[models.EntityCollection].Dirty)
	assert.Greater(t, stats.TotalBytes, int64(0))
}

// oversizedOps раздувает каждую операцию, чтобы она не помещалась в лимит БД
type oversizedOps struct {
	*queue.Queue
}

func (o oversizedOps) Prepare(op *models.Operation) error {
	if err := o.Queue.Prepare(op); err != nil {
		return err
	}
	op.LastError = strings.Repeat("x", 2<<20)
	return nil
}

func TestStore_FailedEnqueueLeavesRecordUntouched(t *testing.T) {
	ctx := context.Background()
	st, err := boltdb.New(ctx, filepath.Join(t.TempDir(), "store.db"), boltdb.WithMaxBytes(1<<20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := queue.New(st, logger, queue.DefaultPolicy())
	s := New(st, oversizedOps{q}, logger)

	require.NoError(t, s.ApplyRemote(ctx, models.EntityShoe, "s1", []byte(`{"id":"s1","name":"Remote","max_mileage":500}`), 3, time.Now()))

	_, err = s.Put(ctx, &models.Shoe{ID: "s1", Name: "Changed", MaxMileage: 500}, true)
	require.ErrorIs(t, err, storage.ErrQuotaExceeded)

	rec, err := s.Get(ctx, models.EntityShoe, "s1")
	require.NoError(t, err)
	assert.False(t, rec.IsDirty)
	assert.Equal(t, int64(3), rec.RemoteVersion)
	shoe, err := models.DecodeRecord[models.Shoe](rec)
	require.NoError(t, err)
	assert.Equal(t, "Remote", shoe.Name)

	// удаление без операции в очереди тоже не применяется
	require.ErrorIs(t, s.Delete(ctx, models.EntityShoe, "s1", true), storage.ErrQuotaExceeded)
	_, err = s.Get(ctx, models.EntityShoe, "s1")
	require.NoError(t, err)

	ops, err := q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestStore_ApplyIsOneBatch(t *testing.T) {
	s, q := createTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, &models.Shoe{ID: "s1", Name: "A", MaxMileage: 500}, true)
	require.NoError(t, err)

	recs, err := s.Apply(ctx, true,
		Save(&models.Shoe{ID: "s2", Name: "B", MaxMileage: 500}),
		Remove(models.EntityShoe, "s1"),
	)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].IsDirty)
	assert.Nil(t, recs[1])

	ops, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, "s2", ops[1].EntityID)
	assert.Equal(t, models.OpDelete, ops[2].Kind)

	// некорректная сущность отклоняет весь пакет
	_, err = s.Apply(ctx, true,
		Save(&models.Shoe{ID: "s3", Name: "C", MaxMileage: 500}),
		Save(&models.Shoe{ID: "s4", Name: "", MaxMileage: 500}),
	)
	assert.ErrorIs(t, err, validation.ErrInvalid)
	_, err = s.Get(ctx, models.EntityShoe, "s3")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	_, err = s.Apply(ctx, true, Save(&models.Shoe{ID: "s2", Name: "B", MaxMileage: 500}), Remove(models.EntityShoe, "s2"))
	assert.Error(t, err)

	ops, err = q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ops, 3)
}
