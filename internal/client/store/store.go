// Package store реализует локальное хранилище сущностей (Local Store).
//
// Store единственный владелец закэшированных копий. Запись с markDirty
// дополнительно ставит операцию в очередь синхронизации в той же транзакции
// bbolt; это единственная точка связи между хранилищем и очередью. Флаг
// IsDirty не хранится, а вычисляется по наличию операции для сущности в очереди.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/models"
)

//go:generate moq -out enqueuer_mock.go . Enqueuer

// Enqueuer часть очереди синхронизации, нужная хранилищу. Prepare только
// проверяет и заполняет операцию: записывает её само хранилище.
type Enqueuer interface {
	Prepare(op *models.Operation) error
	PendingKeys(ctx context.Context) (map[string]struct{}, error)
}

// Change изменение одной сущности для Apply
type Change struct {
	entity models.Entity
	t      models.EntityType
	id     string
}

// Save сохраняет сущность (upsert по id)
func Save(e models.Entity) Change {
	return Change{entity: e, t: e.EntityType(), id: e.EntityID()}
}

// Remove удаляет сущность
func Remove(t models.EntityType, id string) Change {
	return Change{t: t, id: id}
}

// Filter отбирает записи в List
type Filter func(rec *models.Record) bool

// Stats статистика хранилища
type Stats struct {
	Types      map[models.EntityType]models.TypeStats `json:"types"`
	TotalCount int                                    `json:"total_count"`
	TotalDirty int                                    `json:"total_dirty"`
	TotalBytes int64                                  `json:"total_bytes"`
}

// Store локальное хранилище сущностей
type Store struct {
	records storage.RecordStorage
	queue   Enqueuer
	logger  *slog.Logger
	now     func() time.Time
}

// New создает локальное хранилище
func New(records storage.RecordStorage, queue Enqueuer, logger *slog.Logger) *Store {
	return &Store{
		records: records,
		queue:   queue,
		logger:  logger,
		now:     time.Now,
	}
}

// Get возвращает запись с вычисленным IsDirty
func (s *Store) Get(ctx context.Context, t models.EntityType, id string) (*models.Record, error) {
	rec, err := s.records.GetRecord(ctx, t, id)
	if err != nil {
		return nil, err
	}

	keys, err := s.queue.PendingKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending operations: %w", err)
	}
	_, rec.IsDirty = keys[rec.Key()]
	return rec, nil
}

// List возвращает записи типа, прошедшие все фильтры
func (s *Store) List(ctx context.Context, t models.EntityType, filters ...Filter) ([]*models.Record, error) {
	all, err := s.records.ListRecords(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", t, err)
	}

	keys, err := s.queue.PendingKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending operations: %w", err)
	}

	result := make([]*models.Record, 0, len(all))
next:
	for _, rec := range all {
		_, rec.IsDirty = keys[rec.Key()]
		for _, f := range filters {
			if !f(rec) {
				continue next
			}
		}
		result = append(result, rec)
	}
	return result, nil
}

// Put сохраняет сущность (upsert по id). Некорректная сущность отклоняется
// до записи и постановки в очередь.
func (s *Store) Put(ctx context.Context, e models.Entity, markDirty bool) (*models.Record, error) {
	recs, err := s.Apply(ctx, markDirty, Save(e))
	if err != nil {
		return nil, err
	}
	return recs[0], nil
}

// Delete удаляет сущность. Удаление отсутствующей записи не ошибка; с markDirty
// операция удаления ставится в очередь в любом случае.
func (s *Store) Delete(ctx context.Context, t models.EntityType, id string, markDirty bool) error {
	_, err := s.Apply(ctx, markDirty, Remove(t, id))
	return err
}

// Apply записывает изменения и, с markDirty, их операции одной транзакцией:
// при ошибке не меняется ни запись, ни очередь. Операции встают в очередь в
// порядке changes. Каждая сущность встречается в пакете не больше одного раза.
// Возвращает записи в порядке changes, nil для удалений.
func (s *Store) Apply(ctx context.Context, markDirty bool, changes ...Change) ([]*models.Record, error) {
	batch := make([]storage.Change, 0, len(changes))
	records := make([]*models.Record, len(changes))
	keys := make([]string, 0, len(changes))
	for i, c := range changes {
		key := models.EntityKey(c.t, c.id)
		if slices.Contains(keys, key) {
			return nil, fmt.Errorf("%s changed twice in one batch", key)
		}
		keys = append(keys, key)

		sc, err := s.prepare(ctx, c, markDirty)
		if err != nil {
			return nil, err
		}
		records[i] = sc.Record
		batch = append(batch, sc)
	}

	if err := s.records.CommitChanges(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", strings.Join(keys, ", "), err)
	}

	for i, sc := range batch {
		if sc.Record == nil {
			s.logger.Debug("Record deleted", "entity", keys[i], "dirty", markDirty)
			continue
		}
		sc.Record.IsDirty = markDirty
		s.logger.Debug("Record saved", "entity", keys[i], "local_version", sc.Record.LocalVersion, "dirty", markDirty)
	}
	return records, nil
}

// prepare строит запись и операцию очереди для одного изменения
func (s *Store) prepare(ctx context.Context, c Change, markDirty bool) (storage.Change, error) {
	sc := storage.Change{Type: c.t, ID: c.id}

	var payload []byte
	if c.entity != nil {
		if err := c.entity.Validate(); err != nil {
			return sc, fmt.Errorf("invalid %s: %w", c.t, err)
		}
		var err error
		if payload, err = json.Marshal(c.entity); err != nil {
			return sc, fmt.Errorf("failed to marshal %s: %w", c.t, err)
		}
	}

	rec, err := s.records.GetRecord(ctx, c.t, c.id)
	switch {
	case errors.Is(err, storage.ErrRecordNotFound):
		rec = nil
	case err != nil:
		return sc, fmt.Errorf("failed to read %s/%s: %w", c.t, c.id, err)
	}

	op := &models.Operation{EntityType: c.t, EntityID: c.id, Kind: models.OpDelete}
	if rec != nil {
		op.BaseVersion = rec.RemoteVersion
	}

	if c.entity != nil {
		op.Kind = models.OpUpdate
		if rec == nil {
			op.Kind = models.OpCreate
			rec = &models.Record{Type: c.t, ID: c.id}
		}
		rec.Payload = payload
		rec.LocalVersion++
		rec.UpdatedAt = s.now()
		op.Payload = payload
		sc.Record = rec
	}

	if markDirty {
		if err := s.queue.Prepare(op); err != nil {
			return sc, fmt.Errorf("failed to enqueue %s of %s: %w", op.Kind, op.Key(), err)
		}
		sc.Op = op
	}
	return sc, nil
}

// ApplyRemote записывает подтверждённое сервером состояние, не трогая очередь
func (s *Store) ApplyRemote(ctx context.Context, t models.EntityType, id string, payload []byte, version int64, at time.Time) error {
	rec, err := s.records.GetRecord(ctx, t, id)
	switch {
	case errors.Is(err, storage.ErrRecordNotFound):
		rec = &models.Record{Type: t, ID: id}
	case err != nil:
		return fmt.Errorf("failed to read %s/%s: %w", t, id, err)
	}

	rec.Payload = append(json.RawMessage(nil), payload...)
	rec.RemoteVersion = version
	rec.LocalVersion++
	rec.UpdatedAt = at
	rec.LastSyncedAt = &at

	if err := s.records.SaveRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to apply remote %s: %w", rec.Key(), err)
	}
	return nil
}

// MarkSynced фиксирует успешную отправку: версия сервера и время синхронизации.
// Если запись уже удалена локально (в очереди есть delete), ничего не делает.
func (s *Store) MarkSynced(ctx context.Context, t models.EntityType, id string, version int64, at time.Time) error {
	rec, err := s.records.GetRecord(ctx, t, id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s/%s: %w", t, id, err)
	}

	rec.RemoteVersion = version
	rec.LastSyncedAt = &at
	if err := s.records.SaveRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to mark %s synced: %w", rec.Key(), err)
	}
	return nil
}

// Stats количество записей, грязных записей и байт по типам
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	sizes, err := s.records.RecordSizes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute record sizes: %w", err)
	}

	keys, err := s.queue.PendingKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending operations: %w", err)
	}

	stats := &Stats{Types: make(map[models.EntityType]models.TypeStats, len(sizes))}
	for _, t := range models.EntityTypes {
		st := sizes[t]
		for key := range keys {
			if strings.HasPrefix(key, string(t)+"/") {
				st.Dirty++
			}
		}
		stats.Types[t] = st
		stats.TotalCount += st.Count
		stats.TotalDirty += st.Dirty
		stats.TotalBytes += st.Bytes
	}
	return stats, nil
}

// Match строит фильтр по разобранной сущности
func Match[T any](match func(v *T) bool) Filter {
	return func(rec *models.Record) bool {
		v, err := models.DecodeRecord[T](rec)
		return err == nil && match(v)
	}
}

// DirtyOnly оставляет только записи с неотправленными изменениями
func DirtyOnly(rec *models.Record) bool {
	return rec.IsDirty
}
