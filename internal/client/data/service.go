// Package data реализует прикладные операции над кроссовками, коллекциями и пробежками.
// Все изменения проходят через локальное хранилище с пометкой для синхронизации.
package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/client/store"
	"github.com/iudanet/shoetrack/internal/models"
)

var (
	// ErrShoeInUse кроссовки нельзя удалить, пока на них записаны пробежки
	ErrShoeInUse = errors.New("shoe has logged runs")
	// ErrShoeRetired на списанные кроссовки нельзя записать пробежку
	ErrShoeRetired = errors.New("shoe is retired")
)

//go:generate moq -out service_mock.go . Service

// Service определяет интерфейс для клиентского data сервиса
type Service interface {
	AddCollection(ctx context.Context, c *models.Collection) (*models.Collection, error)
	ArchiveCollection(ctx context.Context, id string) (*models.Collection, error)
	ListCollections(ctx context.Context, includeArchived bool) ([]*models.Collection, error)

	AddShoe(ctx context.Context, shoe *models.Shoe) (*models.Shoe, error)
	GetShoe(ctx context.Context, id string) (*models.Shoe, error)
	RetireShoe(ctx context.Context, id string) (*models.Shoe, error)
	DeleteShoe(ctx context.Context, id string) error
	ListShoes(ctx context.Context, collectionID string, includeRetired bool) ([]*models.Shoe, error)

	LogRun(ctx context.Context, run *models.Run) (*models.Run, error)
	DeleteRun(ctx context.Context, id string) error
	ListRuns(ctx context.Context, shoeID string) ([]*models.Run, error)
}

// EntityStore часть локального хранилища, нужная сервису
type EntityStore interface {
	Get(ctx context.Context, t models.EntityType, id string) (*models.Record, error)
	List(ctx context.Context, t models.EntityType, filters ...store.Filter) ([]*models.Record, error)
	Put(ctx context.Context, e models.Entity, markDirty bool) (*models.Record, error)
	Delete(ctx context.Context, t models.EntityType, id string, markDirty bool) error
	Apply(ctx context.Context, markDirty bool, changes ...store.Change) ([]*models.Record, error)
}

type service struct {
	store  EntityStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new data service
func NewService(st EntityStore, logger *slog.Logger) Service {
	return &service{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// get читает и разбирает сущность
func get[T any](ctx context.Context, st EntityStore, t models.EntityType, id string) (*T, error) {
	rec, err := st.Get(ctx, t, id)
	if err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s %q: %w", t, id, err)
		}
		return nil, fmt.Errorf("failed to get %s: %w", t, err)
	}
	return models.DecodeRecord[T](rec)
}

// list читает и разбирает все сущности типа, прошедшие фильтр
func list[T any](ctx context.Context, st EntityStore, t models.EntityType, match func(v *T) bool) ([]*T, error) {
	recs, err := st.List(ctx, t)
	if err != nil {
		return nil, err
	}
	result := make([]*T, 0, len(recs))
	for _, rec := range recs {
		v, err := models.DecodeRecord[T](rec)
		if err != nil {
			return nil, err
		}
		if match == nil || match(v) {
			result = append(result, v)
		}
	}
	return result, nil
}

// AddCollection создает коллекцию
func (s *service) AddCollection(ctx context.Context, c *models.Collection) (*models.Collection, error) {
	now := s.now()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := s.store.Put(ctx, c, true); err != nil {
		return nil, fmt.Errorf("failed to save collection: %w", err)
	}
	s.logger.Debug("Collection added", "id", c.ID, "name", c.Name)
	return c, nil
}

// ArchiveCollection скрывает коллекцию из выбора, кроссовки в ней остаются
func (s *service) ArchiveCollection(ctx context.Context, id string) (*models.Collection, error) {
	c, err := get[models.Collection](ctx, s.store, models.EntityCollection, id)
	if err != nil {
		return nil, err
	}
	if c.Archived {
		return c, nil
	}

	c.Archived = true
	c.UpdatedAt = s.now()
	if _, err := s.store.Put(ctx, c, true); err != nil {
		return nil, fmt.Errorf("failed to archive collection: %w", err)
	}
	return c, nil
}

// ListCollections коллекции по имени
func (s *service) ListCollections(ctx context.Context, includeArchived bool) ([]*models.Collection, error) {
	cols, err := list(ctx, s.store, models.EntityCollection, func(c *models.Collection) bool {
		return includeArchived || !c.Archived
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(cols, func(i, j int) bool {
		return strings.ToLower(cols[i].Name) < strings.ToLower(cols[j].Name)
	})
	return cols, nil
}

// AddShoe создает кроссовки; коллекция, если указана, должна существовать
func (s *service) AddShoe(ctx context.Context, shoe *models.Shoe) (*models.Shoe, error) {
	if shoe.CollectionID != "" {
		if _, err := get[models.Collection](ctx, s.store, models.EntityCollection, shoe.CollectionID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	if shoe.ID == "" {
		shoe.ID = uuid.New().String()
	}
	shoe.CreatedAt = now
	shoe.UpdatedAt = now

	if _, err := s.store.Put(ctx, shoe, true); err != nil {
		return nil, fmt.Errorf("failed to save shoe: %w", err)
	}
	s.logger.Debug("Shoe added", "id", shoe.ID, "name", shoe.Name)
	return shoe, nil
}

// GetShoe возвращает кроссовки по id
func (s *service) GetShoe(ctx context.Context, id string) (*models.Shoe, error) {
	return get[models.Shoe](ctx, s.store, models.EntityShoe, id)
}

// RetireShoe списывает кроссовки
func (s *service) RetireShoe(ctx context.Context, id string) (*models.Shoe, error) {
	shoe, err := s.GetShoe(ctx, id)
	if err != nil {
		return nil, err
	}
	if shoe.Retired {
		return shoe, nil
	}

	now := s.now()
	shoe.Retired = true
	shoe.RetiredAt = &now
	shoe.UpdatedAt = now
	if _, err := s.store.Put(ctx, shoe, true); err != nil {
		return nil, fmt.Errorf("failed to retire shoe: %w", err)
	}
	s.logger.Info("Shoe retired", "id", id, "mileage", shoe.CurrentMileage)
	return shoe, nil
}

// DeleteShoe удаляет кроссовки без пробежек
func (s *service) DeleteShoe(ctx context.Context, id string) error {
	if _, err := s.GetShoe(ctx, id); err != nil {
		return err
	}

	runs, err := s.ListRuns(ctx, id)
	if err != nil {
		return err
	}
	if len(runs) > 0 {
		return fmt.Errorf("%w: %d runs reference shoe %q", ErrShoeInUse, len(runs), id)
	}

	if err := s.store.Delete(ctx, models.EntityShoe, id, true); err != nil {
		return fmt.Errorf("failed to delete shoe: %w", err)
	}
	return nil
}

// ListShoes кроссовки коллекции (пустой id: все), по убыванию пробега
func (s *service) ListShoes(ctx context.Context, collectionID string, includeRetired bool) ([]*models.Shoe, error) {
	shoes, err := list(ctx, s.store, models.EntityShoe, func(sh *models.Shoe) bool {
		if collectionID != "" && sh.CollectionID != collectionID {
			return false
		}
		return includeRetired || !sh.Retired
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(shoes, func(i, j int) bool {
		if shoes[i].CurrentMileage != shoes[j].CurrentMileage {
			return shoes[i].CurrentMileage > shoes[j].CurrentMileage
		}
		return shoes[i].Name < shoes[j].Name
	})
	return shoes, nil
}

// LogRun записывает пробежку и добавляет её дистанцию к пробегу кроссовок.
// Обе записи сохраняются одной транзакцией и попадают в очередь: сначала
// пробежка, затем кроссовки.
func (s *service) LogRun(ctx context.Context, run *models.Run) (*models.Run, error) {
	var shoe *models.Shoe
	if run.ShoeID != "" {
		var err error
		if shoe, err = s.GetShoe(ctx, run.ShoeID); err != nil {
			return nil, err
		}
		if shoe.Retired {
			return nil, fmt.Errorf("%w: %q", ErrShoeRetired, shoe.Name)
		}
	}

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Date.IsZero() {
		run.Date = s.now()
	}
	if run.RunType == "" {
		run.RunType = models.RunEasy
	}
	run.CreatedAt = s.now()

	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run: %w", err)
	}

	changes := []store.Change{store.Save(run)}
	if shoe != nil {
		s.adjustMileage(shoe, run.Distance)
		changes = append(changes, store.Save(shoe))
	}
	if _, err := s.store.Apply(ctx, true, changes...); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	s.logger.Debug("Run logged", "id", run.ID, "shoe_id", run.ShoeID, "distance", run.Distance)
	return run, nil
}

// DeleteRun удаляет пробежку и вычитает её дистанцию из пробега кроссовок
// в той же транзакции
func (s *service) DeleteRun(ctx context.Context, id string) error {
	run, err := get[models.Run](ctx, s.store, models.EntityRun, id)
	if err != nil {
		return err
	}

	changes := []store.Change{store.Remove(models.EntityRun, id)}
	if run.ShoeID != "" {
		shoe, err := s.GetShoe(ctx, run.ShoeID)
		switch {
		case errors.Is(err, storage.ErrRecordNotFound):
		case err != nil:
			return err
		default:
			s.adjustMileage(shoe, -run.Distance)
			changes = append(changes, store.Save(shoe))
		}
	}

	if _, err := s.store.Apply(ctx, true, changes...); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// ListRuns пробежки кроссовок (пустой id: все), новые первыми
func (s *service) ListRuns(ctx context.Context, shoeID string) ([]*models.Run, error) {
	runs, err := list(ctx, s.store, models.EntityRun, func(r *models.Run) bool {
		return shoeID == "" || r.ShoeID == shoeID
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Date.After(runs[j].Date)
	})
	return runs, nil
}

func (s *service) adjustMileage(shoe *models.Shoe, delta float64) {
	// пробег хранится с точностью до метра
	mileage := math.Round((shoe.CurrentMileage+delta)*1000) / 1000
	shoe.CurrentMileage = math.Max(mileage, 0)
	shoe.UpdatedAt = s.now()
}
