package storage

import (
	"context"

	"github.com/iudanet/shoetrack/internal/models"
)

// RecordStorage низкоуровневое хранилище конвертов синхронизации по типам сущностей.
// Не ставит ничего в очередь: это делает store.Store.
type RecordStorage interface {
	// GetRecord returns ErrRecordNotFound if record doesn't exist
	GetRecord(ctx context.Context, t models.EntityType, id string) (*models.Record, error)

	// ListRecords returns all records of the type ordered by id
	ListRecords(ctx context.Context, t models.EntityType) ([]*models.Record, error)

	// SaveRecord stores or replaces record. Returns ErrQuotaExceeded when database is full
	SaveRecord(ctx context.Context, rec *models.Record) error

	// DeleteRecord removes record; deleting missing record is not an error
	DeleteRecord(ctx context.Context, t models.EntityType, id string) error

	// RecordSizes returns count and stored bytes per type
	RecordSizes(ctx context.Context) (map[models.EntityType]models.TypeStats, error)

	// CommitChanges saves or deletes records and appends their operations
	// in one transaction: on error nothing is written
	CommitChanges(ctx context.Context, changes []Change) error
}

// Change изменение одной записи в CommitChanges
type Change struct {
	Type   models.EntityType
	ID     string
	Record *models.Record    // nil: запись удаляется
	Op     *models.Operation // nil: в очередь ничего не ставится; Seq назначается при записи
}
