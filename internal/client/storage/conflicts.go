package storage

import (
	"context"

	"github.com/iudanet/shoetrack/internal/models"
)

// ConflictStorage хранилище записей о конфликтах
type ConflictStorage interface {
	SaveConflict(ctx context.Context, c *models.Conflict) error
	// GetConflict returns ErrConflictNotFound if conflict doesn't exist
	GetConflict(ctx context.Context, id string) (*models.Conflict, error)
	// ListConflicts returns conflicts ordered by detection time
	ListConflicts(ctx context.Context) ([]*models.Conflict, error)
	DeleteConflict(ctx context.Context, id string) error
}

// ErrorLogStorage журнал ошибок синхронизации ограниченного размера
type ErrorLogStorage interface {
	// AppendSyncError appends entry, evicting the oldest ones above the cap
	AppendSyncError(ctx context.Context, e *models.SyncError) error
	ListSyncErrors(ctx context.Context) ([]*models.SyncError, error)
	ClearSyncErrors(ctx context.Context) error
}
