package storage

import (
	"context"
	"time"
)

// Ключи метаданных
const (
	MetaLastSync = "last_sync"
	MetaLastPull = "last_pull"
)

// MetadataStorage defines interface for storing client metadata
type MetadataStorage interface {
	// SaveTime saves a timestamp under the given metadata key
	SaveTime(ctx context.Context, key string, at time.Time) error

	// GetTime returns zero time if the key was never saved
	GetTime(ctx context.Context, key string) (time.Time, error)
}
