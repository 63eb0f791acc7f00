package storage

import (
	"context"
	"encoding/json"
	"time"
)

// Record версионированная запись пользователя.
// Version растёт на единицу при каждой записи, удаление оставляет tombstone.
type Record struct {
	UpdatedAt time.Time
	UserID    string
	Type      string
	ID        string
	Payload   json.RawMessage
	Version   int64
	Deleted   bool
}

// RecordStorage defines interface for versioned record persistence.
// Все операции ограничены записями одного пользователя.
type RecordStorage interface {
	// GetRecord returns live record or ErrRecordNotFound
	GetRecord(ctx context.Context, userID, recordType, id string) (*Record, error)

	// ListRecords returns live records of the type ordered by id
	ListRecords(ctx context.Context, userID, recordType string) ([]Record, error)

	// CreateRecord inserts version 1 or revives a tombstone with the next version.
	// Returns *ConflictError wrapping ErrRecordExists if a live record exists.
	CreateRecord(ctx context.Context, userID, recordType, id string, payload json.RawMessage) (*Record, error)

	// UpdateRecord writes payload when ifVersion matches; ifVersion = 0 is an upsert.
	// Returns ErrRecordNotFound for a conditional update of a missing record
	// and *ConflictError wrapping ErrVersionMismatch on mismatch.
	UpdateRecord(ctx context.Context, userID, recordType, id string, payload json.RawMessage, ifVersion int64) (*Record, error)

	// DeleteRecord turns the record into a tombstone when ifVersion matches (0 = any)
	DeleteRecord(ctx context.Context, userID, recordType, id string, ifVersion int64) error
}
