package models

import (
	"encoding/json"
	"time"
)

// Resolution выбор пользователя при разрешении конфликта
type Resolution string

const (
	ResolveLocal  Resolution = "local"
	ResolveRemote Resolution = "remote"
)

// Conflict расхождение между локальной операцией и независимо изменённой записью на сервере
type Conflict struct {
	DetectedAt    time.Time       `json:"detected_at"`
	ID            string          `json:"id"`
	EntityType    EntityType      `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	OperationID   string          `json:"operation_id"`
	Kind          OperationKind   `json:"kind"`
	LocalPayload  json.RawMessage `json:"local_payload,omitempty"`
	RemotePayload json.RawMessage `json:"remote_payload,omitempty"`
	RemoteVersion int64           `json:"remote_version"`
	RemoteDeleted bool            `json:"remote_deleted"`
	Resolved      bool            `json:"resolved"`
}

// Key ключ сущности конфликта
func (c *Conflict) Key() string {
	return EntityKey(c.EntityType, c.EntityID)
}

// ErrorClass класс ошибки в журнале синхронизации
type ErrorClass string

const (
	ErrorTransient ErrorClass = "transient"
	ErrorAuth      ErrorClass = "auth"
	ErrorRejected  ErrorClass = "rejected"
	ErrorStorage   ErrorClass = "storage"
)

// SyncError запись журнала ошибок синхронизации
type SyncError struct {
	OccurredAt  time.Time     `json:"occurred_at"`
	ID          string        `json:"id"`
	OperationID string        `json:"operation_id,omitempty"`
	EntityType  EntityType    `json:"entity_type,omitempty"`
	EntityID    string        `json:"entity_id,omitempty"`
	Kind        OperationKind `json:"kind,omitempty"`
	Class       ErrorClass    `json:"class"`
	Message     string        `json:"message"`
	Attempt     int           `json:"attempt"`
}
