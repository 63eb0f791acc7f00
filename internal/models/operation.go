package models

import (
	"encoding/json"
	"time"
)

// OperationKind вид отложенной мутации
type OperationKind string

const (
	OpCreate OperationKind = "create"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
)

// Priority корзина приоритета в статусе очереди
type Priority string

const (
	PriorityImmediate  Priority = "immediate"
	PriorityBackground Priority = "background"
	PriorityDeferred   Priority = "deferred"
)

// Operation операция в очереди синхронизации.
// Seq задаёт порядок FIFO и присваивается хранилищем при постановке в очередь.
type Operation struct {
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	NextAttemptAt time.Time       `json:"next_attempt_at,omitempty"`
	ID            string          `json:"id"`
	EntityType    EntityType      `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	Kind          OperationKind   `json:"kind"`
	LastError     string          `json:"last_error,omitempty"`
	ConflictID    string          `json:"conflict_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Seq           uint64          `json:"seq"`
	BaseVersion   int64           `json:"base_version"` // версия на сервере, от которой сделана локальная правка
	RetryCount    int             `json:"retry_count"`
	Force         bool            `json:"force,omitempty"` // одна отправка без проверки расхождения
	Parked        bool            `json:"parked,omitempty"`
	Exhausted     bool            `json:"exhausted,omitempty"`
}

// Key ключ сущности, к которой относится операция
func (o *Operation) Key() string {
	return EntityKey(o.EntityType, o.EntityID)
}

// Ready операция может быть отправлена в текущем проходе
func (o *Operation) Ready(now time.Time) bool {
	if o.Parked || o.Exhausted {
		return false
	}
	return !o.NextAttemptAt.After(now)
}

// Priority определяет корзину для PeekStatus
func (o *Operation) Priority(now time.Time) Priority {
	if o.RetryCount > 0 || o.Exhausted || o.NextAttemptAt.After(now) {
		return PriorityDeferred
	}
	if o.Kind == OpUpdate {
		return PriorityBackground
	}
	return PriorityImmediate
}
