package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record конверт синхронизации, в котором хранится каждая закэшированная сущность.
//
// IsDirty не сохраняется в хранилище: запись считается "грязной", пока в очереди
// синхронизации есть операция для её id. Заполняется локальным хранилищем при чтении.
type Record struct {
	UpdatedAt     time.Time       `json:"updated_at"`
	LastSyncedAt  *time.Time      `json:"last_synced_at,omitempty"`
	Type          EntityType      `json:"type"`
	ID            string          `json:"id"`
	Payload       json.RawMessage `json:"payload"`
	LocalVersion  int64           `json:"local_version"`
	RemoteVersion int64           `json:"remote_version"` // 0 пока запись не подтверждена сервером
	IsDirty       bool            `json:"-"`
}

// Key ключ сущности вида "shoe/s1"
func (r *Record) Key() string {
	return EntityKey(r.Type, r.ID)
}

// EntityKey ключ сущности, общий для записей, операций и конфликтов
func EntityKey(t EntityType, id string) string {
	return string(t) + "/" + id
}

// Decode разбирает полезную нагрузку записи в конкретную сущность
func (r *Record) Decode(v any) error {
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", r.Key(), err)
	}
	return nil
}

// DecodeRecord типизированная обертка над Record.Decode
func DecodeRecord[T any](r *Record) (*T, error) {
	var v T
	if err := r.Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// NewEntity возвращает пустую сущность нужного типа для разбора payload
func NewEntity(t EntityType) (Entity, error) {
	switch t {
	case EntityCollection:
		return &Collection{}, nil
	case EntityShoe:
		return &Shoe{}, nil
	case EntityRun:
		return &Run{}, nil
	}
	return nil, fmt.Errorf("unknown entity type %q", t)
}

// DecodeEntity разбирает payload в сущность по её типу
func DecodeEntity(t EntityType, payload []byte) (Entity, error) {
	e, err := NewEntity(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, e); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
	}
	return e, nil
}

// PayloadsEqual сравнивает два JSON-документа по содержимому, а не побайтово
func PayloadsEqual(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	ca, _ := json.Marshal(va)
	cb, _ := json.Marshal(vb)
	return string(ca) == string(cb)
}

// TypeStats статистика локального хранилища по одному типу
type TypeStats struct {
	Count int   `json:"count"`
	Dirty int   `json:"dirty"`
	Bytes int64 `json:"bytes"`
}
