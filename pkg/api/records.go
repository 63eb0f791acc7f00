package api

import (
	"encoding/json"
	"time"
)

// Record запись сущности на сервере
type Record struct {
	UpdatedAt time.Time       `json:"updated_at"`
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	Version   int64           `json:"version"`
}

// CreateRequest тело POST /records/{type}
type CreateRequest struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// UpdateRequest тело PUT /records/{type}/{id}.
// IfVersion = 0 означает безусловную запись (upsert).
type UpdateRequest struct {
	Payload   json.RawMessage `json:"payload"`
	IfVersion int64           `json:"if_version"`
}

// ListResponse ответ GET /records/{type}
type ListResponse struct {
	Records []Record `json:"records"`
}

// Коды ошибок в ErrorResponse.Error
const (
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeInvalid      = "invalid_request"
	ErrCodeInternal     = "internal_error"
	ErrCodeRateLimited  = "rate_limited"
)
