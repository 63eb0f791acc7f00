package api

import (
	"errors"
	"fmt"

	"github.com/iudanet/shoetrack/pkg/api"
)

// Классы ошибок удалённого источника. Движок синхронизации различает их через errors.Is.
var (
	ErrNotFound      = errors.New("remote record not found")
	ErrWriteConflict = errors.New("remote write conflict")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRejected      = errors.New("request rejected by server")
	ErrUnavailable   = errors.New("remote unavailable")
)

// StatusError ответ сервера с кодом ошибки
type StatusError struct {
	Current    *api.Record // актуальная запись при 409
	kind       error
	Code       string
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server error (%d)", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// classifyStatus сопоставляет HTTP статус с классом ошибки
func classifyStatus(code int) error {
	switch {
	case code == 404:
		return ErrNotFound
	case code == 409 || code == 412:
		return ErrWriteConflict
	case code == 401 || code == 403:
		return ErrUnauthorized
	case code == 408 || code == 429 || code >= 500:
		return ErrUnavailable
	default:
		return ErrRejected
	}
}

// IsTransient ошибка, после которой имеет смысл повторить запрос
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
