package validation

import (
	"errors"
	"fmt"
)

// ErrInvalid базовая ошибка валидации, все ошибки пакета оборачивают её.
// Проверять через errors.Is(err, validation.ErrInvalid).
var ErrInvalid = errors.New("validation failed")

// FieldError описывает ошибку конкретного поля
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalid
}

func fieldErr(field, format string, args ...any) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
