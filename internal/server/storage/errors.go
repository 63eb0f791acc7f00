package storage

import (
	"errors"
	"fmt"
)

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this username already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrRecordNotFound indicates that record is absent or deleted
	ErrRecordNotFound = errors.New("record not found")

	// ErrRecordExists indicates that a live record with this id already exists
	ErrRecordExists = errors.New("record already exists")

	// ErrVersionMismatch indicates that if_version differs from the stored version
	ErrVersionMismatch = errors.New("version mismatch")
)

// ConflictError ошибка записи с актуальным состоянием записи на сервере
type ConflictError struct {
	Current *Record
	Err     error
}

func (e *ConflictError) Error() string {
	if e.Current == nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: current version %d", e.Err, e.Current.Version)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}
