package storage

import (
	"context"
	"time"
)

//go:generate moq -out auth_mock.go . AuthStorage

// AuthStorage хранит токен доступа текущего пользователя
type AuthStorage interface {
	// SaveAuth stores authentication data, replacing previous one
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth returns ErrAuthNotFound if user is not logged in
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes stored authentication data (logout)
	DeleteAuth(ctx context.Context) error
}

// AuthData represents authentication information in storage
type AuthData struct {
	ExpiresAt   time.Time `json:"expires_at"`
	Username    string    `json:"username"`
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token"`
}

// Expired сообщает, истёк ли токен на момент now
func (a *AuthData) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}
