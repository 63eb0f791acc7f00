// Package auth реализует регистрацию, вход и хранение токена доступа клиента.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/validation"
	pkgapi "github.com/iudanet/shoetrack/pkg/api"
)

var (
	// ErrNotAuthenticated пользователь не вошёл или токен истёк
	ErrNotAuthenticated = errors.New("not authenticated, run login first")
)

// Authenticator часть API клиента, отвечающая за учётные записи
type Authenticator interface {
	Register(ctx context.Context, req pkgapi.RegisterRequest) (*pkgapi.RegisterResponse, error)
	Login(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.TokenResponse, error)
}

type service struct {
	client  Authenticator
	storage storage.AuthStorage
	logger  *slog.Logger
	now     func() time.Time
}

// NewService создает новый сервис авторизации
func NewService(client Authenticator, st storage.AuthStorage, logger *slog.Logger) Service {
	return &service{
		client:  client,
		storage: st,
		logger:  logger,
		now:     time.Now,
	}
}

// Register регистрирует нового пользователя, возвращает его id
func (s *service) Register(ctx context.Context, username, password string) (string, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return "", fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return "", fmt.Errorf("invalid password: %w", err)
	}

	resp, err := s.client.Register(ctx, pkgapi.RegisterRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("registration failed: %w", err)
	}

	s.logger.Info("User registered", "username", username, "user_id", resp.UserID)
	return resp.UserID, nil
}

// Login получает токен и сохраняет его в локальном хранилище
func (s *service) Login(ctx context.Context, username, password string) (*storage.AuthData, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("invalid password: %w", err)
	}

	resp, err := s.client.Login(ctx, pkgapi.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	data := &storage.AuthData{
		Username:    username,
		UserID:      resp.UserID,
		AccessToken: resp.AccessToken,
	}
	if resp.ExpiresIn > 0 {
		data.ExpiresAt = s.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	if err := s.storage.SaveAuth(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to save auth data: %w", err)
	}

	s.logger.Info("User logged in", "username", username, "expires_at", data.ExpiresAt)
	return data, nil
}

// Logout удаляет локальные данные авторизации
func (s *service) Logout(ctx context.Context) error {
	if err := s.storage.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		return fmt.Errorf("failed to delete local auth data: %w", err)
	}
	s.logger.Info("User logged out")
	return nil
}

// Token возвращает токен доступа для запросов к серверу
func (s *service) Token(ctx context.Context) (string, error) {
	data, err := s.Current(ctx)
	if err != nil {
		return "", err
	}
	if data.Expired(s.now()) {
		return "", fmt.Errorf("%w: token expired at %s", ErrNotAuthenticated, data.ExpiresAt.Format(time.RFC3339))
	}
	return data.AccessToken, nil
}

// Current возвращает сохранённые данные входа
func (s *service) Current(ctx context.Context) (*storage.AuthData, error) {
	data, err := s.storage.GetAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read auth data: %w", err)
	}
	return data, nil
}

// IsAuthenticated проверяет наличие действующего токена
func (s *service) IsAuthenticated(ctx context.Context) (bool, error) {
	_, err := s.Token(ctx)
	if errors.Is(err, ErrNotAuthenticated) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
