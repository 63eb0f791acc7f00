package auth

import (
	"context"

	"github.com/iudanet/shoetrack/internal/client/storage"
)

//go:generate moq -out service_mock.go . Service

// Service управляет учётной записью и токеном доступа клиента.
// Реализует api.TokenSource: HTTP клиент берёт токен через Token.
type Service interface {
	// Register регистрирует нового пользователя (без входа)
	Register(ctx context.Context, username, password string) (string, error)

	// Login выполняет аутентификацию и сохраняет токен локально
	Login(ctx context.Context, username, password string) (*storage.AuthData, error)

	// Logout удаляет локальный токен. Очередь синхронизации не трогается:
	// после повторного входа неотправленные изменения уйдут на сервер.
	Logout(ctx context.Context) error

	// Token возвращает действующий токен или ErrNotAuthenticated
	Token(ctx context.Context) (string, error)

	// Current возвращает сохранённые данные входа
	Current(ctx context.Context) (*storage.AuthData, error)

	// IsAuthenticated есть ли действующий токен
	IsAuthenticated(ctx context.Context) (bool, error)
}
