package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shoetrack/internal/crypto"
	"github.com/iudanet/shoetrack/internal/models"
	"github.com/iudanet/shoetrack/internal/server/jwt"
	"github.com/iudanet/shoetrack/internal/server/storage"
	"github.com/iudanet/shoetrack/pkg/api"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockUserStorage is a mock implementation of UserStorage for testing
type mockUserStorage struct {
	users           map[string]*models.User // username -> User
	createError     error
	getUserError    error
	updateLastLogin func(ctx context.Context, userID string, loginTime time.Time) error
}

func (m *mockUserStorage) CreateUser(ctx context.Context, user *models.User) error {
	if m.createError != nil {
		return m.createError
	}
	if _, exists := m.users[user.Username]; exists {
		return storage.ErrUserAlreadyExists
	}
	m.users[user.Username] = user
	return nil
}

func (m *mockUserStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.getUserError != nil {
		return nil, m.getUserError
	}
	user, ok := m.users[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if m.getUserError != nil {
		return nil, m.getUserError
	}
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) UpdateLastLogin(ctx context.Context, userID string, loginTime time.Time) error {
	if m.updateLastLogin != nil {
		return m.updateLastLogin(ctx, userID, loginTime)
	}
	return nil
}

func newAuthHandler(users *mockUserStorage) (*AuthHandler, *jwt.Service) {
	tokens := jwt.NewService("test-secret", 15*time.Minute)
	return NewAuthHandler(setupTestLogger(), users, tokens), tokens
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestAuthHandler_Register_Success(t *testing.T) {
	users := &mockUserStorage{users: make(map[string]*models.User)}
	handler, _ := newAuthHandler(users)

	w := postJSON(t, handler.Register, "/api/v1/auth/register", api.RegisterRequest{
		Username: "testuser",
		Password: "password123",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var response api.RegisterResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.NotEmpty(t, response.UserID)

	// Пароль хранится только в виде bcrypt хеша
	user, err := users.GetUserByUsername(context.Background(), "testuser")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NoError(t, crypto.VerifyPassword("password123", user.PasswordHash))
}

func TestAuthHandler_Register_Errors(t *testing.T) {
	tests := []struct {
		body       any
		users      *mockUserStorage
		name       string
		wantCode   string
		wantStatus int
	}{
		{
			name:       "invalid JSON",
			body:       "not-an-object",
			users:      &mockUserStorage{users: map[string]*models.User{}},
			wantStatus: http.StatusBadRequest,
			wantCode:   api.ErrCodeInvalid,
		},
		{
			name:       "invalid username",
			body:       api.RegisterRequest{Username: "a!", Password: "password123"},
			users:      &mockUserStorage{users: map[string]*models.User{}},
			wantStatus: http.StatusBadRequest,
			wantCode:   api.ErrCodeInvalid,
		},
		{
			name:       "short password",
			body:       api.RegisterRequest{Username: "testuser", Password: "123"},
			users:      &mockUserStorage{users: map[string]*models.User{}},
			wantStatus: http.StatusBadRequest,
			wantCode:   api.ErrCodeInvalid,
		},
		{
			name: "username taken",
			body: api.RegisterRequest{Username: "testuser", Password: "password123"},
			users: &mockUserStorage{users: map[string]*models.User{
				"testuser": {ID: "u1", Username: "testuser"},
			}},
			wantStatus: http.StatusConflict,
			wantCode:   api.ErrCodeConflict,
		},
		{
			name:       "storage failure",
			body:       api.RegisterRequest{Username: "testuser", Password: "password123"},
			users:      &mockUserStorage{users: map[string]*models.User{}, createError: errors.New("disk full")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   api.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newAuthHandler(tt.users)
			w := postJSON(t, handler.Register, "/api/v1/auth/register", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Error)
		})
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	hash, err := crypto.HashPassword("password123")
	require.NoError(t, err)

	var lastLoginUser string
	users := &mockUserStorage{
		users: map[string]*models.User{
			"testuser": {ID: "user-1", Username: "testuser", PasswordHash: hash},
		},
		updateLastLogin: func(ctx context.Context, userID string, loginTime time.Time) error {
			lastLoginUser = userID
			return errors.New("not critical")
		},
	}
	handler, tokens := newAuthHandler(users)

	w := postJSON(t, handler.Login, "/api/v1/auth/login", api.LoginRequest{
		Username: "testuser",
		Password: "password123",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.TokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "user-1", resp.UserID)
	assert.Equal(t, int64(900), resp.ExpiresIn)
	assert.Equal(t, "user-1", lastLoginUser)

	claims, err := tokens.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "testuser", claims.Username)
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	hash, err := crypto.HashPassword("password123")
	require.NoError(t, err)
	users := &mockUserStorage{users: map[string]*models.User{
		"testuser": {ID: "user-1", Username: "testuser", PasswordHash: hash},
	}}
	handler, _ := newAuthHandler(users)

	tests := []struct {
		name string
		req  api.LoginRequest
	}{
		{name: "wrong password", req: api.LoginRequest{Username: "testuser", Password: "password124"}},
		{name: "unknown user", req: api.LoginRequest{Username: "nobody", Password: "password123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, handler.Login, "/api/v1/auth/login", tt.req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, api.ErrCodeUnauthorized, decodeError(t, w).Error)
		})
	}
}

func TestAuthHandler_Login_StorageError(t *testing.T) {
	users := &mockUserStorage{users: map[string]*models.User{}, getUserError: errors.New("db down")}
	handler, _ := newAuthHandler(users)

	w := postJSON(t, handler.Login, "/api/v1/auth/login", api.LoginRequest{
		Username: "testuser",
		Password: "password123",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
