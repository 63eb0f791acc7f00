package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/iudanet/shoetrack/internal/models"
	"github.com/iudanet/shoetrack/pkg/api"
)

//go:generate moq -out remote_mock.go . Remote

// Remote удалённый источник данных: CRUD по типам сущностей
type Remote interface {
	Get(ctx context.Context, t models.EntityType, id string) (*api.Record, error)
	List(ctx context.Context, t models.EntityType) ([]api.Record, error)
	Create(ctx context.Context, t models.EntityType, id string, payload json.RawMessage) (*api.Record, error)
	// Update с ifVersion = 0 записывает безусловно
	Update(ctx context.Context, t models.EntityType, id string, payload json.RawMessage, ifVersion int64) (*api.Record, error)
	Delete(ctx context.Context, t models.EntityType, id string, ifVersion int64) error
	Ping(ctx context.Context) error
}

// TokenSource отдаёт токен доступа для запросов
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc адаптер функции к TokenSource
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	baseURL    string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithTokenSource возвращает клиент, подписывающий запросы токеном
func (c *Client) WithTokenSource(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", false, req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", false, req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Ping проверяет доступность сервера
func (c *Client) Ping(ctx context.Context) error {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", false, nil, &resp); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

func recordPath(t models.EntityType, id string) string {
	p := "/api/v1/records/" + url.PathEscape(string(t))
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

// Get получает запись по id
func (c *Client) Get(ctx context.Context, t models.EntityType, id string) (*api.Record, error) {
	var rec api.Record
	if err := c.doRequest(ctx, http.MethodGet, recordPath(t, id), true, nil, &rec); err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", t, id, err)
	}
	return &rec, nil
}

// List получает все живые записи типа
func (c *Client) List(ctx context.Context, t models.EntityType) ([]api.Record, error) {
	var resp api.ListResponse
	if err := c.doRequest(ctx, http.MethodGet, recordPath(t, ""), true, nil, &resp); err != nil {
		return nil, fmt.Errorf("list %s: %w", t, err)
	}
	return resp.Records, nil
}

// Create создает запись; 409 если id уже занят
func (c *Client) Create(ctx context.Context, t models.EntityType, id string, payload json.RawMessage) (*api.Record, error) {
	var rec api.Record
	req := api.CreateRequest{ID: id, Payload: payload}
	if err := c.doRequest(ctx, http.MethodPost, recordPath(t, ""), true, req, &rec); err != nil {
		return nil, fmt.Errorf("create %s/%s: %w", t, id, err)
	}
	return &rec, nil
}

// Update обновляет запись при совпадении версии
func (c *Client) Update(ctx context.Context, t models.EntityType, id string, payload json.RawMessage, ifVersion int64) (*api.Record, error) {
	var rec api.Record
	req := api.UpdateRequest{Payload: payload, IfVersion: ifVersion}
	if err := c.doRequest(ctx, http.MethodPut, recordPath(t, id), true, req, &rec); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", t, id, err)
	}
	return &rec, nil
}

// Delete удаляет запись при совпадении версии
func (c *Client) Delete(ctx context.Context, t models.EntityType, id string, ifVersion int64) error {
	path := recordPath(t, id) + "?if_version=" + strconv.FormatInt(ifVersion, 10)
	if err := c.doRequest(ctx, http.MethodDelete, path, true, nil, nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", t, id, err)
	}
	return nil
}

// doRequest выполняет HTTP запрос и переводит ответ в классы ошибок пакета
func (c *Client) doRequest(ctx context.Context, method, path string, auth bool, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if auth {
		if c.tokens == nil {
			return fmt.Errorf("%w: no token source configured", ErrUnauthorized)
		}
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// сеть, DNS, таймаут: всё это временные ошибки
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, kind: classifyStatus(resp.StatusCode)}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			statusErr.Code = errResp.Error
			statusErr.Message = errResp.Message
			statusErr.Current = errResp.Current
		} else {
			statusErr.Message = string(respBody)
		}
		return statusErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// CurrentRecord достаёт актуальную запись сервера из ошибки конфликта, если она есть
func CurrentRecord(err error) *api.Record {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Current
	}
	return nil
}
