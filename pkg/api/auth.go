package api

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse представляет ответ на успешную регистрацию
type RegisterResponse struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse представляет ответ с токеном доступа
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token
	UserID      string `json:"user_id"`
	ExpiresIn   int64  `json:"expires_in"` // время жизни access token в секундах
}

// ErrorResponse представляет ответ с ошибкой.
// Current заполняется при 409: актуальная запись на сервере.
type ErrorResponse struct {
	Current *Record `json:"current,omitempty"`
	Error   string  `json:"error"`
	Message string  `json:"message,omitempty"`
}

// HealthResponse ответ /health
type HealthResponse struct {
	Status string `json:"status"`
	Time   int64  `json:"time"`
}
