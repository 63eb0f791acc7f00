package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/shoetrack/pkg/api"
)

// SendJSON отправляет JSON ответ
func SendJSON(logger *slog.Logger, w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// SendError отправляет JSON ответ с ошибкой
func SendError(logger *slog.Logger, w http.ResponseWriter, statusCode int, code, message string) {
	resp := api.ErrorResponse{
		Error:   code,
		Message: message,
	}
	SendJSON(logger, w, resp, statusCode)
}
