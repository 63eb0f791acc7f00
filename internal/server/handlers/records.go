package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/shoetrack/internal/models"
	"github.com/iudanet/shoetrack/internal/server/storage"
	"github.com/iudanet/shoetrack/internal/validation"
	"github.com/iudanet/shoetrack/pkg/api"
)

// MaxPayloadBytes предел тела запроса записи
const MaxPayloadBytes = 1 << 20

// RecordsHandler обрабатывает CRUD записей пользователя
type RecordsHandler struct {
	logger  *slog.Logger
	storage storage.RecordStorage
}

// NewRecordsHandler создает handler записей
func NewRecordsHandler(logger *slog.Logger, st storage.RecordStorage) *RecordsHandler {
	return &RecordsHandler{
		logger:  logger,
		storage: st,
	}
}

// target разобранные параметры пути
type target struct {
	userID     string
	recordType string
	id         string
}

// parseTarget достаёт пользователя и тип/id из пути; пишет ответ и возвращает false при ошибке
func (h *RecordsHandler) parseTarget(w http.ResponseWriter, r *http.Request, withID bool) (target, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.logger.Error("User ID not found in context")
		SendError(h.logger, w, http.StatusUnauthorized, api.ErrCodeUnauthorized, "unauthorized")
		return target{}, false
	}

	et, err := models.ParseEntityType(r.PathValue("type"))
	if err != nil {
		SendError(h.logger, w, http.StatusNotFound, api.ErrCodeNotFound, err.Error())
		return target{}, false
	}

	t := target{userID: userID, recordType: string(et)}
	if withID {
		t.id = r.PathValue("id")
		if err := validation.ValidateID("id", t.id); err != nil {
			SendError(h.logger, w, http.StatusBadRequest, api.ErrCodeInvalid, err.Error())
			return target{}, false
		}
	}
	return t, true
}

// List обрабатывает GET /api/v1/records/{type}
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	t, ok := h.parseTarget(w, r, false)
	if !ok {
		return
	}

	records, err := h.storage.ListRecords(r.Context(), t.userID, t.recordType)
	if err != nil {
		h.internalError(w, r, "failed to list records", err)
		return
	}

	resp := api.ListResponse{Records: make([]api.Record, 0, len(records))}
	for i := range records {
		resp.Records = append(resp.Records, toAPI(&records[i]))
	}
	SendJSON(h.logger, w, resp, http.StatusOK)
}

// Get обрабатывает GET /api/v1/records/{type}/{id}
func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.parseTarget(w, r, true)
	if !ok {
		return
	}

	rec, err := h.storage.GetRecord(r.Context(), t.userID, t.recordType, t.id)
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	SendJSON(h.logger, w, toAPI(rec), http.StatusOK)
}

// Create обрабатывает POST /api/v1/records/{type}
func (h *RecordsHandler) Create(w http.ResponseWriter, r *http.Request) {
	t, ok := h.parseTarget(w, r, false)
	if !ok {
		return
	}

	var req api.CreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := validation.ValidateID("id", req.ID); err != nil {
		SendError(h.logger, w, http.StatusBadRequest, api.ErrCodeInvalid, err.Error())
		return
	}
	if !h.validPayload(w, req.Payload) {
		return
	}

	rec, err := h.storage.CreateRecord(r.Context(), t.userID, t.recordType, req.ID, req.Payload)
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "record created",
		slog.String("type", t.recordType), slog.String("id", req.ID))
	SendJSON(h.logger, w, toAPI(rec), http.StatusCreated)
}

// Update обрабатывает PUT /api/v1/records/{type}/{id}
func (h *RecordsHandler) Update(w http.ResponseWriter, r *http.Request) {
	t, ok := h.parseTarget(w, r, true)
	if !ok {
		return
	}

	var req api.UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.IfVersion < 0 {
		SendError(h.logger, w, http.StatusBadRequest, api.ErrCodeInvalid, "if_version must not be negative")
		return
	}
	if !h.validPayload(w, req.Payload) {
		return
	}

	rec, err := h.storage.UpdateRecord(r.Context(), t.userID, t.recordType, t.id, req.Payload, req.IfVersion)
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "record updated",
		slog.String("type", t.recordType), slog.String("id", t.id), slog.Int64("version", rec.Version))
	SendJSON(h.logger, w, toAPI(rec), http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/records/{type}/{id}?if_version=N
func (h *RecordsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t, ok := h.parseTarget(w, r, true)
	if !ok {
		return
	}

	var ifVersion int64
	if raw := r.URL.Query().Get("if_version"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			SendError(h.logger, w, http.StatusBadRequest, api.ErrCodeInvalid, "invalid if_version")
			return
		}
		ifVersion = v
	}

	if err := h.storage.DeleteRecord(r.Context(), t.userID, t.recordType, t.id, ifVersion); err != nil {
		h.writeStorageError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "record deleted",
		slog.String("type", t.recordType), slog.String("id", t.id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecordsHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxPayloadBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode request", slog.Any("error", err))
		SendError(h.logger, w, http.StatusBadRequest, api.ErrCodeInvalid, "invalid request body")
		return false
	}
	return true
}

// validPayload payload записи обязан быть JSON объектом
func (h *RecordsHandler) validPayload(w http.ResponseWriter, payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		SendError(h.logger, w, http.StatusUnprocessableEntity, api.ErrCodeInvalid, "payload must be a JSON object")
		return false
	}
	return true
}

// writeStorageError переводит ошибки хранилища в HTTP статусы
func (h *RecordsHandler) writeStorageError(w http.ResponseWriter, r *http.Request, err error) {
	var conflictErr *storage.ConflictError
	switch {
	case errors.Is(err, storage.ErrRecordNotFound):
		SendError(h.logger, w, http.StatusNotFound, api.ErrCodeNotFound, "record not found")
	case errors.As(err, &conflictErr):
		resp := api.ErrorResponse{
			Error:   api.ErrCodeConflict,
			Message: conflictErr.Error(),
		}
		if conflictErr.Current != nil {
			current := toAPI(conflictErr.Current)
			resp.Current = &current
		}
		h.logger.InfoContext(r.Context(), "write conflict", slog.Any("error", err))
		SendJSON(h.logger, w, resp, http.StatusConflict)
	default:
		h.internalError(w, r, "record storage failed", err)
	}
}

func (h *RecordsHandler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg, slog.Any("error", err))
	SendError(h.logger, w, http.StatusInternalServerError, api.ErrCodeInternal, "internal server error")
}

func toAPI(rec *storage.Record) api.Record {
	return api.Record{
		Type:      rec.Type,
		ID:        rec.ID,
		Payload:   rec.Payload,
		Version:   rec.Version,
		UpdatedAt: rec.UpdatedAt,
	}
}
