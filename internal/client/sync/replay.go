package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iudanet/shoetrack/internal/client/api"
	"github.com/iudanet/shoetrack/internal/models"
	pkgapi "github.com/iudanet/shoetrack/pkg/api"
)

// drainState состояние одного прохода
type drainState struct {
	blocked  map[string]bool  // сущности, чьи следующие операции в этом проходе не отправляются
	versions map[string]int64 // версии, подтверждённые сервером в этом проходе
}

// replay отправляет одну операцию. Возвращает true, если операцию надо вернуть
// в очередь без изменений (ошибка авторизации).
func (s *service) replay(ctx context.Context, op *models.Operation, d *drainState, result *Result) bool {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ReplayTimeout)
	defer cancel()

	key := op.Key()
	rec, err := s.send(opCtx, op, d)

	if errors.Is(err, api.ErrWriteConflict) || (op.Kind == models.OpUpdate && errors.Is(err, api.ErrNotFound)) {
		rec, err = s.divergence(opCtx, op, err, result)
		if err == nil && rec == nil {
			// конфликт зарегистрирован, операция на паузе
			d.blocked[key] = true
			return false
		}
	}

	switch {
	case err == nil:
		result.Succeeded++
		if op.Kind == models.OpDelete {
			delete(d.versions, key)
			s.logger.Debug("Delete replayed", "entity", key)
			return false
		}
		d.versions[key] = rec.Version
		if err := s.deps.Store.MarkSynced(ctx, op.EntityType, op.EntityID, rec.Version, s.now()); err != nil {
			s.logError(ctx, op, models.ErrorStorage, err)
		}
		s.logger.Debug("Operation replayed", "entity", key, "kind", op.Kind, "version", rec.Version)
		return false

	case errors.Is(err, api.ErrUnauthorized):
		result.AuthFailed = true
		s.logError(ctx, op, models.ErrorAuth, err)
		return true

	case errors.Is(err, api.ErrRejected):
		result.Rejected++
		d.blocked[key] = true
		s.logError(ctx, op, models.ErrorRejected, err)
		if qerr := s.deps.Queue.Reject(ctx, op, err); qerr != nil {
			s.logError(ctx, op, models.ErrorStorage, qerr)
		}
		return false

	default:
		// сеть, 5xx, таймаут и всё непредвиденное считаем временной ошибкой
		result.Retried++
		d.blocked[key] = true
		exhausted, qerr := s.deps.Queue.Retry(ctx, op, err)
		if qerr != nil {
			s.logError(ctx, op, models.ErrorStorage, qerr)
		}
		if exhausted {
			result.Exhausted++
		}
		s.logError(ctx, op, models.ErrorTransient, err)
		return false
	}
}

// send выполняет запрос к серверу, соответствующий виду операции
func (s *service) send(ctx context.Context, op *models.Operation, d *drainState) (*pkgapi.Record, error) {
	switch op.Kind {
	case models.OpCreate:
		rec, err := s.deps.Remote.Create(ctx, op.EntityType, op.EntityID, op.Payload)
		if err != nil && op.Force && errors.Is(err, api.ErrWriteConflict) {
			return s.deps.Remote.Update(ctx, op.EntityType, op.EntityID, op.Payload, 0)
		}
		return rec, err

	case models.OpUpdate:
		return s.deps.Remote.Update(ctx, op.EntityType, op.EntityID, op.Payload, s.ifVersion(ctx, op, d))

	case models.OpDelete:
		err := s.deps.Remote.Delete(ctx, op.EntityType, op.EntityID, s.ifVersion(ctx, op, d))
		if errors.Is(err, api.ErrNotFound) {
			// уже удалено на сервере: цель операции достигнута
			return nil, nil
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: unknown operation kind %q", api.ErrRejected, op.Kind)
}

// ifVersion версия, от которой сделана локальная правка. Принудительная операция
// отправляется без проверки. Версия поднимается до подтверждённой нашими же
// записями, чтобы цепочка create, update не конфликтовала сама с собой.
func (s *service) ifVersion(ctx context.Context, op *models.Operation, d *drainState) int64 {
	if op.Force {
		return 0
	}
	base := op.BaseVersion
	if v, ok := d.versions[op.Key()]; ok && v > base {
		base = v
	}
	if rec, err := s.deps.Store.Get(ctx, op.EntityType, op.EntityID); err == nil && rec.RemoteVersion > base {
		base = rec.RemoteVersion
	}
	return base
}

// divergence разбирает ответ "запись на сервере изменилась". Если серверная версия
// совпадает с локальной по содержимому (например, ответ на прошлую попытку потерялся),
// это успех. Иначе регистрирует конфликт и ставит операцию на паузу: (nil, nil).
func (s *service) divergence(ctx context.Context, op *models.Operation, cause error, result *Result) (*pkgapi.Record, error) {
	current := api.CurrentRecord(cause)
	remoteDeleted := errors.Is(cause, api.ErrNotFound)

	if current == nil && !remoteDeleted {
		rec, err := s.deps.Remote.Get(ctx, op.EntityType, op.EntityID)
		switch {
		case errors.Is(err, api.ErrNotFound):
			remoteDeleted = true
		case err != nil:
			return nil, fmt.Errorf("failed to fetch remote version: %w", err)
		default:
			current = rec
		}
	}

	if current != nil && op.Kind != models.OpDelete && models.PayloadsEqual(current.Payload, op.Payload) {
		s.logger.Debug("Remote already holds local payload", "entity", op.Key(), "version", current.Version)
		return current, nil
	}

	c := &models.Conflict{
		ID:            uuid.New().String(),
		EntityType:    op.EntityType,
		EntityID:      op.EntityID,
		OperationID:   op.ID,
		Kind:          op.Kind,
		LocalPayload:  op.Payload,
		RemoteDeleted: remoteDeleted,
		DetectedAt:    s.now(),
	}
	if current != nil {
		c.RemotePayload = current.Payload
		c.RemoteVersion = current.Version
	}

	if err := s.deps.Conflicts.Record(ctx, c); err != nil {
		s.logError(ctx, op, models.ErrorStorage, err)
	}
	if err := s.deps.Queue.Park(ctx, op, c.ID); err != nil {
		s.logError(ctx, op, models.ErrorStorage, err)
	}
	result.Conflicts++
	return nil, nil
}

// logError пишет в журнал ошибок; сама запись в журнал никогда не прерывает проход
func (s *service) logError(ctx context.Context, op *models.Operation, class models.ErrorClass, err error) {
	entry := &models.SyncError{
		ID:         uuid.New().String(),
		Class:      class,
		Message:    err.Error(),
		OccurredAt: s.now(),
	}
	if op != nil {
		entry.OperationID = op.ID
		entry.EntityType = op.EntityType
		entry.EntityID = op.EntityID
		entry.Kind = op.Kind
		entry.Attempt = op.RetryCount
	}

	s.logger.Warn("Sync operation failed",
		"class", class, "op_id", entry.OperationID, "entity_id", entry.EntityID, "error", err)

	if lerr := s.deps.ErrorLog.AppendSyncError(ctx, entry); lerr != nil {
		s.logger.Error("Failed to append sync error", "error", lerr)
	}
}
