// Package conflict хранит конфликты синхронизации до явного решения пользователя.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/models"
)

var (
	// ErrConflictNotFound конфликт с таким id не зарегистрирован
	ErrConflictNotFound = storage.ErrConflictNotFound
	// ErrInvalidResolution выбор отличается от local/remote
	ErrInvalidResolution = errors.New("resolution must be \"local\" or \"remote\"")
)

// QueueResolver операции очереди, нужные для применения решения
type QueueResolver interface {
	Enqueue(ctx context.Context, op *models.Operation) (*models.Operation, error)
	Unpark(ctx context.Context, opID string, force bool) (*models.Operation, error)
	DiscardEntity(ctx context.Context, t models.EntityType, id string) (int, error)
}

// LocalWriter операции локального хранилища, нужные для решения в пользу сервера
type LocalWriter interface {
	ApplyRemote(ctx context.Context, t models.EntityType, id string, payload []byte, version int64, at time.Time) error
	Delete(ctx context.Context, t models.EntityType, id string, markDirty bool) error
}

// Registry реестр конфликтов
type Registry struct {
	storage storage.ConflictStorage
	queue   QueueResolver
	local   LocalWriter
	logger  *slog.Logger
	now     func() time.Time
}

// NewRegistry создает реестр конфликтов
func NewRegistry(st storage.ConflictStorage, queue QueueResolver, local LocalWriter, logger *slog.Logger) *Registry {
	return &Registry{
		storage: st,
		queue:   queue,
		local:   local,
		logger:  logger,
		now:     time.Now,
	}
}

// Record регистрирует конфликт, обнаруженный движком синхронизации
func (r *Registry) Record(ctx context.Context, c *models.Conflict) error {
	if c.DetectedAt.IsZero() {
		c.DetectedAt = r.now()
	}
	if err := r.storage.SaveConflict(ctx, c); err != nil {
		return fmt.Errorf("failed to record conflict: %w", err)
	}

	r.logger.Warn("Sync conflict detected",
		"conflict_id", c.ID, "entity", c.Key(), "kind", c.Kind,
		"remote_version", c.RemoteVersion, "remote_deleted", c.RemoteDeleted)
	return nil
}

// List возвращает нерешённые конфликты
func (r *Registry) List(ctx context.Context) ([]*models.Conflict, error) {
	all, err := r.storage.ListConflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	unresolved := all[:0]
	for _, c := range all {
		if !c.Resolved {
			unresolved = append(unresolved, c)
		}
	}
	return unresolved, nil
}

// Get возвращает конфликт по id
func (r *Registry) Get(ctx context.Context, id string) (*models.Conflict, error) {
	return r.storage.GetConflict(ctx, id)
}

// Resolve применяет выбор пользователя и удаляет конфликт из реестра.
//
// local: операция снимается с паузы и уходит на сервер без проверки версии.
// remote: локальная копия перезаписывается серверной, операции сущности отбрасываются.
func (r *Registry) Resolve(ctx context.Context, id string, choice models.Resolution) (*models.Conflict, error) {
	if choice != models.ResolveLocal && choice != models.ResolveRemote {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidResolution, choice)
	}

	c, err := r.storage.GetConflict(ctx, id)
	if err != nil {
		return nil, err
	}

	switch choice {
	case models.ResolveLocal:
		err = r.keepLocal(ctx, c)
	case models.ResolveRemote:
		err = r.takeRemote(ctx, c)
	}
	if err != nil {
		return nil, err
	}

	if err := r.storage.DeleteConflict(ctx, c.ID); err != nil && !errors.Is(err, storage.ErrConflictNotFound) {
		return nil, fmt.Errorf("failed to remove resolved conflict: %w", err)
	}
	c.Resolved = true

	r.logger.Info("Conflict resolved", "conflict_id", c.ID, "entity", c.Key(), "choice", choice)
	return c, nil
}

func (r *Registry) keepLocal(ctx context.Context, c *models.Conflict) error {
	_, err := r.queue.Unpark(ctx, c.OperationID, true)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrOperationNotFound) {
		return fmt.Errorf("failed to requeue local change: %w", err)
	}

	// операция пропала (например, очередь очищена): ставим локальную версию заново
	op := &models.Operation{
		EntityType: c.EntityType,
		EntityID:   c.EntityID,
		Kind:       models.OpUpdate,
		Payload:    c.LocalPayload,
		Force:      true,
	}
	if c.Kind == models.OpDelete {
		op.Kind = models.OpDelete
		op.Payload = nil
	}
	if _, err := r.queue.Enqueue(ctx, op); err != nil {
		return fmt.Errorf("failed to enqueue local change: %w", err)
	}
	return nil
}

func (r *Registry) takeRemote(ctx context.Context, c *models.Conflict) error {
	if _, err := r.queue.DiscardEntity(ctx, c.EntityType, c.EntityID); err != nil {
		return fmt.Errorf("failed to discard local operations: %w", err)
	}

	if c.RemoteDeleted {
		if err := r.local.Delete(ctx, c.EntityType, c.EntityID, false); err != nil {
			return fmt.Errorf("failed to apply remote deletion: %w", err)
		}
		return nil
	}

	if err := r.local.ApplyRemote(ctx, c.EntityType, c.EntityID, c.RemotePayload, c.RemoteVersion, r.now()); err != nil {
		return fmt.Errorf("failed to apply remote version: %w", err)
	}
	return nil
}
