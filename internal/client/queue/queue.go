// Package queue реализует очередь синхронизации: упорядоченный список
// отложенных мутаций, которые движок синхронизации проигрывает на сервере.
//
// Порядок FIFO гарантируется только в пределах одной сущности. Операция,
// которая ждёт повтора, разрешения конфликта или ручной синхронизации,
// блокирует все более поздние операции той же сущности.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/models"
	"github.com/iudanet/shoetrack/internal/validation"
)

// ErrDrainInProgress возвращается DequeueAll, если другой проход уже выполняется
var ErrDrainInProgress = errors.New("sync drain already in progress")

// Policy политика повторов
type Policy struct {
	MaxRetries  int           // после стольких неудач операция ждёт ForceSyncNow
	BackoffBase time.Duration // задержка после первой неудачи
	BackoffMax  time.Duration
}

// DefaultPolicy политика по умолчанию: 5 попыток, 2s, 4s, 8s... не больше 5 минут
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 5, BackoffBase: 2 * time.Second, BackoffMax: 5 * time.Minute}
}

// Backoff задержка перед попыткой номер attempt+1
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 0 || p.BackoffBase <= 0 {
		return 0
	}
	d := p.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.BackoffMax > 0 && d >= p.BackoffMax {
			return p.BackoffMax
		}
	}
	if p.BackoffMax > 0 && d > p.BackoffMax {
		return p.BackoffMax
	}
	return d
}

// Status снимок очереди для UI
type Status struct {
	Immediate      int  `json:"immediate"`
	Background     int  `json:"background"`
	Deferred       int  `json:"deferred"` // включая Exhausted
	Parked         int  `json:"parked"`
	Exhausted      int  `json:"exhausted"`
	Total          int  `json:"total"`
	SyncInProgress bool `json:"sync_in_progress"`
}

// Queue очередь синхронизации поверх персистентного QueueStorage
type Queue struct {
	storage  storage.QueueStorage
	logger   *slog.Logger
	now      func() time.Time
	policy   Policy
	mu       sync.Mutex // сериализует изменения очереди вне прохода
	draining atomic.Bool
	gen      atomic.Uint64 // увеличивается при Clear
	drainGen uint64
}

// Option настраивает Queue
type Option func(*Queue)

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// New создает очередь
func New(st storage.QueueStorage, logger *slog.Logger, policy Policy, opts ...Option) *Queue {
	q := &Queue{
		storage: st,
		logger:  logger,
		policy:  policy,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Policy возвращает текущую политику повторов
func (q *Queue) Policy() Policy {
	return q.policy
}

// Enqueue добавляет операцию в хвост очереди
func (q *Queue) Enqueue(ctx context.Context, op *models.Operation) (*models.Operation, error) {
	if err := q.Prepare(op); err != nil {
		return nil, err
	}

	if err := q.storage.AppendOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to enqueue operation: %w", err)
	}

	q.logger.Debug("Operation enqueued",
		"op_id", op.ID, "seq", op.Seq, "entity", op.Key(), "kind", op.Kind)
	return op, nil
}

// Prepare проверяет операцию и заполняет ID и EnqueuedAt, ничего не сохраняя.
// Нужна тем, кто пишет операцию вместе с записью в одной транзакции хранилища.
func (q *Queue) Prepare(op *models.Operation) error {
	if !op.EntityType.Valid() {
		return fmt.Errorf("unknown entity type %q: %w", op.EntityType, validation.ErrInvalid)
	}
	switch op.Kind {
	case models.OpCreate, models.OpUpdate, models.OpDelete:
	default:
		return fmt.Errorf("unknown operation kind %q: %w", op.Kind, validation.ErrInvalid)
	}
	if err := validation.ValidateID("entity_id", op.EntityID); err != nil {
		return err
	}

	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = q.now()
	}
	return nil
}

// DequeueAll атомарно забирает все готовые операции, сохраняя порядок внутри сущности.
// Флаг прохода выставляется до первого обращения к хранилищу; при успехе вызывающий
// обязан вызвать EndDrain, даже если список пуст.
func (q *Queue) DequeueAll(ctx context.Context) ([]*models.Operation, error) {
	if !q.draining.CompareAndSwap(false, true) {
		return nil, ErrDrainInProgress
	}
	q.drainGen = q.gen.Load()

	now := q.now()
	blocked := make(map[string]bool)
	ops, err := q.storage.TakeOperations(ctx, func(op *models.Operation) bool {
		key := op.Key()
		if blocked[key] {
			return false
		}
		if !op.Ready(now) {
			blocked[key] = true
			return false
		}
		return true
	})
	if err != nil {
		q.draining.Store(false)
		return nil, fmt.Errorf("failed to dequeue operations: %w", err)
	}

	return ops, nil
}

// EndDrain снимает флаг прохода
func (q *Queue) EndDrain() {
	q.draining.Store(false)
}

// InProgress выполняется ли сейчас проход
func (q *Queue) InProgress() bool {
	return q.draining.Load()
}

// requeue возвращает операцию прохода на её прежнее место.
// После Clear операции, забранные до очистки, отбрасываются.
func (q *Queue) requeue(ctx context.Context, op *models.Operation) error {
	if q.gen.Load() != q.drainGen {
		q.logger.Debug("Dropping in-flight operation after queue clear", "op_id", op.ID)
		return nil
	}
	if err := q.storage.SaveOperation(ctx, op); err != nil {
		return fmt.Errorf("failed to requeue operation %s: %w", op.ID, err)
	}
	return nil
}

// Restore возвращает операции без изменений (например, заблокированные более ранней неудачей)
func (q *Queue) Restore(ctx context.Context, ops ...*models.Operation) error {
	var errs []error
	for _, op := range ops {
		if err := q.requeue(ctx, op); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Retry учитывает временную неудачу. Возвращает true, если бюджет попыток исчерпан.
func (q *Queue) Retry(ctx context.Context, op *models.Operation, cause error) (bool, error) {
	op.RetryCount++
	op.LastError = cause.Error()
	if q.policy.MaxRetries > 0 && op.RetryCount >= q.policy.MaxRetries {
		op.Exhausted = true
		op.NextAttemptAt = time.Time{}
	} else {
		op.NextAttemptAt = q.now().Add(q.policy.Backoff(op.RetryCount))
	}
	return op.Exhausted, q.requeue(ctx, op)
}

// Park ставит операцию на паузу до разрешения конфликта
func (q *Queue) Park(ctx context.Context, op *models.Operation, conflictID string) error {
	op.Parked = true
	op.ConflictID = conflictID
	return q.requeue(ctx, op)
}

// Reject помечает операцию, отклонённую сервером как некорректную: без автоматических повторов
func (q *Queue) Reject(ctx context.Context, op *models.Operation, cause error) error {
	op.Exhausted = true
	op.LastError = cause.Error()
	op.NextAttemptAt = time.Time{}
	return q.requeue(ctx, op)
}

// List возвращает все операции в порядке постановки
func (q *Queue) List(ctx context.Context) ([]*models.Operation, error) {
	ops, err := q.storage.ListOperations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	return ops, nil
}

// Get ищет операцию по id
func (q *Queue) Get(ctx context.Context, opID string) (*models.Operation, error) {
	ops, err := q.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		if op.ID == opID {
			return op, nil
		}
	}
	return nil, storage.ErrOperationNotFound
}

// HasPending есть ли в очереди операция для сущности
func (q *Queue) HasPending(ctx context.Context, t models.EntityType, id string) (bool, error) {
	keys, err := q.PendingKeys(ctx)
	if err != nil {
		return false, err
	}
	_, ok := keys[models.EntityKey(t, id)]
	return ok, nil
}

// PendingKeys множество ключей сущностей, у которых есть операции в очереди
func (q *Queue) PendingKeys(ctx context.Context) (map[string]struct{}, error) {
	ops, err := q.List(ctx)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		keys[op.Key()] = struct{}{}
	}
	return keys, nil
}

// PeekStatus считает операции по корзинам приоритета
func (q *Queue) PeekStatus(ctx context.Context) (*Status, error) {
	ops, err := q.List(ctx)
	if err != nil {
		return nil, err
	}

	now := q.now()
	st := &Status{Total: len(ops), SyncInProgress: q.InProgress()}
	for _, op := range ops {
		if op.Parked {
			st.Parked++
			continue
		}
		if op.Exhausted {
			st.Exhausted++
		}
		switch op.Priority(now) {
		case models.PriorityImmediate:
			st.Immediate++
		case models.PriorityBackground:
			st.Background++
		default:
			st.Deferred++
		}
	}
	return st, nil
}

// Unpark снимает операцию с паузы после разрешения конфликта в пользу локальной версии.
// С force операция уходит на сервер без проверки версии; create превращается в update,
// так как запись на сервере уже существует.
func (q *Queue) Unpark(ctx context.Context, opID string, force bool) (*models.Operation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	op, err := q.Get(ctx, opID)
	if err != nil {
		return nil, err
	}

	op.Parked = false
	op.ConflictID = ""
	op.RetryCount = 0
	op.Exhausted = false
	op.NextAttemptAt = time.Time{}
	op.LastError = ""
	if force {
		op.Force = true
		if op.Kind == models.OpCreate {
			op.Kind = models.OpUpdate
		}
	}

	if err := q.storage.SaveOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to unpark operation: %w", err)
	}
	return op, nil
}

// DiscardEntity удаляет все операции сущности, возвращает их количество
func (q *Queue) DiscardEntity(ctx context.Context, t models.EntityType, id string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := models.EntityKey(t, id)
	ops, err := q.storage.TakeOperations(ctx, func(op *models.Operation) bool {
		return op.Key() == key
	})
	if err != nil {
		return 0, fmt.Errorf("failed to discard operations for %s: %w", key, err)
	}
	return len(ops), nil
}

// ResetFailed возвращает исчерпанные и отложенные операции в работу с новым бюджетом попыток.
// Операции, ждущие разрешения конфликта, не трогает.
func (q *Queue) ResetFailed(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops, err := q.List(ctx)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, op := range ops {
		if op.Parked || (!op.Exhausted && op.RetryCount == 0 && op.NextAttemptAt.IsZero()) {
			continue
		}
		op.Exhausted = false
		op.RetryCount = 0
		op.NextAttemptAt = time.Time{}
		if err := q.storage.SaveOperation(ctx, op); err != nil {
			return reset, fmt.Errorf("failed to reset operation %s: %w", op.ID, err)
		}
		reset++
	}
	return reset, nil
}

// Clear удаляет все операции. Операции текущего прохода в очередь не вернутся.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.gen.Add(1)
	if err := q.storage.ClearOperations(ctx); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	q.logger.Info("Sync queue cleared")
	return nil
}
