// Package sync реализует движок синхронизации: проигрывает очередь
// отложенных операций на сервере и разбирает исход каждой из них.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iudanet/shoetrack/internal/client/api"
	"github.com/iudanet/shoetrack/internal/client/queue"
	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/client/store"
	"github.com/iudanet/shoetrack/internal/models"
)

//go:generate moq -out service_mock.go . Service

// Service определяет интерфейс движка синхронизации. Это единственные
// изменяющие точки входа, доступные UI.
type Service interface {
	// Sync выполняет проход по очереди; параллельные вызовы делят один проход
	Sync(ctx context.Context, trigger Trigger) *Result

	// RequestSync запускает проход в фоне, если он ещё не идёт
	RequestSync(trigger Trigger) bool

	// ForceSyncNow возвращает исчерпавшие попытки операции в работу и синхронизирует
	ForceSyncNow(ctx context.Context) *Result

	// ClearSyncErrors очищает журнал ошибок
	ClearSyncErrors(ctx context.Context) error

	// Errors возвращает журнал ошибок
	Errors(ctx context.Context) ([]*models.SyncError, error)

	// Status снимок состояния для UI
	Status(ctx context.Context) (*Status, error)

	// Pull подтягивает серверные записи в локальный кэш
	Pull(ctx context.Context) (*PullResult, error)

	// Run запускает периодическую синхронизацию до отмены ctx
	Run(ctx context.Context)

	// Wait ждёт окончания текущего прохода или Pull, а также фоновых проходов,
	// уже запрошенных через RequestSync
	Wait()
}

// State состояние движка
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateError   State = "error"
)

// Trigger причина запуска прохода
type Trigger string

const (
	TriggerManual       Trigger = "manual"
	TriggerConnectivity Trigger = "connectivity"
	TriggerPeriodic     Trigger = "periodic"
	TriggerForce        Trigger = "force"
)

// Queue операции очереди, которые использует движок
type Queue interface {
	DequeueAll(ctx context.Context) ([]*models.Operation, error)
	EndDrain()
	Restore(ctx context.Context, ops ...*models.Operation) error
	Retry(ctx context.Context, op *models.Operation, cause error) (bool, error)
	Park(ctx context.Context, op *models.Operation, conflictID string) error
	Reject(ctx context.Context, op *models.Operation, cause error) error
	ResetFailed(ctx context.Context) (int, error)
	PeekStatus(ctx context.Context) (*queue.Status, error)
	PendingKeys(ctx context.Context) (map[string]struct{}, error)
}

// LocalStore операции локального хранилища, которые использует движок
type LocalStore interface {
	Get(ctx context.Context, t models.EntityType, id string) (*models.Record, error)
	List(ctx context.Context, t models.EntityType, filters ...store.Filter) ([]*models.Record, error)
	Delete(ctx context.Context, t models.EntityType, id string, markDirty bool) error
	ApplyRemote(ctx context.Context, t models.EntityType, id string, payload []byte, version int64, at time.Time) error
	MarkSynced(ctx context.Context, t models.EntityType, id string, version int64, at time.Time) error
}

// ConflictRegistry регистрация и подсчёт конфликтов
type ConflictRegistry interface {
	Record(ctx context.Context, c *models.Conflict) error
	List(ctx context.Context) ([]*models.Conflict, error)
}

// Deps зависимости движка
type Deps struct {
	Remote    api.Remote
	Queue     Queue
	Store     LocalStore
	Conflicts ConflictRegistry
	ErrorLog  storage.ErrorLogStorage
	Metadata  storage.MetadataStorage
}

// Config настройки движка
type Config struct {
	ReplayTimeout time.Duration // ограничение на одну операцию
	Interval      time.Duration // период фоновой синхронизации, 0 отключает
}

// DefaultConfig настройки по умолчанию
func DefaultConfig() Config {
	return Config{ReplayTimeout: 10 * time.Second, Interval: 5 * time.Minute}
}

// Result итог одного прохода
type Result struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Trigger    Trigger   `json:"trigger"`
	State      State     `json:"state"`
	Attempted  int       `json:"attempted"`
	Succeeded  int       `json:"succeeded"`
	Conflicts  int       `json:"conflicts"`
	Retried    int       `json:"retried"`
	Exhausted  int       `json:"exhausted"`
	Rejected   int       `json:"rejected"`
	Deferred   int       `json:"deferred"` // не отправлялись: сущность заблокирована более ранней неудачей
	AuthFailed bool      `json:"auth_failed"`
}

// Status снимок для UI
type Status struct {
	LastSyncAt        time.Time     `json:"last_sync_at"`
	LastResult        *Result       `json:"last_result,omitempty"`
	Queue             *queue.Status `json:"queue"`
	State             State         `json:"state"`
	PendingOperations int           `json:"pending_operations"`
	Conflicts         int           `json:"conflicts"`
	Errors            int           `json:"errors"`
}

type service struct {
	deps       Deps
	logger     *slog.Logger
	now        func() time.Time
	lastResult *Result
	group      singleflight.Group
	cfg        Config
	state      State
	mu         gosync.Mutex
	exclusive  gosync.Mutex // проход и Pull не пересекаются
	background gosync.WaitGroup // проходы, запущенные RequestSync
	syncing    atomic.Bool
	authFailed bool
}

// NewService создает движок синхронизации
func NewService(deps Deps, cfg Config, logger *slog.Logger) Service {
	if cfg.ReplayTimeout <= 0 {
		cfg.ReplayTimeout = DefaultConfig().ReplayTimeout
	}
	return &service{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		state:  StateIdle,
	}
}

// Sync single-flight: второй вызов во время прохода получает тот же результат
func (s *service) Sync(ctx context.Context, trigger Trigger) *Result {
	v, _, shared := s.group.Do("drain", func() (any, error) {
		// проход не прерывается отменой вызывающего; каждую операцию ограничивает ReplayTimeout
		return s.drain(context.WithoutCancel(ctx), trigger), nil
	})
	if shared {
		s.logger.Debug("Sync request coalesced into in-flight drain", "trigger", trigger)
	}
	return v.(*Result)
}

// RequestSync фоновый запуск; во время прохода ничего не делает
func (s *service) RequestSync(trigger Trigger) bool {
	if s.syncing.Load() {
		s.logger.Debug("Sync already in progress, trigger ignored", "trigger", trigger)
		return false
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.Sync(context.Background(), trigger)
	}()
	return true
}

// ForceSyncNow ручной запуск с новым бюджетом попыток
func (s *service) ForceSyncNow(ctx context.Context) *Result {
	n, err := s.deps.Queue.ResetFailed(ctx)
	if err != nil {
		s.logError(ctx, nil, models.ErrorStorage, fmt.Errorf("failed to reset failed operations: %w", err))
	} else if n > 0 {
		s.logger.Info("Failed operations returned to queue", "count", n)
	}

	s.mu.Lock()
	s.authFailed = false
	s.mu.Unlock()

	return s.Sync(ctx, TriggerForce)
}

func (s *service) drain(ctx context.Context, trigger Trigger) *Result {
	s.exclusive.Lock()
	defer s.exclusive.Unlock()

	s.syncing.Store(true)
	defer s.syncing.Store(false)
	s.setState(StateSyncing)

	result := &Result{Trigger: trigger, StartedAt: s.now()}

	ops, err := s.deps.Queue.DequeueAll(ctx)
	if err != nil {
		if !errors.Is(err, queue.ErrDrainInProgress) {
			s.logError(ctx, nil, models.ErrorStorage, err)
		}
		return s.finish(ctx, result)
	}
	defer s.deps.Queue.EndDrain()

	if len(ops) == 0 {
		return s.finish(ctx, result)
	}

	s.logger.Info("Starting synchronization", "trigger", trigger, "operations", len(ops))

	d := &drainState{
		blocked:  make(map[string]bool),
		versions: make(map[string]int64),
	}
	var restore []*models.Operation
	for _, op := range ops {
		if result.AuthFailed || d.blocked[op.Key()] {
			restore = append(restore, op)
			result.Deferred++
			continue
		}
		result.Attempted++
		if back := s.replay(ctx, op, d, result); back {
			restore = append(restore, op)
		}
	}

	if err := s.deps.Queue.Restore(ctx, restore...); err != nil {
		s.logError(ctx, nil, models.ErrorStorage, err)
	}

	return s.finish(ctx, result)
}

func (s *service) finish(ctx context.Context, result *Result) *Result {
	result.FinishedAt = s.now()

	s.mu.Lock()
	if result.AuthFailed {
		s.authFailed = true
	} else if result.Attempted > 0 {
		// сервер принял токен, значит повторный вход уже выполнен
		s.authFailed = false
	}
	s.mu.Unlock()

	state := s.computeState(ctx)
	result.State = state

	if result.Attempted > 0 && !result.AuthFailed {
		if err := s.deps.Metadata.SaveTime(ctx, storage.MetaLastSync, result.FinishedAt); err != nil {
			s.logger.Warn("Failed to save last sync time", "error", err)
		}
	}

	s.mu.Lock()
	s.state = state
	s.lastResult = result
	s.mu.Unlock()

	if result.Attempted > 0 || result.Deferred > 0 {
		s.logger.Info("Synchronization finished",
			"state", state,
			"attempted", result.Attempted,
			"succeeded", result.Succeeded,
			"conflicts", result.Conflicts,
			"retried", result.Retried,
			"exhausted", result.Exhausted,
			"deferred", result.Deferred,
			"duration", result.FinishedAt.Sub(result.StartedAt))
	}
	return result
}

// computeState error, пока нужна реакция пользователя: повторный вход или ForceSyncNow
func (s *service) computeState(ctx context.Context) State {
	s.mu.Lock()
	authFailed := s.authFailed
	s.mu.Unlock()
	if authFailed {
		return StateError
	}

	st, err := s.deps.Queue.PeekStatus(ctx)
	if err != nil {
		s.logger.Warn("Failed to read queue status", "error", err)
		return StateError
	}
	if st.Exhausted > 0 {
		return StateError
	}
	return StateIdle
}

func (s *service) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// ClearSyncErrors очищает журнал и флаг ошибки авторизации
func (s *service) ClearSyncErrors(ctx context.Context) error {
	if err := s.deps.ErrorLog.ClearSyncErrors(ctx); err != nil {
		return fmt.Errorf("failed to clear sync errors: %w", err)
	}

	s.mu.Lock()
	s.authFailed = false
	s.mu.Unlock()

	if !s.syncing.Load() {
		s.setState(s.computeState(ctx))
	}
	return nil
}

// Errors возвращает журнал ошибок
func (s *service) Errors(ctx context.Context) ([]*models.SyncError, error) {
	return s.deps.ErrorLog.ListSyncErrors(ctx)
}

// Status собирает состояние для UI
func (s *service) Status(ctx context.Context) (*Status, error) {
	qs, err := s.deps.Queue.PeekStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue status: %w", err)
	}
	conflicts, err := s.deps.Conflicts.List(ctx)
	if err != nil {
		return nil, err
	}
	errs, err := s.deps.ErrorLog.ListSyncErrors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync errors: %w", err)
	}
	lastSync, err := s.deps.Metadata.GetTime(ctx, storage.MetaLastSync)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return &Status{
		State:             s.state,
		PendingOperations: qs.Total,
		Queue:             qs,
		Conflicts:         len(conflicts),
		Errors:            len(errs),
		LastSyncAt:        lastSync,
		LastResult:        s.lastResult,
	}, nil
}

func (s *service) Wait() {
	s.background.Wait()
	s.exclusive.Lock()
	defer s.exclusive.Unlock()
}

// Run периодически запрашивает синхронизацию
func (s *service) Run(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RequestSync(TriggerPeriodic)
		}
	}
}
