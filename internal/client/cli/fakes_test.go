package cli

import (
	"context"
	gosync "sync"
	"time"

	"github.com/iudanet/shoetrack/internal/client/auth"
	"github.com/iudanet/shoetrack/internal/client/connectivity"
	"github.com/iudanet/shoetrack/internal/client/queue"
	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/client/sync"
	"github.com/iudanet/shoetrack/internal/models"
)

type fakeAuth struct {
	current    *storage.AuthData
	loginErr   error
	registered string
	loggedOut  bool
}

func (f *fakeAuth) Register(_ context.Context, username, _ string) (string, error) {
	f.registered = username
	return "user-1", nil
}

func (f *fakeAuth) Login(_ context.Context, username, _ string) (*storage.AuthData, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.current = &storage.AuthData{Username: username, UserID: "user-1", AccessToken: "token", ExpiresAt: time.Now().Add(time.Hour)}
	return f.current, nil
}

func (f *fakeAuth) Logout(context.Context) error {
	f.loggedOut = true
	f.current = nil
	return nil
}

func (f *fakeAuth) Token(ctx context.Context) (string, error) {
	data, err := f.Current(ctx)
	if err != nil {
		return "", err
	}
	return data.AccessToken, nil
}

func (f *fakeAuth) Current(context.Context) (*storage.AuthData, error) {
	if f.current == nil {
		return nil, auth.ErrNotAuthenticated
	}
	return f.current, nil
}

func (f *fakeAuth) IsAuthenticated(context.Context) (bool, error) {
	return f.current != nil, nil
}

type fakeSync struct {
	result   *sync.Result
	status   *sync.Status
	pull     *sync.PullResult
	errs     []*models.SyncError
	triggers []sync.Trigger
	requests []sync.Trigger
	pulls    int
	mu       gosync.Mutex
	forced   bool
	waited   bool
}

func (f *fakeSync) Sync(_ context.Context, trigger sync.Trigger) *sync.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	return f.result
}

func (f *fakeSync) RequestSync(trigger sync.Trigger) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, trigger)
	return true
}

func (f *fakeSync) requested() []sync.Trigger {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sync.Trigger(nil), f.requests...)
}

func (f *fakeSync) ForceSyncNow(ctx context.Context) *sync.Result {
	f.forced = true
	return f.Sync(ctx, sync.TriggerForce)
}

func (f *fakeSync) ClearSyncErrors(context.Context) error {
	f.errs = nil
	return nil
}

func (f *fakeSync) Errors(context.Context) ([]*models.SyncError, error) {
	return f.errs, nil
}

func (f *fakeSync) Status(context.Context) (*sync.Status, error) {
	if f.status == nil {
		return &sync.Status{State: sync.StateIdle, Queue: &queue.Status{}}, nil
	}
	return f.status, nil
}

func (f *fakeSync) Pull(context.Context) (*sync.PullResult, error) {
	f.pulls++
	if f.pull == nil {
		return &sync.PullResult{}, nil
	}
	return f.pull, nil
}

func (f *fakeSync) Run(ctx context.Context) {
	<-ctx.Done()
}

func (f *fakeSync) Wait() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waited = true
}

type fakeConflicts struct {
	resolved map[string]models.Resolution
	items    []*models.Conflict
}

func (f *fakeConflicts) List(context.Context) ([]*models.Conflict, error) {
	return f.items, nil
}

func (f *fakeConflicts) Resolve(_ context.Context, id string, choice models.Resolution) (*models.Conflict, error) {
	if f.resolved == nil {
		f.resolved = make(map[string]models.Resolution)
	}
	f.resolved[id] = choice
	for _, c := range f.items {
		if c.ID == id {
			c.Resolved = true
			return c, nil
		}
	}
	return nil, storage.ErrConflictNotFound
}

type fakeMonitor struct {
	state       connectivity.State
	onChange    []func(prev, next connectivity.State)
	onReconnect []func()
	probes      int
	mu          gosync.Mutex
	isRunning   bool
}

func (f *fakeMonitor) State() connectivity.State { return f.state }

func (f *fakeMonitor) Reachability() float64 { return 1 }

func (f *fakeMonitor) Probe(context.Context) connectivity.State {
	f.probes++
	return f.state
}

func (f *fakeMonitor) OnChange(fn func(prev, next connectivity.State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onChange = append(f.onChange, fn)
}

func (f *fakeMonitor) OnReconnect(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onReconnect = append(f.onReconnect, fn)
}

func (f *fakeMonitor) Run(ctx context.Context) {
	f.mu.Lock()
	f.isRunning = true
	f.mu.Unlock()
	<-ctx.Done()
}

func (f *fakeMonitor) running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isRunning
}

// reconnect имитирует восстановление связи
func (f *fakeMonitor) reconnect() {
	f.mu.Lock()
	changes := append([]func(prev, next connectivity.State){}, f.onChange...)
	reconnects := append([]func(){}, f.onReconnect...)
	f.mu.Unlock()

	for _, fn := range changes {
		fn(connectivity.StateDisconnected, connectivity.StateConnected)
	}
	for _, fn := range reconnects {
		fn()
	}
}
