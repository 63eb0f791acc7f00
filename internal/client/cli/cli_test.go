package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shoetrack/internal/client/auth"
	"github.com/iudanet/shoetrack/internal/client/conflict"
	"github.com/iudanet/shoetrack/internal/client/connectivity"
	"github.com/iudanet/shoetrack/internal/client/dashboard"
	"github.com/iudanet/shoetrack/internal/client/data"
	"github.com/iudanet/shoetrack/internal/client/iocli"
	"github.com/iudanet/shoetrack/internal/client/queue"
	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/client/storage/boltdb"
	"github.com/iudanet/shoetrack/internal/client/store"
	"github.com/iudanet/shoetrack/internal/client/sync"
	"github.com/iudanet/shoetrack/internal/models"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv настоящие хранилище и data сервис, сеть и авторизация подменены
type testEnv struct {
	cli       *Cli
	auth      *fakeAuth
	sync      *fakeSync
	conflicts *fakeConflicts
	monitor   *fakeMonitor
	data      data.Service
	closed    int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "cli.db"), boltdb.WithMaxBytes(64<<20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := setupTestLogger()
	q := queue.New(st, logger, queue.DefaultPolicy())
	local := store.New(st, q, logger)
	dataSvc := data.NewService(local, logger)

	env := &testEnv{
		auth:      &fakeAuth{},
		sync:      &fakeSync{result: &sync.Result{State: sync.StateIdle}},
		conflicts: &fakeConflicts{},
		monitor:   &fakeMonitor{state: connectivity.StateConnected},
		data:      dataSvc,
	}
	env.cli = &Cli{
		Auth:      env.auth,
		Data:      dataSvc,
		Sync:      env.sync,
		Conflicts: env.conflicts,
		Dashboard: dashboard.NewBuilder(dataSvc),
		Stats:     local,
		Usage:     st,
		Monitor:   env.monitor,
		Now:       func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) },
	}
	return env
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// execute запускает команду с указанным вводом и возвращает вывод
func (e *testEnv) execute(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	e.cli.IO = iocli.NewStream(strings.NewReader(input), &out)

	app := New(func(_ *cobra.Command) (*Cli, io.Closer, error) {
		return e.cli, closerFunc(func() error { e.closed++; return nil }), nil
	})
	err := app.Execute(context.Background(), args)
	return out.String(), err
}

func (e *testEnv) mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.execute(t, "", args...)
	require.NoError(t, err, out)
	return out
}

func TestCollectionCommands(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustExecute(t, "collection", "add", "Road", "--color", "#ff8800")
	assert.Contains(t, out, `Collection "Road" added`)
	env.mustExecute(t, "collection", "add", "Trail")

	out = env.mustExecute(t, "collection", "list")
	assert.Contains(t, out, "Road")
	assert.Contains(t, out, "#ff8800")

	out = env.mustExecute(t, "collection", "archive", "trail")
	assert.Contains(t, out, `Collection "Trail" archived`)

	out = env.mustExecute(t, "collection", "list")
	assert.NotContains(t, out, "Trail")

	out = env.mustExecute(t, "collection", "list", "--all")
	assert.Contains(t, out, "Trail")

	_, err := env.execute(t, "", "collection", "add", "Bad", "--color", "orange")
	assert.Error(t, err)
}

func TestShoeAndRunFlow(t *testing.T) {
	env := newTestEnv(t)

	env.mustExecute(t, "collection", "add", "Road")
	out := env.mustExecute(t, "shoe", "add", "Pegasus", "--brand", "Nike", "--collection", "road",
		"--max-mileage", "500", "--purchased", "2024-01-10")
	assert.Contains(t, out, `Shoe "Pegasus" added`)
	assert.Contains(t, out, "500.0 km")

	out = env.mustExecute(t, "run", "log", "10", "--shoe", "pegasus", "--date", "2024-03-01",
		"--duration", "50m", "--type", "tempo")
	assert.Contains(t, out, "Logged 10.0 km tempo run on 2024-03-01")

	shoes, err := env.data.ListShoes(context.Background(), "", false)
	require.NoError(t, err)
	require.Len(t, shoes, 1)
	assert.InDelta(t, 10.0, shoes[0].CurrentMileage, 0.001)

	out = env.mustExecute(t, "shoe", "list")
	assert.Contains(t, out, "Pegasus")
	assert.Contains(t, out, "10.0 km")
	assert.Contains(t, out, "2%")

	out = env.mustExecute(t, "run", "list")
	assert.Contains(t, out, "2024-03-01")
	assert.Contains(t, out, "5:00 /km")

	out = env.mustExecute(t, "shoe", "show", "Pegasus")
	assert.Contains(t, out, "Runs: 1")
	assert.Contains(t, out, "Purchased: 2024-01-10")

	// на кроссовках есть пробежка
	_, err = env.execute(t, "", "shoe", "delete", "pegasus", "--yes")
	assert.ErrorIs(t, err, data.ErrShoeInUse)

	runs, err := env.data.ListRuns(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	env.mustExecute(t, "run", "delete", runs[0].ID[:6])

	shoe, err := env.data.GetShoe(context.Background(), shoes[0].ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, shoe.CurrentMileage, 0.001)

	out, err = env.execute(t, "n\n", "shoe", "delete", "pegasus")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")

	out, err = env.execute(t, "y\n", "shoe", "delete", "pegasus")
	require.NoError(t, err)
	assert.Contains(t, out, `Shoe "Pegasus" deleted`)
}

func TestRunLog_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.mustExecute(t, "shoe", "add", "Old")
	env.mustExecute(t, "shoe", "retire", "old")

	tests := []struct {
		name string
		args []string
	}{
		{name: "distance not a number", args: []string{"run", "log", "ten"}},
		{name: "unknown date", args: []string{"run", "log", "5", "--date", "whenever you like"}},
		{name: "unknown run type", args: []string{"run", "log", "5", "--type", "sprint"}},
		{name: "unknown shoe", args: []string{"run", "log", "5", "--shoe", "missing"}},
		{name: "retired shoe", args: []string{"run", "log", "5", "--shoe", "old"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.execute(t, "", tt.args...)
			assert.Error(t, err)
		})
	}

	runs, err := env.data.ListRuns(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestDashboardAndStats(t *testing.T) {
	env := newTestEnv(t)
	env.mustExecute(t, "shoe", "add", "Pegasus", "--max-mileage", "100", "--mileage", "95")
	env.mustExecute(t, "run", "log", "8", "--shoe", "Pegasus", "--date", "yesterday")

	out := env.mustExecute(t, "dashboard")
	assert.Contains(t, out, "Runs: 1 total")
	assert.Contains(t, out, "Time to replace: [Pegasus]")

	out = env.mustExecute(t, "stats")
	assert.Contains(t, out, "total")
	assert.Contains(t, out, "Database file:")
	assert.Regexp(t, `shoe\s+1\s+1`, out)
}

func TestAuthCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute(t, "secret-pass\nsecret-pass\n", "register", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered alice")
	assert.Equal(t, "alice", env.auth.registered)

	_, err = env.execute(t, "secret-pass\nother-pass\n", "register", "bob")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	_, err = env.execute(t, "secret-pass\n", "register", "a!")
	assert.Error(t, err)

	env.sync.status = &sync.Status{PendingOperations: 2, Queue: &queue.Status{Total: 2}}
	out, err = env.execute(t, "alice\nsecret-pass\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice")
	assert.Contains(t, out, "2 change(s) waiting to sync")

	env.auth.loginErr = auth.ErrNotAuthenticated
	_, err = env.execute(t, "wrong\n", "login", "alice")
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)

	out = env.mustExecute(t, "logout")
	assert.Contains(t, out, "Logged out")
	assert.True(t, env.auth.loggedOut)
}

func TestSyncCommands(t *testing.T) {
	env := newTestEnv(t)

	env.sync.result = &sync.Result{State: sync.StateIdle, Attempted: 3, Succeeded: 2, Conflicts: 1}
	env.sync.pull = &sync.PullResult{Updated: 4}
	out := env.mustExecute(t, "sync")
	assert.Contains(t, out, "Sent 2 of 3 change(s)")
	assert.Contains(t, out, "1 conflict(s)")
	assert.Contains(t, out, "Pulled: 4 updated")
	assert.Equal(t, []sync.Trigger{sync.TriggerManual}, env.sync.triggers)

	env.sync.result = &sync.Result{State: sync.StateError, Attempted: 1, Exhausted: 1}
	out, err := env.execute(t, "", "sync", "--pull=false")
	assert.ErrorIs(t, err, ErrSyncIncomplete)
	assert.Contains(t, out, "force-sync")
	assert.NotContains(t, out, "Pulled")

	env.sync.result = &sync.Result{State: sync.StateError, AuthFailed: true}
	_, err = env.execute(t, "", "sync")
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	assert.Equal(t, 1, env.sync.pulls, "pull is skipped without a valid token")

	env.sync.result = &sync.Result{State: sync.StateIdle, Attempted: 1, Succeeded: 1}
	out = env.mustExecute(t, "force-sync")
	assert.Contains(t, out, "Sent 1 of 1")
	assert.True(t, env.sync.forced)
}

func TestConflictCommands(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustExecute(t, "conflicts")
	assert.Contains(t, out, "No conflicts")

	env.conflicts.items = []*models.Conflict{{
		ID:            "c0ffee00-1111-2222-3333-444444444444",
		EntityType:    models.EntityShoe,
		EntityID:      "s1",
		Kind:          models.OpUpdate,
		RemoteVersion: 3,
		DetectedAt:    time.Now().Add(-time.Hour),
	}}
	out = env.mustExecute(t, "conflicts")
	assert.Contains(t, out, "c0ffee00")
	assert.Contains(t, out, "v3")

	_, err := env.execute(t, "", "resolve", "c0ffee", "mine")
	assert.ErrorIs(t, err, conflict.ErrInvalidResolution)

	out = env.mustExecute(t, "resolve", "c0ffee", "local")
	assert.Contains(t, out, "Keeping local shoe/s1")
	assert.Equal(t, models.ResolveLocal, env.conflicts.resolved["c0ffee00-1111-2222-3333-444444444444"])

	_, err = env.execute(t, "", "resolve", "deadbeef", "remote")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestErrorsCommands(t *testing.T) {
	env := newTestEnv(t)

	env.sync.errs = []*models.SyncError{{
		OccurredAt: time.Now(),
		Class:      models.ErrorRejected,
		EntityType: models.EntityRun,
		EntityID:   "r1",
		Message:    "distance too large",
		Attempt:    1,
	}}
	out := env.mustExecute(t, "errors")
	assert.Contains(t, out, "distance too large")
	assert.Contains(t, out, "run/r1")
	assert.Equal(t, out, env.mustExecute(t, "errors", "list"))

	out = env.mustExecute(t, "errors", "clear")
	assert.Contains(t, out, "cleared")
	assert.Empty(t, env.sync.errs)

	out = env.mustExecute(t, "errors")
	assert.Contains(t, out, "No sync errors")
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)

	env.auth.current = &storage.AuthData{Username: "alice", ExpiresAt: time.Now().Add(time.Hour)}
	env.sync.status = &sync.Status{
		State:             sync.StateError,
		PendingOperations: 3,
		Conflicts:         1,
		Queue:             &queue.Status{Immediate: 1, Deferred: 1, Exhausted: 1, Parked: 1, Total: 3},
	}
	out := env.mustExecute(t, "status")
	assert.Contains(t, out, "User: alice")
	assert.Contains(t, out, "Server: connected")
	assert.Contains(t, out, "State: error")
	assert.Contains(t, out, "Pending: 3 change(s)")
	assert.Contains(t, out, "ran out of attempts 1")
	assert.Contains(t, out, "1 conflict(s)")
	assert.Equal(t, 1, env.monitor.probes)

	env.auth.current = nil
	env.sync.status = &sync.Status{State: sync.StateIdle, Queue: &queue.Status{}}
	out = env.mustExecute(t, "status", "--offline")
	assert.Contains(t, out, "Not logged in")
	assert.Contains(t, out, "All changes synced")
	assert.Equal(t, 1, env.monitor.probes)
}

func TestWatch_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t)

	var out bytes.Buffer
	env.cli.IO = iocli.NewStream(strings.NewReader(""), &out)
	app := New(func(_ *cobra.Command) (*Cli, io.Closer, error) {
		return env.cli, closerFunc(func() error { env.closed++; return nil }), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Execute(ctx, []string{"watch"}) }()

	require.Eventually(t, func() bool { return env.monitor.running() }, time.Second, 5*time.Millisecond)
	env.monitor.reconnect()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Equal(t, 1, env.closed)
	assert.Contains(t, env.sync.requested(), sync.TriggerConnectivity)
	assert.True(t, env.sync.waited)
}

func TestSetupErrorIsReturned(t *testing.T) {
	app := New(func(_ *cobra.Command) (*Cli, io.Closer, error) {
		return nil, nil, assert.AnError
	})
	err := app.Execute(context.Background(), []string{"status"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestCloserRunsOnCommandError(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.execute(t, "", "shoe", "retire", "missing")
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, 1, env.closed)
}

func TestHelpDoesNotOpenStorage(t *testing.T) {
	setupCalled := false
	app := New(func(_ *cobra.Command) (*Cli, io.Closer, error) {
		setupCalled = true
		return nil, nil, assert.AnError
	})

	var out bytes.Buffer
	app.Command().SetOut(&out)
	require.NoError(t, app.Execute(context.Background(), []string{"help", "shoe"}))
	assert.False(t, setupCalled)
	assert.Contains(t, out.String(), "retire")
}
