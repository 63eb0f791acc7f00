package sync

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"
	"time"

	"github.com/iudanet/shoetrack/internal/client/api"
	"github.com/iudanet/shoetrack/internal/models"
	pkgapi "github.com/iudanet/shoetrack/pkg/api"
)

// stubRemote версионированный сервер в памяти с той же семантикой, что и настоящий
type stubRemote struct {
	records map[string]*pkgapi.Record
	failAll error
	// block, если задан, держит Create до закрытия канала
	block   chan struct{}
	entered chan struct{}
	delay   time.Duration
	calls   int
	mu      gosync.Mutex
}

func newStubRemote() *stubRemote {
	return &stubRemote{records: make(map[string]*pkgapi.Record)}
}

func (r *stubRemote) begin(ctx context.Context) error {
	r.mu.Lock()
	r.calls++
	fail := r.failAll
	delay := r.delay
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", api.ErrUnavailable, ctx.Err())
		}
	}
	return fail
}

func (r *stubRemote) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *stubRemote) setFailure(err error) {
	r.mu.Lock()
	r.failAll = err
	r.mu.Unlock()
}

// put меняет запись "на сервере" в обход клиента
func (r *stubRemote) put(t models.EntityType, id string, payload string) *pkgapi.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := models.EntityKey(t, id)
	var version int64 = 1
	if cur, ok := r.records[key]; ok {
		version = cur.Version + 1
	}
	rec := &pkgapi.Record{Type: string(t), ID: id, Payload: json.RawMessage(payload), Version: version}
	r.records[key] = rec
	return rec
}

func (r *stubRemote) remove(t models.EntityType, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, models.EntityKey(t, id))
}

func (r *stubRemote) record(t models.EntityType, id string) (*pkgapi.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[models.EntityKey(t, id)]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

func (r *stubRemote) Get(ctx context.Context, t models.EntityType, id string) (*pkgapi.Record, error) {
	if err := r.begin(ctx); err != nil {
		return nil, err
	}
	rec, ok := r.record(t, id)
	if !ok {
		return nil, api.ErrNotFound
	}
	return rec, nil
}

func (r *stubRemote) List(ctx context.Context, t models.EntityType) ([]pkgapi.Record, error) {
	if err := r.begin(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []pkgapi.Record
	for _, rec := range r.records {
		if rec.Type == string(t) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *stubRemote) Create(ctx context.Context, t models.EntityType, id string, payload json.RawMessage) (*pkgapi.Record, error) {
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}
	if err := r.begin(ctx); err != nil {
		return nil, err
	}
	if _, ok := r.record(t, id); ok {
		return nil, fmt.Errorf("create: %w", api.ErrWriteConflict)
	}
	return r.put(t, id, string(payload)), nil
}

func (r *stubRemote) Update(ctx context.Context, t models.EntityType, id string, payload json.RawMessage, ifVersion int64) (*pkgapi.Record, error) {
	if err := r.begin(ctx); err != nil {
		return nil, err
	}
	cur, ok := r.record(t, id)
	switch {
	case !ok && ifVersion != 0:
		return nil, api.ErrNotFound
	case ok && ifVersion != 0 && cur.Version != ifVersion:
		return nil, fmt.Errorf("update: %w", api.ErrWriteConflict)
	}
	return r.put(t, id, string(payload)), nil
}

func (r *stubRemote) Delete(ctx context.Context, t models.EntityType, id string, ifVersion int64) error {
	if err := r.begin(ctx); err != nil {
		return err
	}
	cur, ok := r.record(t, id)
	switch {
	case !ok:
		return api.ErrNotFound
	case ifVersion != 0 && cur.Version != ifVersion:
		return fmt.Errorf("delete: %w", api.ErrWriteConflict)
	}
	r.remove(t, id)
	return nil
}

func (r *stubRemote) Ping(ctx context.Context) error {
	return r.begin(ctx)
}
