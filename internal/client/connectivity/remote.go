package connectivity

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/iudanet/shoetrack/internal/client/api"
	"github.com/iudanet/shoetrack/internal/models"
	pkgapi "github.com/iudanet/shoetrack/pkg/api"
)

// Observer получает исходы обращений к серверу
type Observer interface {
	RecordSuccess()
	RecordFailure()
}

// trackedRemote сообщает монитору об исходе каждого запроса
type trackedRemote struct {
	api.Remote
	obs Observer
}

// Track оборачивает remote так, что каждый ответ сервера питает сигнал доступности
func Track(remote api.Remote, obs Observer) api.Remote {
	return &trackedRemote{Remote: remote, obs: obs}
}

func (r *trackedRemote) observe(err error) {
	var se *api.StatusError
	switch {
	case err == nil:
		r.obs.RecordSuccess()
	case api.IsTransient(err):
		r.obs.RecordFailure()
	case errors.As(err, &se):
		// 4xx: сервер жив, просто отказал
		r.obs.RecordSuccess()
	}
	// прочие ошибки локальные (нет токена и т.п.) и о сервере ничего не говорят
}

func (r *trackedRemote) Get(ctx context.Context, t models.EntityType, id string) (*pkgapi.Record, error) {
	rec, err := r.Remote.Get(ctx, t, id)
	r.observe(err)
	return rec, err
}

func (r *trackedRemote) List(ctx context.Context, t models.EntityType) ([]pkgapi.Record, error) {
	recs, err := r.Remote.List(ctx, t)
	r.observe(err)
	return recs, err
}

func (r *trackedRemote) Create(ctx context.Context, t models.EntityType, id string, payload json.RawMessage) (*pkgapi.Record, error) {
	rec, err := r.Remote.Create(ctx, t, id, payload)
	r.observe(err)
	return rec, err
}

func (r *trackedRemote) Update(ctx context.Context, t models.EntityType, id string, payload json.RawMessage, ifVersion int64) (*pkgapi.Record, error) {
	rec, err := r.Remote.Update(ctx, t, id, payload, ifVersion)
	r.observe(err)
	return rec, err
}

func (r *trackedRemote) Delete(ctx context.Context, t models.EntityType, id string, ifVersion int64) error {
	err := r.Remote.Delete(ctx, t, id, ifVersion)
	r.observe(err)
	return err
}

func (r *trackedRemote) Ping(ctx context.Context) error {
	err := r.Remote.Ping(ctx)
	r.observe(err)
	return err
}
