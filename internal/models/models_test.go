package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/iudanet/shoetrack/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		entity  Entity
		wantErr bool
	}{
		{
			name:   "valid collection",
			entity: &Collection{ID: "c1", Name: "Road", Color: "#ff0000"},
		},
		{
			name:    "collection with bad color",
			entity:  &Collection{ID: "c1", Name: "Road", Color: "blue"},
			wantErr: true,
		},
		{
			name:   "valid shoe",
			entity: &Shoe{ID: "s1", Name: "Pegasus", Brand: "Nike", MaxMileage: 800},
		},
		{
			name:    "shoe without name",
			entity:  &Shoe{ID: "s1", MaxMileage: 800},
			wantErr: true,
		},
		{
			name:    "shoe with negative mileage",
			entity:  &Shoe{ID: "s1", Name: "Pegasus", CurrentMileage: -3, MaxMileage: 800},
			wantErr: true,
		},
		{
			name:   "valid run",
			entity: &Run{ID: "r1", Date: now, Distance: 10, DurationSeconds: 3000, RunType: RunEasy, ShoeID: "s1"},
		},
		{
			name:    "run with unknown type",
			entity:  &Run{ID: "r1", Date: now, Distance: 10, RunType: "jog"},
			wantErr: true,
		},
		{
			name:    "run without date",
			entity:  &Run{ID: "r1", Distance: 10, RunType: RunEasy},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entity.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, validation.ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseEntityType(t *testing.T) {
	et, err := ParseEntityType("shoe")
	require.NoError(t, err)
	assert.Equal(t, EntityShoe, et)

	_, err = ParseEntityType("sock")
	assert.ErrorIs(t, err, validation.ErrInvalid)
}

func TestOperationPriority(t *testing.T) {
	now := time.Now()

	create := &Operation{Kind: OpCreate}
	update := &Operation{Kind: OpUpdate}
	del := &Operation{Kind: OpDelete}
	retried := &Operation{Kind: OpCreate, RetryCount: 1}
	backoff := &Operation{Kind: OpDelete, NextAttemptAt: now.Add(time.Minute)}

	assert.Equal(t, PriorityImmediate, create.Priority(now))
	assert.Equal(t, PriorityBackground, update.Priority(now))
	assert.Equal(t, PriorityImmediate, del.Priority(now))
	assert.Equal(t, PriorityDeferred, retried.Priority(now))
	assert.Equal(t, PriorityDeferred, backoff.Priority(now))

	assert.True(t, create.Ready(now))
	assert.False(t, backoff.Ready(now))
	assert.False(t, (&Operation{Parked: true}).Ready(now))
	assert.False(t, (&Operation{Exhausted: true}).Ready(now))
}

func TestPayloadsEqual(t *testing.T) {
	assert.True(t, PayloadsEqual([]byte(`{"a":1,"b":"x"}`), []byte(`{"b":"x", "a":1}`)))
	assert.False(t, PayloadsEqual([]byte(`{"a":1}`), []byte(`{"a":2}`)))
	assert.False(t, PayloadsEqual([]byte(`{"a":1}`), nil))
	assert.True(t, PayloadsEqual(nil, nil))
}

func TestDecodeEntity(t *testing.T) {
	payload, err := json.Marshal(&Shoe{ID: "s1", Name: "Pegasus", MaxMileage: 800})
	require.NoError(t, err)

	e, err := DecodeEntity(EntityShoe, payload)
	require.NoError(t, err)
	shoe, ok := e.(*Shoe)
	require.True(t, ok)
	assert.Equal(t, "Pegasus", shoe.Name)

	rec := &Record{Type: EntityShoe, ID: "s1", Payload: payload}
	decoded, err := DecodeRecord[Shoe](rec)
	require.NoError(t, err)
	assert.Equal(t, "s1", decoded.ID)
	assert.Equal(t, "shoe/s1", rec.Key())
}

func TestShoeWearAndRunPace(t *testing.T) {
	s := &Shoe{CurrentMileage: 400, MaxMileage: 800}
	assert.InDelta(t, 50.0, s.WearPercent(), 0.001)

	r := &Run{Distance: 10, DurationSeconds: 3000}
	assert.Equal(t, 5*time.Minute, r.Pace())
	assert.Equal(t, 50*time.Minute, r.Duration())
}
