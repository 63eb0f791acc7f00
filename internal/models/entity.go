package models

import (
	"fmt"
	"time"

	"github.com/iudanet/shoetrack/internal/validation"
)

// EntityType тип кэшируемой сущности
type EntityType string

const (
	EntityCollection EntityType = "collection"
	EntityShoe       EntityType = "shoe"
	EntityRun        EntityType = "run"
)

// EntityTypes все поддерживаемые типы в порядке зависимостей:
// коллекции раньше кроссовок, кроссовки раньше пробежек
var EntityTypes = []EntityType{EntityCollection, EntityShoe, EntityRun}

// Valid проверяет, что тип поддерживается
func (t EntityType) Valid() bool {
	switch t {
	case EntityCollection, EntityShoe, EntityRun:
		return true
	}
	return false
}

// ParseEntityType разбирает тип из строки (CLI, URL)
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown entity type %q: %w", s, validation.ErrInvalid)
	}
	return t, nil
}

// Entity общий контракт для Collection, Shoe и Run
type Entity interface {
	EntityID() string
	EntityType() EntityType
	Validate() error
}

// Collection группа кроссовок (например, "Road", "Trail")
type Collection struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	Archived    bool      `json:"archived"`
}

func (c *Collection) EntityID() string       { return c.ID }
func (c *Collection) EntityType() EntityType { return EntityCollection }

// Validate проверяет коллекцию перед записью в локальное хранилище
func (c *Collection) Validate() error {
	if err := validation.ValidateID("id", c.ID); err != nil {
		return err
	}
	if err := validation.ValidateName("name", c.Name); err != nil {
		return err
	}
	if err := validation.ValidateText("description", c.Description); err != nil {
		return err
	}
	return validation.ValidateColor(c.Color)
}

// Shoe пара кроссовок с накопленным пробегом
type Shoe struct {
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	PurchaseDate   *time.Time `json:"purchase_date,omitempty"`
	RetiredAt      *time.Time `json:"retired_at,omitempty"`
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Model          string     `json:"model,omitempty"`
	Brand          string     `json:"brand,omitempty"`
	CollectionID   string     `json:"collection_id,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CurrentMileage float64    `json:"current_mileage"`
	MaxMileage     float64    `json:"max_mileage"`
	PurchasePrice  float64    `json:"purchase_price,omitempty"`
	Retired        bool       `json:"retired"`
}

func (s *Shoe) EntityID() string       { return s.ID }
func (s *Shoe) EntityType() EntityType { return EntityShoe }

func (s *Shoe) Validate() error {
	if err := validation.ValidateID("id", s.ID); err != nil {
		return err
	}
	if err := validation.ValidateName("name", s.Name); err != nil {
		return err
	}
	if s.CollectionID != "" {
		if err := validation.ValidateID("collection_id", s.CollectionID); err != nil {
			return err
		}
	}
	if err := validation.ValidateMileage(s.CurrentMileage, s.MaxMileage); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("purchase_price", s.PurchasePrice, 0); err != nil {
		return err
	}
	return validation.ValidateText("notes", s.Notes)
}

// WearPercent доля израсходованного ресурса, может быть больше 100
func (s *Shoe) WearPercent() float64 {
	if s.MaxMileage <= 0 {
		return 0
	}
	return s.CurrentMileage / s.MaxMileage * 100
}

// RunType классификация тренировки
type RunType string

const (
	RunEasy     RunType = "easy"
	RunTempo    RunType = "tempo"
	RunInterval RunType = "interval"
	RunLong     RunType = "long"
	RunRace     RunType = "race"
	RunRecovery RunType = "recovery"
	RunTrail    RunType = "trail"
)

// RunTypes допустимые типы пробежек
var RunTypes = []RunType{RunEasy, RunTempo, RunInterval, RunLong, RunRace, RunRecovery, RunTrail}

// Run одна тренировка
type Run struct {
	Date            time.Time `json:"date"`
	CreatedAt       time.Time `json:"created_at"`
	ID              string    `json:"id"`
	ShoeID          string    `json:"shoe_id,omitempty"`
	RunType         RunType   `json:"run_type"`
	Notes           string    `json:"notes,omitempty"`
	Distance        float64   `json:"distance"`
	DurationSeconds int64     `json:"duration_seconds"`
}

func (r *Run) EntityID() string       { return r.ID }
func (r *Run) EntityType() EntityType { return EntityRun }

func (r *Run) Validate() error {
	if err := validation.ValidateID("id", r.ID); err != nil {
		return err
	}
	if err := validation.ValidateRunDate(r.Date, time.Now()); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("distance", r.Distance, validation.MaxRunDistance); err != nil {
		return err
	}
	if r.DurationSeconds < 0 {
		return &validation.FieldError{Field: "duration_seconds", Reason: "must not be negative"}
	}
	if r.ShoeID != "" {
		if err := validation.ValidateID("shoe_id", r.ShoeID); err != nil {
			return err
		}
	}
	allowed := make([]string, len(RunTypes))
	for i, rt := range RunTypes {
		allowed[i] = string(rt)
	}
	if err := validation.ValidateOneOf("run_type", string(r.RunType), allowed); err != nil {
		return err
	}
	return validation.ValidateText("notes", r.Notes)
}

// Duration длительность пробежки
func (r *Run) Duration() time.Duration {
	return time.Duration(r.DurationSeconds) * time.Second
}

// Pace темп в секундах на километр, 0 если дистанция нулевая
func (r *Run) Pace() time.Duration {
	if r.Distance <= 0 {
		return 0
	}
	return time.Duration(float64(r.DurationSeconds)/r.Distance) * time.Second
}
