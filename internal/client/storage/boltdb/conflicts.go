package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/models"
)

// SaveConflict stores or replaces a conflict record
func (s *Storage) SaveConflict(ctx context.Context, c *models.Conflict) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal conflict: %w", err)
	}

	return s.update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketConflicts)
		if err != nil {
			return err
		}
		if err := s.checkQuota(tx, len(data)); err != nil {
			return err
		}
		return b.Put([]byte(c.ID), data)
	})
}

// GetConflict retrieves a conflict by id
func (s *Storage) GetConflict(ctx context.Context, id string) (*models.Conflict, error) {
	var c *models.Conflict

	err := s.view(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketConflicts)
		if err != nil {
			return err
		}

		data := b.Get([]byte(id))
		if data == nil {
			return storage.ErrConflictNotFound
		}

		c = &models.Conflict{}
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to unmarshal conflict: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

// ListConflicts returns all stored conflicts, oldest first
func (s *Storage) ListConflicts(ctx context.Context) ([]*models.Conflict, error) {
	var conflicts []*models.Conflict

	err := s.view(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketConflicts)
		if err != nil {
			return err
		}
		return b.ForEach(func(_, v []byte) error {
			c := &models.Conflict{}
			if err := json.Unmarshal(v, c); err != nil {
				return fmt.Errorf("failed to unmarshal conflict: %w", err)
			}
			conflicts = append(conflicts, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].DetectedAt.Before(conflicts[j].DetectedAt)
	})
	return conflicts, nil
}

// DeleteConflict removes a conflict; returns ErrConflictNotFound for unknown id
func (s *Storage) DeleteConflict(ctx context.Context, id string) error {
	return s.update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketConflicts)
		if err != nil {
			return err
		}
		if b.Get([]byte(id)) == nil {
			return storage.ErrConflictNotFound
		}
		return b.Delete([]byte(id))
	})
}
