package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/shoetrack/internal/models"
)

// AppendSyncError добавляет запись в журнал и вытесняет самые старые сверх лимита.
// Квота не проверяется: журнал ограничен по размеру сам.
func (s *Storage) AppendSyncError(ctx context.Context, e *models.SyncError) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal sync error: %w", err)
	}

	return s.update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketSyncErrors)
		if err != nil {
			return err
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(seq), data); err != nil {
			return fmt.Errorf("failed to save sync error: %w", err)
		}

		n := 0
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			n++
		}
		if n <= s.maxSyncErrors {
			return nil
		}

		var evict [][]byte
		for k, _ := c.First(); k != nil && len(evict) < n-s.maxSyncErrors; k, _ = c.Next() {
			evict = append(evict, append([]byte(nil), k...))
		}
		for _, k := range evict {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListSyncErrors returns journal entries, oldest first
func (s *Storage) ListSyncErrors(ctx context.Context) ([]*models.SyncError, error) {
	var entries []*models.SyncError

	err := s.view(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketSyncErrors)
		if err != nil {
			return err
		}
		return b.ForEach(func(_, v []byte) error {
			e := &models.SyncError{}
			if err := json.Unmarshal(v, e); err != nil {
				return fmt.Errorf("failed to unmarshal sync error: %w", err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// ClearSyncErrors empties the journal
func (s *Storage) ClearSyncErrors(ctx context.Context) error {
	return s.update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketSyncErrors); err != nil {
			return fmt.Errorf("failed to clear sync errors: %w", err)
		}
		_, err := tx.CreateBucket(bucketSyncErrors)
		return err
	})
}
