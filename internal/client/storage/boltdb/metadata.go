package boltdb

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// SaveTime сохраняет метку времени в bucket метаданных (RFC3339Nano)
func (s *Storage) SaveTime(ctx context.Context, key string, at time.Time) error {
	value, err := at.UTC().MarshalText()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	return s.update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketMetadata)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(key), value); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
		return nil
	})
}

// GetTime returns zero time if nothing was saved under key
func (s *Storage) GetTime(ctx context.Context, key string) (time.Time, error) {
	var at time.Time

	err := s.view(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketMetadata)
		if err != nil {
			return err
		}

		value := b.Get([]byte(key))
		if value == nil {
			return nil
		}
		return at.UnmarshalText(value)
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get %s: %w", key, err)
	}

	return at, nil
}
