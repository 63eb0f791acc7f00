package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/models"
)

// GetRecord retrieves a cached record by type and id
func (s *Storage) GetRecord(ctx context.Context, t models.EntityType, id string) (*models.Record, error) {
	var rec *models.Record

	err := s.view(func(tx *bbolt.Tx) error {
		b, err := recordsBucket(tx, t)
		if err != nil {
			return err
		}

		data := b.Get([]byte(id))
		if data == nil {
			return storage.ErrRecordNotFound
		}

		rec = &models.Record{}
		if err := json.Unmarshal(data, rec); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// ListRecords returns all records of the type (bbolt keeps keys sorted)
func (s *Storage) ListRecords(ctx context.Context, t models.EntityType) ([]*models.Record, error) {
	var records []*models.Record

	err := s.view(func(tx *bbolt.Tx) error {
		b, err := recordsBucket(tx, t)
		if err != nil {
			return err
		}

		return b.ForEach(func(k, v []byte) error {
			rec := &models.Record{}
			if err := json.Unmarshal(v, rec); err != nil {
				return fmt.Errorf("failed to unmarshal record %s: %w", k, err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// SaveRecord stores or replaces a record
func (s *Storage) SaveRecord(ctx context.Context, rec *models.Record) error {
	return s.update(func(tx *bbolt.Tx) error {
		return s.putRecord(tx, rec)
	})
}

// DeleteRecord removes a record, missing record is ignored
func (s *Storage) DeleteRecord(ctx context.Context, t models.EntityType, id string) error {
	return s.update(func(tx *bbolt.Tx) error {
		return deleteRecord(tx, t, id)
	})
}

// CommitChanges writes records and their queue operations atomically
func (s *Storage) CommitChanges(ctx context.Context, changes []storage.Change) error {
	err := s.update(func(tx *bbolt.Tx) error {
		for _, c := range changes {
			if c.Record != nil {
				if err := s.putRecord(tx, c.Record); err != nil {
					return err
				}
			} else if err := deleteRecord(tx, c.Type, c.ID); err != nil {
				return err
			}

			if c.Op != nil {
				if err := s.appendOperation(tx, c.Op); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		// транзакция откатилась, номера очереди недействительны
		for _, c := range changes {
			if c.Op != nil {
				c.Op.Seq = 0
			}
		}
		return err
	}
	return nil
}

func (s *Storage) putRecord(tx *bbolt.Tx, rec *models.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := s.checkQuota(tx, len(data)); err != nil {
		return err
	}

	b, err := recordsBucket(tx, rec.Type)
	if err != nil {
		return err
	}
	if err := b.Put([]byte(rec.ID), data); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func deleteRecord(tx *bbolt.Tx, t models.EntityType, id string) error {
	b, err := recordsBucket(tx, t)
	if err != nil {
		return err
	}
	if err := b.Delete([]byte(id)); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// RecordSizes считает количество записей и занимаемые байты (ключ + значение) по типам
func (s *Storage) RecordSizes(ctx context.Context) (map[models.EntityType]models.TypeStats, error) {
	result := make(map[models.EntityType]models.TypeStats, len(models.EntityTypes))

	err := s.view(func(tx *bbolt.Tx) error {
		for _, t := range models.EntityTypes {
			b, err := recordsBucket(tx, t)
			if err != nil {
				return err
			}

			var st models.TypeStats
			if err := b.ForEach(func(k, v []byte) error {
				st.Count++
				st.Bytes += int64(len(k) + len(v))
				return nil
			}); err != nil {
				return err
			}
			result[t] = st
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

var _ storage.RecordStorage = (*Storage)(nil)
