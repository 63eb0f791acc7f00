package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/models"
)

// seqKey big-endian, чтобы порядок ключей bbolt совпадал с порядком постановки в очередь
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// AppendOperation adds operation to the tail of the queue
func (s *Storage) AppendOperation(ctx context.Context, op *models.Operation) error {
	return s.update(func(tx *bbolt.Tx) error {
		return s.appendOperation(tx, op)
	})
}

// appendOperation назначает op следующий Seq и кладёт её в хвост
func (s *Storage) appendOperation(tx *bbolt.Tx, op *models.Operation) error {
	b, err := bucket(tx, bucketQueue)
	if err != nil {
		return err
	}

	seq, err := b.NextSequence()
	if err != nil {
		return fmt.Errorf("failed to allocate queue sequence: %w", err)
	}
	op.Seq = seq

	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}
	if err := s.checkQuota(tx, len(data)); err != nil {
		return err
	}

	if err := b.Put(seqKey(seq), data); err != nil {
		return fmt.Errorf("failed to save operation: %w", err)
	}
	return nil
}

// SaveOperation stores operation under its existing Seq
func (s *Storage) SaveOperation(ctx context.Context, op *models.Operation) error {
	if op.Seq == 0 {
		return fmt.Errorf("operation %s has no sequence number", op.ID)
	}

	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}

	return s.update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketQueue)
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(op.Seq), data); err != nil {
			return fmt.Errorf("failed to save operation: %w", err)
		}
		return nil
	})
}

// ListOperations returns all queued operations in Seq order
func (s *Storage) ListOperations(ctx context.Context) ([]*models.Operation, error) {
	var ops []*models.Operation

	err := s.view(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketQueue)
		if err != nil {
			return err
		}

		return b.ForEach(func(k, v []byte) error {
			op := &models.Operation{}
			if err := json.Unmarshal(v, op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			ops = append(ops, op)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return ops, nil
}

// TakeOperations removes picked operations in a single transaction
func (s *Storage) TakeOperations(ctx context.Context, pick func(op *models.Operation) bool) ([]*models.Operation, error) {
	var taken []*models.Operation

	err := s.update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketQueue)
		if err != nil {
			return err
		}

		var keys [][]byte
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			op := &models.Operation{}
			if err := json.Unmarshal(v, op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			if pick(op) {
				taken = append(taken, op)
				// ключ копируем: память bbolt действительна только внутри транзакции
				keys = append(keys, append([]byte(nil), k...))
			}
		}

		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("failed to remove operation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return taken, nil
}

// ClearOperations removes all operations but keeps the bucket sequence,
// so Seq of operations restored after an in-flight drain never collides
func (s *Storage) ClearOperations(ctx context.Context) error {
	return s.update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketQueue)
		if err != nil {
			return err
		}

		var keys [][]byte
		if err := b.ForEach(func(k, _ []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("failed to clear queue: %w", err)
			}
		}
		return nil
	})
}

var _ storage.QueueStorage = (*Storage)(nil)
