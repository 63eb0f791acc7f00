package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/shoetrack/internal/server/storage"
)

// querier общий интерфейс *sql.DB и *sql.Tx для чтения записи
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectRecord = `
	SELECT user_id, type, id, payload, version, deleted, updated_at
	FROM records
	WHERE user_id = ? AND type = ? AND id = ?
`

// loadRecord возвращает запись вместе с tombstone, либо ErrRecordNotFound если строки нет
func loadRecord(ctx context.Context, q querier, userID, recordType, id string) (*storage.Record, error) {
	var (
		rec       storage.Record
		payload   []byte
		updatedAt int64
	)
	err := q.QueryRowContext(ctx, selectRecord, userID, recordType, id).Scan(
		&rec.UserID,
		&rec.Type,
		&rec.ID,
		&payload,
		&rec.Version,
		&rec.Deleted,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	rec.Payload = json.RawMessage(payload)
	rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &rec, nil
}

// GetRecord returns live record by id
func (s *Storage) GetRecord(ctx context.Context, userID, recordType, id string) (*storage.Record, error) {
	rec, err := loadRecord(ctx, s.db, userID, recordType, id)
	if err != nil {
		return nil, err
	}
	if rec.Deleted {
		return nil, storage.ErrRecordNotFound
	}
	return rec, nil
}

// ListRecords returns live records of the type
func (s *Storage) ListRecords(ctx context.Context, userID, recordType string) ([]storage.Record, error) {
	query := `
		SELECT user_id, type, id, payload, version, deleted, updated_at
		FROM records
		WHERE user_id = ? AND type = ? AND deleted = 0
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, userID, recordType)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]storage.Record, 0)
	for rows.Next() {
		var (
			rec       storage.Record
			payload   []byte
			updatedAt int64
		)
		if err := rows.Scan(&rec.UserID, &rec.Type, &rec.ID, &payload, &rec.Version, &rec.Deleted, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Payload = json.RawMessage(payload)
		rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

// CreateRecord inserts a new record or revives a tombstone
func (s *Storage) CreateRecord(ctx context.Context, userID, recordType, id string, payload json.RawMessage) (*storage.Record, error) {
	var created *storage.Record
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := loadRecord(ctx, tx, userID, recordType, id)
		switch {
		case errors.Is(err, storage.ErrRecordNotFound):
			created, err = s.insertRecord(ctx, tx, userID, recordType, id, payload)
			return err
		case err != nil:
			return err
		case !current.Deleted:
			return &storage.ConflictError{Current: current, Err: storage.ErrRecordExists}
		}
		created, err = s.writeRecord(ctx, tx, current, payload, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateRecord writes payload under optimistic version check
func (s *Storage) UpdateRecord(ctx context.Context, userID, recordType, id string, payload json.RawMessage, ifVersion int64) (*storage.Record, error) {
	var updated *storage.Record
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := loadRecord(ctx, tx, userID, recordType, id)
		missing := errors.Is(err, storage.ErrRecordNotFound) || (err == nil && current.Deleted)
		if err != nil && !missing {
			return err
		}

		if missing {
			if ifVersion != 0 {
				return storage.ErrRecordNotFound
			}
			if current == nil {
				updated, err = s.insertRecord(ctx, tx, userID, recordType, id, payload)
				return err
			}
			updated, err = s.writeRecord(ctx, tx, current, payload, false)
			return err
		}

		if ifVersion != 0 && ifVersion != current.Version {
			return &storage.ConflictError{Current: current, Err: storage.ErrVersionMismatch}
		}
		updated, err = s.writeRecord(ctx, tx, current, payload, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteRecord replaces live record with a tombstone
func (s *Storage) DeleteRecord(ctx context.Context, userID, recordType, id string, ifVersion int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := loadRecord(ctx, tx, userID, recordType, id)
		if err != nil {
			return err
		}
		if current.Deleted {
			return storage.ErrRecordNotFound
		}
		if ifVersion != 0 && ifVersion != current.Version {
			return &storage.ConflictError{Current: current, Err: storage.ErrVersionMismatch}
		}
		_, err = s.writeRecord(ctx, tx, current, current.Payload, true)
		return err
	})
}

func (s *Storage) insertRecord(ctx context.Context, tx *sql.Tx, userID, recordType, id string, payload json.RawMessage) (*storage.Record, error) {
	rec := &storage.Record{
		UserID:    userID,
		Type:      recordType,
		ID:        id,
		Payload:   payload,
		Version:   1,
		UpdatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	query := `
		INSERT INTO records (user_id, type, id, payload, version, deleted, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`
	if _, err := tx.ExecContext(ctx, query,
		rec.UserID, rec.Type, rec.ID, []byte(rec.Payload), rec.Version, rec.UpdatedAt.UnixMilli(),
	); err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}
	return rec, nil
}

// writeRecord пишет следующую версию существующей строки
func (s *Storage) writeRecord(ctx context.Context, tx *sql.Tx, current *storage.Record, payload json.RawMessage, deleted bool) (*storage.Record, error) {
	rec := *current
	rec.Payload = payload
	rec.Version = current.Version + 1
	rec.Deleted = deleted
	rec.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)

	query := `
		UPDATE records
		SET payload = ?, version = ?, deleted = ?, updated_at = ?
		WHERE user_id = ? AND type = ? AND id = ? AND version = ?
	`
	result, err := tx.ExecContext(ctx, query,
		[]byte(rec.Payload), rec.Version, boolToInt(rec.Deleted), rec.UpdatedAt.UnixMilli(),
		rec.UserID, rec.Type, rec.ID, current.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, &storage.ConflictError{Err: storage.ErrVersionMismatch}
	}
	return &rec, nil
}

func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
