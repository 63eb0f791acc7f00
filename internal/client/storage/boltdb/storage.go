package boltdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/models"
)

var (
	// BoltDB bucket names
	bucketAuth       = []byte("auth")
	bucketMetadata   = []byte("metadata")
	bucketRecords    = []byte("records") // вложенные buckets по типу сущности
	bucketQueue      = []byte("queue")
	bucketConflicts  = []byte("conflicts")
	bucketSyncErrors = []byte("sync_errors")
)

// DefaultMaxSyncErrors сколько записей хранит журнал ошибок
const DefaultMaxSyncErrors = 200

// Storage represents BoltDB storage implementation for client
type Storage struct {
	db            *bbolt.DB
	maxBytes      int64
	maxSyncErrors int
}

// Option настраивает Storage
type Option func(*Storage)

// WithMaxBytes ограничивает размер файла БД; 0 отключает проверку
func WithMaxBytes(n int64) Option {
	return func(s *Storage) { s.maxBytes = n }
}

// WithMaxSyncErrors задаёт размер журнала ошибок
func WithMaxSyncErrors(n int) Option {
	return func(s *Storage) {
		if n > 0 {
			s.maxSyncErrors = n
		}
	}
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string, opts ...Option) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db, maxSyncErrors: DefaultMaxSyncErrors}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Usage размер файла БД и лимит; лимит 0 означает отсутствие ограничения
func (s *Storage) Usage(ctx context.Context) (size, limit int64, err error) {
	err = s.view(func(tx *bbolt.Tx) error {
		size = tx.Size()
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read database size: %w", err)
	}
	return size, s.maxBytes, nil
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketAuth, bucketMetadata, bucketQueue, bucketConflicts, bucketSyncErrors} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}

		records, err := tx.CreateBucketIfNotExists(bucketRecords)
		if err != nil {
			return fmt.Errorf("failed to create records bucket: %w", err)
		}
		for _, t := range models.EntityTypes {
			if _, err := records.CreateBucketIfNotExists([]byte(t)); err != nil {
				return fmt.Errorf("failed to create %s records bucket: %w", t, err)
			}
		}
		return nil
	})
}

// update и view переводят ошибку закрытой БД в storage.ErrStorageClosed
func (s *Storage) update(fn func(tx *bbolt.Tx) error) error {
	return mapClosed(s.db.Update(fn))
}

func (s *Storage) view(fn func(tx *bbolt.Tx) error) error {
	return mapClosed(s.db.View(fn))
}

func mapClosed(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return storage.ErrStorageClosed
	}
	return err
}

// checkQuota вызывается перед записью, удаления разрешены всегда
func (s *Storage) checkQuota(tx *bbolt.Tx, incoming int) error {
	if s.maxBytes <= 0 {
		return nil
	}
	if tx.Size()+int64(incoming) > s.maxBytes {
		return fmt.Errorf("%w: database is %d bytes, limit %d", storage.ErrQuotaExceeded, tx.Size(), s.maxBytes)
	}
	return nil
}

func bucket(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("%s bucket not found", name)
	}
	return b, nil
}

func recordsBucket(tx *bbolt.Tx, t models.EntityType) (*bbolt.Bucket, error) {
	root, err := bucket(tx, bucketRecords)
	if err != nil {
		return nil, err
	}
	b := root.Bucket([]byte(t))
	if b == nil {
		return nil, fmt.Errorf("records bucket for %q not found", t)
	}
	return b, nil
}
