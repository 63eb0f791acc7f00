package storage

import (
	"context"

	"github.com/iudanet/shoetrack/internal/models"
)

// QueueStorage персистентная очередь операций, упорядоченная по Seq
type QueueStorage interface {
	// AppendOperation assigns next Seq to op and stores it at the tail
	AppendOperation(ctx context.Context, op *models.Operation) error

	// SaveOperation stores op under its existing Seq (requeue keeps original position)
	SaveOperation(ctx context.Context, op *models.Operation) error

	// ListOperations returns all operations in Seq order
	ListOperations(ctx context.Context) ([]*models.Operation, error)

	// TakeOperations visits operations in Seq order and atomically removes
	// every operation for which pick returns true
	TakeOperations(ctx context.Context, pick func(op *models.Operation) bool) ([]*models.Operation, error)

	// ClearOperations removes everything from the queue
	ClearOperations(ctx context.Context) error
}
