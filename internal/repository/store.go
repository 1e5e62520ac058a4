package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veranemoloko/tgdl-core/internal/domain"
)

// MutateFunc changes an aggregate in place. Returning an error discards
// every change it made.
type MutateFunc func(agg *domain.BatchAggregate) error

// AggregateStore persists batch aggregates. A batch and its member tasks
// are always read and written together. Standalone tasks are aggregates
// rooted at the task id.
type AggregateStore interface {
	Create(ctx context.Context, agg *domain.BatchAggregate) error
	Get(ctx context.Context, rootID uuid.UUID) (*domain.BatchAggregate, error)
	RootOf(ctx context.Context, taskID uuid.UUID) (uuid.UUID, error)
	// Update applies fn to the latest state of rootID and commits the result
	// atomically. It returns the committed snapshot.
	Update(ctx context.Context, rootID uuid.UUID, fn MutateFunc) (*domain.BatchAggregate, error)
	ListExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	// DeleteExpired removes rootID only if, at commit time, it is terminal
	// and past its retention window. It reports whether it was removed.
	DeleteExpired(ctx context.Context, rootID uuid.UUID, now time.Time) (bool, error)
}
