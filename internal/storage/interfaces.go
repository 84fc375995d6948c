package storage

import (
	"context"
	"time"

	"cypher-activity/internal/domain"
)

// ActivityStore provides access to activity event storage. Events are
// insert-only: the only mutation ever applied is the one-way rollback flip.
type ActivityStore interface {
	// InsertBulk adds all events as new records in one batch, preserving
	// input order. Duplicate deliveries insert duplicate records; the
	// upstream webhook is at-least-once and that is accepted.
	InsertBulk(ctx context.Context, events []*domain.ActivityEvent) error

	// MarkRolledBack sets rollback=true on every stored event at the given
	// block height whose rollback is currently false, and returns the number
	// of events flipped. Idempotent: re-marking flips nothing.
	MarkRolledBack(ctx context.Context, blockHeight int64) (int64, error)

	// ListRecent retrieves non-rolled-back events sorted by timestamp
	// descending, capped at limit. A non-empty address restricts results to
	// events whose addressInvolved contains it.
	ListRecent(ctx context.Context, address string, limit int) ([]*domain.ActivityEvent, error)

	// Summarize counts non-rolled-back events involving the address with
	// timestamp >= since, grouped into an ActivitySummary.
	Summarize(ctx context.Context, address string, since time.Time) (domain.ActivitySummary, error)

	// Ping reports store reachability.
	Ping(ctx context.Context) error
}
