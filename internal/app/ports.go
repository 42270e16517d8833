package app

import (
	"context"

	"flashcard-progress/internal/domain"
)

// AggregateStore is the durable per-user aggregate record and session log
// (Postgres, Redis, SQLite or in-memory).
type AggregateStore interface {
	// LoadAggregate returns domain.ErrAggregateNotFound for users without statistics.
	LoadAggregate(ctx context.Context, userID string) (domain.Aggregate, error)
	// MergeIncremental creates or updates the aggregate. It is sum-based:
	// duplicate suppression is the caller's job.
	MergeIncremental(ctx context.Context, userID string, in domain.MergeInput) error
	// AppendSessionHistory inserts a record at most once per session id.
	AppendSessionHistory(ctx context.Context, rec domain.SessionHistoryRecord) error
	ResetAggregate(ctx context.Context, userID string) error
	ListSessionHistory(ctx context.Context, userID string, limit int) ([]domain.SessionHistoryRecord, error)
}

// CheckpointStore keeps the open session of a user so it can be recovered
// after the process dies without ending it.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, userID string, cp domain.Checkpoint) error
	// LoadCheckpoint returns domain.ErrCheckpointNotFound when nothing is pending.
	LoadCheckpoint(ctx context.Context, userID string) (domain.Checkpoint, error)
	ClearCheckpoint(ctx context.Context, userID string) error
}

// SessionRepository tracks the live Manager of each user (in-memory, Redis, etc).
// Holding one Manager per user keeps a single logical writer per aggregate.
type SessionRepository interface {
	GetOrCreate(userID string, create func() *Manager) *Manager
	Get(userID string) (*Manager, bool)
	Delete(userID string)
	List() []*Manager
}

// Identity is the authenticated user a Manager acts for.
type Identity struct {
	UserID string
}

// Authenticated reports whether progress can be attributed to a user.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}
