package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"flashcard-progress/internal/app"
	"flashcard-progress/internal/domain"
	"flashcard-progress/internal/infra/memory"
)

// flakyStore wraps the in-memory store, records merges and can be taken down.
type flakyStore struct {
	*memory.AggregateStore

	mu     sync.Mutex
	down   bool
	merges []domain.MergeInput
}

func newFlakyStore() *flakyStore {
	return &flakyStore{AggregateStore: memory.NewAggregateStore()}
}

func (s *flakyStore) setDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

func (s *flakyStore) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return fmt.Errorf("dial backend: %w", domain.ErrUnavailable)
	}
	return nil
}

func (s *flakyStore) LoadAggregate(ctx context.Context, userID string) (domain.Aggregate, error) {
	if err := s.err(); err != nil {
		return domain.Aggregate{}, err
	}
	return s.AggregateStore.LoadAggregate(ctx, userID)
}

func (s *flakyStore) MergeIncremental(ctx context.Context, userID string, in domain.MergeInput) error {
	if err := s.err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.merges = append(s.merges, in)
	s.mu.Unlock()
	return s.AggregateStore.MergeIncremental(ctx, userID, in)
}

func (s *flakyStore) AppendSessionHistory(ctx context.Context, rec domain.SessionHistoryRecord) error {
	if err := s.err(); err != nil {
		return err
	}
	return s.AggregateStore.AppendSessionHistory(ctx, rec)
}

func (s *flakyStore) mergedAttempted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, in := range s.merges {
		total += in.Attempted
	}
	return total
}

func newTestManager(userID string, store app.AggregateStore, checkpoints app.CheckpointStore) *app.Manager {
	client := app.NewStoreClient(store)
	return app.NewManager(app.Identity{UserID: userID}, client, app.NewStatsReader(client), checkpoints, app.Options{
		Debounce: 5 * time.Millisecond,
	})
}

func mustLoad(t *testing.T, store app.AggregateStore, userID string) domain.Aggregate {
	t.Helper()
	agg, err := store.LoadAggregate(context.Background(), userID)
	if err != nil {
		t.Fatalf("load aggregate: %v", err)
	}
	return agg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
