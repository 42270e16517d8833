package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"flashcard-progress/internal/domain"
)

// AggregateStore keeps aggregates and session history in process memory
// (useful for tests/demos and single-instance deployments without Redis).
type AggregateStore struct {
	clock func() time.Time

	mu         sync.RWMutex
	aggregates map[string]domain.Aggregate
	history    map[string][]domain.SessionHistoryRecord
	sessions   map[string]struct{}
}

func NewAggregateStore() *AggregateStore {
	return NewAggregateStoreWithClock(func() time.Time { return time.Now().UTC() })
}

// NewAggregateStoreWithClock allows deterministic session dates in tests.
func NewAggregateStoreWithClock(now func() time.Time) *AggregateStore {
	return &AggregateStore{
		clock:      now,
		aggregates: make(map[string]domain.Aggregate),
		history:    make(map[string][]domain.SessionHistoryRecord),
		sessions:   make(map[string]struct{}),
	}
}

func (s *AggregateStore) LoadAggregate(_ context.Context, userID string) (domain.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agg, ok := s.aggregates[userID]
	if !ok {
		return domain.Aggregate{}, domain.ErrAggregateNotFound
	}
	return agg, nil
}

func (s *AggregateStore) MergeIncremental(_ context.Context, userID string, in domain.MergeInput) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.aggregates[userID]
	if !ok {
		agg = domain.Aggregate{UserID: userID}
	}
	agg.Apply(in, s.clock())
	s.aggregates[userID] = agg
	return nil
}

func (s *AggregateStore) AppendSessionHistory(_ context.Context, rec domain.SessionHistoryRecord) error {
	if rec.UserID == "" {
		return domain.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[rec.SessionID]; ok {
		return nil
	}
	s.sessions[rec.SessionID] = struct{}{}
	s.history[rec.UserID] = append(s.history[rec.UserID], rec)
	return nil
}

func (s *AggregateStore) ResetAggregate(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregates[userID] = domain.Aggregate{UserID: userID}
	return nil
}

func (s *AggregateStore) ListSessionHistory(_ context.Context, userID string, limit int) ([]domain.SessionHistoryRecord, error) {
	s.mu.RLock()
	records := append([]domain.SessionHistoryRecord(nil), s.history[userID]...)
	s.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].EndedAt.After(records[j].EndedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
