package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"flashcard-progress/internal/domain"
)

func TestAggregateStoreMergeCreatesThenIncrements(t *testing.T) {
	ctx := context.Background()
	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := day1
	store := NewAggregateStoreWithClock(func() time.Time { return now })

	if _, err := store.LoadAggregate(ctx, "u1"); !errors.Is(err, domain.ErrAggregateNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := store.MergeIncremental(ctx, "u1", domain.MergeInput{Sessions: 1, Attempted: 3, Correct: 2, MaxStreak: 2, CurrentStreak: 2, Score: 2, Difficulty: domain.DifficultyEasy}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	now = day1.Add(time.Hour)
	if err := store.MergeIncremental(ctx, "u1", domain.MergeInput{Attempted: 1, Correct: 0, MaxStreak: 2, CurrentStreak: 0, Score: 2, Difficulty: domain.DifficultyEasy}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	agg, err := store.LoadAggregate(ctx, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if agg.TotalSessions != 1 || agg.TotalQuestionsAttempted != 4 || agg.TotalQuestionsCorrect != 2 {
		t.Fatalf("unexpected totals %+v", agg)
	}
	if agg.Easy != (domain.Counts{Attempted: 4, Correct: 2}) {
		t.Fatalf("unexpected easy counters %+v", agg.Easy)
	}
	if !agg.FirstSessionDate.Equal(day1) || !agg.LastSessionDate.Equal(now) {
		t.Fatalf("unexpected dates %+v", agg)
	}
}

func TestAggregateStoreHistoryIsWriteOncePerSession(t *testing.T) {
	ctx := context.Background()
	store := NewAggregateStore()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"s1", "s2", "s1"} {
		rec := domain.SessionHistoryRecord{ID: id + "-rec", UserID: "u1", SessionID: id, EndedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.AppendSessionHistory(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	records, err := store.ListSessionHistory(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].SessionID != "s2" {
		t.Fatalf("expected newest first, got %+v", records)
	}
}

func TestAggregateStoreReset(t *testing.T) {
	ctx := context.Background()
	store := NewAggregateStore()
	_ = store.MergeIncremental(ctx, "u1", domain.MergeInput{Sessions: 1, Attempted: 5, Correct: 5, MaxStreak: 5})

	if err := store.ResetAggregate(ctx, "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	agg, err := store.LoadAggregate(ctx, "u1")
	if err != nil {
		t.Fatalf("load after reset: %v", err)
	}
	if agg != (domain.Aggregate{UserID: "u1"}) {
		t.Fatalf("expected zeroed aggregate, got %+v", agg)
	}
}
