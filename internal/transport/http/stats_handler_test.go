package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"flashcard-progress/internal/domain"
	"flashcard-progress/internal/infra/memory"
)

func TestStatsEndpointsForNewUser(t *testing.T) {
	server := newTestServer(t, memory.NewAggregateStore())

	resp, err := http.Get(server.URL + "/stats?userId=fresh")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var stats domain.Statistics
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalSessions != 0 || stats.AccuracyPercentage != 0 || stats.FirstSessionDate != nil {
		t.Fatalf("expected zero statistics, got %+v", stats)
	}

	hist, err := http.Get(server.URL + "/history?userId=fresh")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	defer hist.Body.Close()
	var records []domain.SessionHistoryRecord
	if err := json.NewDecoder(hist.Body).Decode(&records); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty history array, got %v", records)
	}

	noUser, err := http.Get(server.URL + "/stats")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	noUser.Body.Close()
	if noUser.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user, got %d", noUser.StatusCode)
	}
}

func TestStatsAccuracyAndReset(t *testing.T) {
	store := memory.NewAggregateStore()
	ctx := context.Background()
	if err := store.MergeIncremental(ctx, "u1", domain.MergeInput{
		Sessions: 1, Attempted: 4, Correct: 3, MaxStreak: 3, Score: 3, Difficulty: domain.DifficultyHard,
	}); err != nil {
		t.Fatalf("seed aggregate: %v", err)
	}
	server := newTestServer(t, store)

	resp, err := http.Get(server.URL + "/stats?userId=u1")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	var stats domain.Statistics
	_ = json.NewDecoder(resp.Body).Decode(&stats)
	resp.Body.Close()
	if stats.AccuracyPercentage != 75 || stats.HardAccuracy != 75 || stats.EasyAccuracy != 0 {
		t.Fatalf("unexpected accuracy %+v", stats)
	}

	get, err := http.Get(server.URL + "/stats/reset?userId=u1")
	if err != nil {
		t.Fatalf("get reset: %v", err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET reset, got %d", get.StatusCode)
	}

	reset, err := http.Post(server.URL+"/stats/reset?userId=u1", "application/json", nil)
	if err != nil {
		t.Fatalf("post reset: %v", err)
	}
	defer reset.Body.Close()
	if reset.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", reset.StatusCode)
	}
	_ = json.NewDecoder(reset.Body).Decode(&stats)
	if stats.TotalQuestionsAttempted != 0 || stats.BestStreak != 0 {
		t.Fatalf("expected zeroed statistics, got %+v", stats)
	}
}

func TestResetFailureIsRetryable(t *testing.T) {
	server := newTestServer(t, &unavailableStore{AggregateStore: memory.NewAggregateStore()})

	resp, err := http.Post(server.URL+"/stats/reset?userId=u1", "application/json", nil)
	if err != nil {
		t.Fatalf("post reset: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Retryable || body.Error == "" {
		t.Fatalf("expected retryable error body, got %+v", body)
	}
}

type unavailableStore struct {
	*memory.AggregateStore
}

func (s *unavailableStore) ResetAggregate(context.Context, string) error {
	return fmt.Errorf("reset: %w", domain.ErrUnavailable)
}
