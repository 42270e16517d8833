package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flashcard-progress/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AggregateStore persists aggregates and session history in Postgres. The
// merge is a single upsert so concurrent writers never lose an increment.
type AggregateStore struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

func NewAggregateStore(pool *pgxpool.Pool) *AggregateStore {
	return &AggregateStore{
		pool:  pool,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

const selectAggregate = `
SELECT total_sessions, total_attempted, total_correct, best_streak, current_streak,
       best_score, total_time_seconds,
       easy_attempted, easy_correct, medium_attempted, medium_correct, hard_attempted, hard_correct,
       first_session_at, last_session_at
FROM progress_aggregates WHERE user_id=$1`

func (s *AggregateStore) LoadAggregate(ctx context.Context, userID string) (domain.Aggregate, error) {
	agg := domain.Aggregate{UserID: userID}
	var first, last *time.Time
	err := s.pool.QueryRow(ctx, selectAggregate, userID).Scan(
		&agg.TotalSessions, &agg.TotalQuestionsAttempted, &agg.TotalQuestionsCorrect,
		&agg.BestStreak, &agg.CurrentStreak, &agg.BestScore, &agg.TotalTimeSpentSeconds,
		&agg.Easy.Attempted, &agg.Easy.Correct,
		&agg.Medium.Attempted, &agg.Medium.Correct,
		&agg.Hard.Attempted, &agg.Hard.Correct,
		&first, &last,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Aggregate{}, domain.ErrAggregateNotFound
	}
	if err != nil {
		return domain.Aggregate{}, fmt.Errorf("load aggregate: %w: %w", domain.ErrUnavailable, err)
	}
	if first != nil {
		agg.FirstSessionDate = first.UTC()
	}
	if last != nil {
		agg.LastSessionDate = last.UTC()
	}
	return agg, nil
}

const upsertAggregate = `
INSERT INTO progress_aggregates (
    user_id, total_sessions, total_attempted, total_correct, best_streak, current_streak,
    best_score, total_time_seconds,
    easy_attempted, easy_correct, medium_attempted, medium_correct, hard_attempted, hard_correct,
    first_session_at, last_session_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15, $15)
ON CONFLICT (user_id) DO UPDATE SET
    total_sessions     = progress_aggregates.total_sessions + EXCLUDED.total_sessions,
    total_attempted    = progress_aggregates.total_attempted + EXCLUDED.total_attempted,
    total_correct      = progress_aggregates.total_correct + EXCLUDED.total_correct,
    best_streak        = GREATEST(progress_aggregates.best_streak, EXCLUDED.best_streak),
    current_streak     = EXCLUDED.current_streak,
    best_score         = GREATEST(progress_aggregates.best_score, EXCLUDED.best_score),
    total_time_seconds = progress_aggregates.total_time_seconds + EXCLUDED.total_time_seconds,
    easy_attempted     = progress_aggregates.easy_attempted + EXCLUDED.easy_attempted,
    easy_correct       = progress_aggregates.easy_correct + EXCLUDED.easy_correct,
    medium_attempted   = progress_aggregates.medium_attempted + EXCLUDED.medium_attempted,
    medium_correct     = progress_aggregates.medium_correct + EXCLUDED.medium_correct,
    hard_attempted     = progress_aggregates.hard_attempted + EXCLUDED.hard_attempted,
    hard_correct       = progress_aggregates.hard_correct + EXCLUDED.hard_correct,
    first_session_at   = COALESCE(progress_aggregates.first_session_at, EXCLUDED.first_session_at),
    last_session_at    = EXCLUDED.last_session_at,
    updated_at         = EXCLUDED.updated_at`

func (s *AggregateStore) MergeIncremental(ctx context.Context, userID string, in domain.MergeInput) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}
	breakdown := in.Breakdown()
	easy := breakdown[domain.DifficultyEasy]
	medium := breakdown[domain.DifficultyMedium]
	hard := breakdown[domain.DifficultyHard]

	_, err := s.pool.Exec(ctx, upsertAggregate,
		userID, in.Sessions, in.Attempted, in.Correct, in.MaxStreak, in.CurrentStreak,
		in.Score, max(in.DurationSeconds, 0),
		easy.Attempted, easy.Correct, medium.Attempted, medium.Correct, hard.Attempted, hard.Correct,
		s.clock(),
	)
	if err != nil {
		return fmt.Errorf("merge aggregate: %w: %w", domain.ErrUnavailable, err)
	}
	return nil
}

const resetAggregate = `
INSERT INTO progress_aggregates (user_id, updated_at) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET
    total_sessions = 0, total_attempted = 0, total_correct = 0,
    best_streak = 0, current_streak = 0, best_score = 0, total_time_seconds = 0,
    easy_attempted = 0, easy_correct = 0, medium_attempted = 0, medium_correct = 0,
    hard_attempted = 0, hard_correct = 0,
    first_session_at = NULL, last_session_at = NULL,
    updated_at = EXCLUDED.updated_at`

func (s *AggregateStore) ResetAggregate(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, resetAggregate, userID, s.clock()); err != nil {
		return fmt.Errorf("reset aggregate: %w: %w", domain.ErrUnavailable, err)
	}
	return nil
}

const insertHistory = `
INSERT INTO session_history (
    id, user_id, session_id, difficulty, attempted, correct, score, max_streak,
    duration_seconds, started_at, ended_at, recovered
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (session_id) DO NOTHING`

func (s *AggregateStore) AppendSessionHistory(ctx context.Context, rec domain.SessionHistoryRecord) error {
	if rec.UserID == "" {
		return domain.ErrUnauthenticated
	}
	_, err := s.pool.Exec(ctx, insertHistory,
		rec.ID, rec.UserID, rec.SessionID, string(rec.Difficulty), rec.Attempted, rec.Correct,
		rec.Score, rec.MaxStreak, rec.DurationSeconds, rec.StartedAt, rec.EndedAt, rec.Recovered,
	)
	if err != nil {
		return fmt.Errorf("append session history: %w: %w", domain.ErrUnavailable, err)
	}
	return nil
}

const selectHistory = `
SELECT id, user_id, session_id, difficulty, attempted, correct, score, max_streak,
       duration_seconds, started_at, ended_at, recovered
FROM session_history WHERE user_id=$1
ORDER BY ended_at DESC
LIMIT $2`

func (s *AggregateStore) ListSessionHistory(ctx context.Context, userID string, limit int) ([]domain.SessionHistoryRecord, error) {
	var lim interface{}
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx, selectHistory, userID, lim)
	if err != nil {
		return nil, fmt.Errorf("list session history: %w: %w", domain.ErrUnavailable, err)
	}
	defer rows.Close()

	var records []domain.SessionHistoryRecord
	for rows.Next() {
		var rec domain.SessionHistoryRecord
		var difficulty string
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.SessionID, &difficulty, &rec.Attempted, &rec.Correct,
			&rec.Score, &rec.MaxStreak, &rec.DurationSeconds, &rec.StartedAt, &rec.EndedAt, &rec.Recovered,
		); err != nil {
			return nil, fmt.Errorf("scan session history: %w", err)
		}
		rec.Difficulty = domain.Difficulty(difficulty)
		rec.StartedAt = rec.StartedAt.UTC()
		rec.EndedAt = rec.EndedAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list session history: %w: %w", domain.ErrUnavailable, err)
	}
	return records, nil
}
