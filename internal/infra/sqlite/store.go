// Package sqlite keeps progress in a local SQLite file, for single-node
// deployments that run without Postgres or Redis.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"flashcard-progress/internal/domain"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schemaSQL string

// Store implements both app.AggregateStore and app.CheckpointStore.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and creates the schema if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{
		sqlDB: sqlDB,
		clock: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) LoadAggregate(ctx context.Context, userID string) (domain.Aggregate, error) {
	agg := domain.Aggregate{UserID: userID}
	var first, last sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT total_sessions, total_attempted, total_correct, best_streak, current_streak,
		        best_score, total_time_seconds,
		        easy_attempted, easy_correct, medium_attempted, medium_correct, hard_attempted, hard_correct,
		        first_session_at, last_session_at
		 FROM progress_aggregates WHERE user_id = ?`, userID,
	).Scan(
		&agg.TotalSessions, &agg.TotalQuestionsAttempted, &agg.TotalQuestionsCorrect,
		&agg.BestStreak, &agg.CurrentStreak, &agg.BestScore, &agg.TotalTimeSpentSeconds,
		&agg.Easy.Attempted, &agg.Easy.Correct,
		&agg.Medium.Attempted, &agg.Medium.Correct,
		&agg.Hard.Attempted, &agg.Hard.Correct,
		&first, &last,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Aggregate{}, domain.ErrAggregateNotFound
	}
	if err != nil {
		return domain.Aggregate{}, fmt.Errorf("load aggregate: %w: %w", domain.ErrUnavailable, err)
	}
	if first.Valid {
		agg.FirstSessionDate = fromMillis(first.Int64)
	}
	if last.Valid {
		agg.LastSessionDate = fromMillis(last.Int64)
	}
	return agg, nil
}

func (s *Store) MergeIncremental(ctx context.Context, userID string, in domain.MergeInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if userID == "" {
		return domain.ErrUnauthenticated
	}
	breakdown := in.Breakdown()
	easy := breakdown[domain.DifficultyEasy]
	medium := breakdown[domain.DifficultyMedium]
	hard := breakdown[domain.DifficultyHard]
	now := toMillis(s.clock())

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO progress_aggregates (
		   user_id, total_sessions, total_attempted, total_correct, best_streak, current_streak,
		   best_score, total_time_seconds,
		   easy_attempted, easy_correct, medium_attempted, medium_correct, hard_attempted, hard_correct,
		   first_session_at, last_session_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   total_sessions     = total_sessions + excluded.total_sessions,
		   total_attempted    = total_attempted + excluded.total_attempted,
		   total_correct      = total_correct + excluded.total_correct,
		   best_streak        = MAX(best_streak, excluded.best_streak),
		   current_streak     = excluded.current_streak,
		   best_score         = MAX(best_score, excluded.best_score),
		   total_time_seconds = total_time_seconds + excluded.total_time_seconds,
		   easy_attempted     = easy_attempted + excluded.easy_attempted,
		   easy_correct       = easy_correct + excluded.easy_correct,
		   medium_attempted   = medium_attempted + excluded.medium_attempted,
		   medium_correct     = medium_correct + excluded.medium_correct,
		   hard_attempted     = hard_attempted + excluded.hard_attempted,
		   hard_correct       = hard_correct + excluded.hard_correct,
		   first_session_at   = COALESCE(first_session_at, excluded.first_session_at),
		   last_session_at    = excluded.last_session_at`,
		userID, in.Sessions, in.Attempted, in.Correct, in.MaxStreak, in.CurrentStreak,
		in.Score, max(in.DurationSeconds, 0),
		easy.Attempted, easy.Correct, medium.Attempted, medium.Correct, hard.Attempted, hard.Correct,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("merge aggregate: %w: %w", domain.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) ResetAggregate(ctx context.Context, userID string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO progress_aggregates (user_id) VALUES (?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   total_sessions = 0, total_attempted = 0, total_correct = 0,
		   best_streak = 0, current_streak = 0, best_score = 0, total_time_seconds = 0,
		   easy_attempted = 0, easy_correct = 0, medium_attempted = 0, medium_correct = 0,
		   hard_attempted = 0, hard_correct = 0,
		   first_session_at = NULL, last_session_at = NULL`, userID)
	if err != nil {
		return fmt.Errorf("reset aggregate: %w: %w", domain.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) AppendSessionHistory(ctx context.Context, rec domain.SessionHistoryRecord) error {
	if rec.UserID == "" {
		return domain.ErrUnauthenticated
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO session_history (
		   id, user_id, session_id, difficulty, attempted, correct, score, max_streak,
		   duration_seconds, started_at, ended_at, recovered
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.SessionID, string(rec.Difficulty), rec.Attempted, rec.Correct,
		rec.Score, rec.MaxStreak, rec.DurationSeconds,
		toMillis(rec.StartedAt), toMillis(rec.EndedAt), rec.Recovered,
	)
	if isConstraintViolation(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("append session history: %w: %w", domain.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) ListSessionHistory(ctx context.Context, userID string, limit int) ([]domain.SessionHistoryRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, user_id, session_id, difficulty, attempted, correct, score, max_streak,
		        duration_seconds, started_at, ended_at, recovered
		 FROM session_history WHERE user_id = ?
		 ORDER BY ended_at DESC
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list session history: %w: %w", domain.ErrUnavailable, err)
	}
	defer rows.Close()

	var records []domain.SessionHistoryRecord
	for rows.Next() {
		var rec domain.SessionHistoryRecord
		var difficulty string
		var startedAt, endedAt int64
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.SessionID, &difficulty, &rec.Attempted, &rec.Correct,
			&rec.Score, &rec.MaxStreak, &rec.DurationSeconds, &startedAt, &endedAt, &rec.Recovered,
		); err != nil {
			return nil, fmt.Errorf("scan session history: %w", err)
		}
		rec.Difficulty = domain.Difficulty(difficulty)
		rec.StartedAt = fromMillis(startedAt)
		rec.EndedAt = fromMillis(endedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list session history: %w: %w", domain.ErrUnavailable, err)
	}
	return records, nil
}

func (s *Store) SaveCheckpoint(ctx context.Context, userID string, cp domain.Checkpoint) error {
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO checkpoints (user_id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		userID, string(payload), toMillis(s.clock()))
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *Store) LoadCheckpoint(ctx context.Context, userID string) (domain.Checkpoint, error) {
	var payload string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT payload FROM checkpoints WHERE user_id = ?`, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Checkpoint{}, domain.ErrCheckpointNotFound
	}
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	var cp domain.Checkpoint
	if err := json.Unmarshal([]byte(payload), &cp); err != nil {
		return domain.Checkpoint{}, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

func (s *Store) ClearCheckpoint(ctx context.Context, userID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM checkpoints WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
