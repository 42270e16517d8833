package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"flashcard-progress/internal/domain"
	"github.com/redis/go-redis/v9"
)

// mergeScript applies a MergeInput to the aggregate hash atomically.
// ARGV: now, sessions, attempted, correct, maxStreak, currentStreak, score,
// durationSeconds, then (difficulty, attempted, correct) triples.
var mergeScript = redis.NewScript(`
local key = KEYS[1]
redis.call('HINCRBY', key, 'total_sessions', ARGV[2])
redis.call('HINCRBY', key, 'total_attempted', ARGV[3])
redis.call('HINCRBY', key, 'total_correct', ARGV[4])
local best = tonumber(redis.call('HGET', key, 'best_streak') or '0')
if tonumber(ARGV[5]) > best then
  redis.call('HSET', key, 'best_streak', ARGV[5])
end
redis.call('HSET', key, 'current_streak', ARGV[6])
local bestScore = tonumber(redis.call('HGET', key, 'best_score') or '0')
if tonumber(ARGV[7]) > bestScore then
  redis.call('HSET', key, 'best_score', ARGV[7])
end
redis.call('HINCRBY', key, 'total_time', ARGV[8])
for i = 9, #ARGV, 3 do
  redis.call('HINCRBY', key, ARGV[i] .. '_attempted', ARGV[i + 1])
  redis.call('HINCRBY', key, ARGV[i] .. '_correct', ARGV[i + 2])
end
redis.call('HSETNX', key, 'first_session', ARGV[1])
redis.call('HSET', key, 'last_session', ARGV[1])
return 1
`)

// appendScript pushes a history record once per session id.
var appendScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[2], ARGV[1], '1') == 1 then
  redis.call('LPUSH', KEYS[1], ARGV[2])
  return 1
end
return 0
`)

// AggregateStore keeps each user's aggregate in a Redis hash:
//
//	HSET progress:{userID}:aggregate total_attempted 12 best_streak 5 ...
//
// and the session history as a JSON list, newest first.
type AggregateStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewAggregateStore(client *redis.Client) *AggregateStore {
	return &AggregateStore{
		client: client,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *AggregateStore) LoadAggregate(ctx context.Context, userID string) (domain.Aggregate, error) {
	fields, err := s.client.HGetAll(ctx, aggregateKey(userID)).Result()
	if err != nil {
		return domain.Aggregate{}, fmt.Errorf("load aggregate: %w: %w", domain.ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return domain.Aggregate{}, domain.ErrAggregateNotFound
	}
	return buildAggregate(userID, fields), nil
}

func (s *AggregateStore) MergeIncremental(ctx context.Context, userID string, in domain.MergeInput) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}
	args := []interface{}{
		s.clock().Format(time.RFC3339Nano),
		in.Sessions,
		in.Attempted,
		in.Correct,
		in.MaxStreak,
		in.CurrentStreak,
		in.Score,
		max(in.DurationSeconds, 0),
	}
	breakdown := in.Breakdown()
	for _, d := range domain.Difficulties {
		c, ok := breakdown[d]
		if !ok {
			continue
		}
		args = append(args, string(d), c.Attempted, c.Correct)
	}
	if err := mergeScript.Run(ctx, s.client, []string{aggregateKey(userID)}, args...).Err(); err != nil {
		return fmt.Errorf("merge aggregate: %w: %w", domain.ErrUnavailable, err)
	}
	return nil
}

func (s *AggregateStore) AppendSessionHistory(ctx context.Context, rec domain.SessionHistoryRecord) error {
	if rec.UserID == "" {
		return domain.ErrUnauthenticated
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session history: %w", err)
	}
	keys := []string{historyKey(rec.UserID), historySessionsKey(rec.UserID)}
	if err := appendScript.Run(ctx, s.client, keys, rec.SessionID, payload).Err(); err != nil {
		return fmt.Errorf("append session history: %w: %w", domain.ErrUnavailable, err)
	}
	return nil
}

func (s *AggregateStore) ResetAggregate(ctx context.Context, userID string) error {
	key := aggregateKey(userID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "total_sessions", 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset aggregate: %w: %w", domain.ErrUnavailable, err)
	}
	return nil
}

func (s *AggregateStore) ListSessionHistory(ctx context.Context, userID string, limit int) ([]domain.SessionHistoryRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raw, err := s.client.LRange(ctx, historyKey(userID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list session history: %w: %w", domain.ErrUnavailable, err)
	}
	records := make([]domain.SessionHistoryRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.SessionHistoryRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal session history: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func buildAggregate(userID string, fields map[string]string) domain.Aggregate {
	agg := domain.Aggregate{
		UserID:                  userID,
		TotalSessions:           atoi(fields["total_sessions"]),
		TotalQuestionsAttempted: atoi(fields["total_attempted"]),
		TotalQuestionsCorrect:   atoi(fields["total_correct"]),
		BestStreak:              atoi(fields["best_streak"]),
		CurrentStreak:           atoi(fields["current_streak"]),
		BestScore:               atoi(fields["best_score"]),
		TotalTimeSpentSeconds:   int64(atoi(fields["total_time"])),
		FirstSessionDate:        parseTime(fields["first_session"]),
		LastSessionDate:         parseTime(fields["last_session"]),
	}
	for _, d := range domain.Difficulties {
		bucket := agg.Bucket(d)
		bucket.Attempted = atoi(fields[string(d)+"_attempted"])
		bucket.Correct = atoi(fields[string(d)+"_correct"])
	}
	return agg
}

func atoi(raw string) int {
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
