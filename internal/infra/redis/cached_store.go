package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"flashcard-progress/internal/app"
	"flashcard-progress/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// fillScript caches an aggregate only if no write bumped the version since
// the caller read it. KEYS: cache, version. ARGV: version, payload, ttl ms.
var fillScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// CachedAggregateStore fronts a durable AggregateStore with a Redis copy of
// each aggregate. Reads fall back to the backing store on a miss; every
// write bumps a per-user version and drops the cached copy, so a load that
// raced a write never caches what it read.
type CachedAggregateStore struct {
	client  *redis.Client
	backing app.AggregateStore
	ttl     time.Duration
	sf      singleflight.Group
}

func NewCachedAggregateStore(client *redis.Client, backing app.AggregateStore, ttl time.Duration) *CachedAggregateStore {
	return &CachedAggregateStore{
		client:  client,
		backing: backing,
		ttl:     ttl,
	}
}

func (s *CachedAggregateStore) LoadAggregate(ctx context.Context, userID string) (domain.Aggregate, error) {
	if agg, ok := s.cached(ctx, userID); ok {
		return agg, nil
	}

	result, err, _ := s.sf.Do(userID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if agg, ok := s.cached(ctx, userID); ok {
			return agg, nil
		}

		version, verErr := s.version(ctx, userID)
		agg, err := s.backing.LoadAggregate(ctx, userID)
		if err != nil {
			return domain.Aggregate{}, err
		}
		if verErr != nil {
			return agg, nil
		}
		if payload, err := json.Marshal(agg); err == nil {
			keys := []string{s.cacheKey(userID), s.versionKey(userID)}
			_ = fillScript.Run(ctx, s.client, keys, version, payload, s.ttlWithJitter().Milliseconds()).Err()
		}
		return agg, nil
	})
	if err != nil {
		return domain.Aggregate{}, err
	}
	return result.(domain.Aggregate), nil
}

func (s *CachedAggregateStore) MergeIncremental(ctx context.Context, userID string, in domain.MergeInput) error {
	if err := s.backing.MergeIncremental(ctx, userID, in); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CachedAggregateStore) AppendSessionHistory(ctx context.Context, rec domain.SessionHistoryRecord) error {
	return s.backing.AppendSessionHistory(ctx, rec)
}

func (s *CachedAggregateStore) ResetAggregate(ctx context.Context, userID string) error {
	if err := s.backing.ResetAggregate(ctx, userID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CachedAggregateStore) ListSessionHistory(ctx context.Context, userID string, limit int) ([]domain.SessionHistoryRecord, error) {
	return s.backing.ListSessionHistory(ctx, userID, limit)
}

func (s *CachedAggregateStore) cached(ctx context.Context, userID string) (domain.Aggregate, bool) {
	raw, err := s.client.Get(ctx, s.cacheKey(userID)).Bytes()
	if err != nil {
		return domain.Aggregate{}, false
	}
	var agg domain.Aggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		return domain.Aggregate{}, false
	}
	return agg, true
}

// version returns the write counter of userID, "0" before the first write.
func (s *CachedAggregateStore) version(ctx context.Context, userID string) (string, error) {
	v, err := s.client.Get(ctx, s.versionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return v, err
}

// invalidate is best effort; a stale entry expires with its TTL.
func (s *CachedAggregateStore) invalidate(ctx context.Context, userID string) {
	_, _ = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, s.versionKey(userID))
		pipe.Del(ctx, s.cacheKey(userID))
		return nil
	})
}

func (s *CachedAggregateStore) cacheKey(userID string) string {
	return aggregateKey(userID) + ":cache"
}

func (s *CachedAggregateStore) versionKey(userID string) string {
	return aggregateKey(userID) + ":ver"
}

func (s *CachedAggregateStore) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
