package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flashcard-progress/internal/domain"
	"github.com/redis/go-redis/v9"
)

// CheckpointStore keeps one JSON checkpoint per user. A positive ttl expires
// abandoned entries; zero keeps them until the session is recovered.
type CheckpointStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCheckpointStore(client *redis.Client, ttl time.Duration) *CheckpointStore {
	return &CheckpointStore{client: client, ttl: ttl}
}

func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, userID string, cp domain.Checkpoint) error {
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, checkpointKey(userID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *CheckpointStore) LoadCheckpoint(ctx context.Context, userID string) (domain.Checkpoint, error) {
	raw, err := s.client.Get(ctx, checkpointKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Checkpoint{}, domain.ErrCheckpointNotFound
	}
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	var cp domain.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return domain.Checkpoint{}, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

func (s *CheckpointStore) ClearCheckpoint(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, checkpointKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}
