package memory

import (
	"context"
	"sync"

	"flashcard-progress/internal/domain"
)

// CheckpointStore keeps checkpoints in memory. They do not survive a restart,
// so it only covers teardown failures within one process.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]domain.Checkpoint
}

func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{checkpoints: make(map[string]domain.Checkpoint)}
}

func (s *CheckpointStore) SaveCheckpoint(_ context.Context, userID string, cp domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[userID] = cp
	return nil
}

func (s *CheckpointStore) LoadCheckpoint(_ context.Context, userID string) (domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[userID]
	if !ok {
		return domain.Checkpoint{}, domain.ErrCheckpointNotFound
	}
	return cp, nil
}

func (s *CheckpointStore) ClearCheckpoint(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, userID)
	return nil
}
