// Package file keeps session checkpoints as JSON files on local disk.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"flashcard-progress/internal/domain"
)

// CheckpointStore writes one checkpoint file per user under dir.
type CheckpointStore struct {
	dir string
}

func NewCheckpointStore(dir string) *CheckpointStore {
	return &CheckpointStore{dir: dir}
}

func (s *CheckpointStore) SaveCheckpoint(_ context.Context, userID string, cp domain.Checkpoint) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	payload, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	// Readers only ever see a complete file.
	tmp, err := os.CreateTemp(s.dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(userID)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

func (s *CheckpointStore) LoadCheckpoint(_ context.Context, userID string) (domain.Checkpoint, error) {
	payload, err := os.ReadFile(s.path(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Checkpoint{}, domain.ErrCheckpointNotFound
		}
		return domain.Checkpoint{}, fmt.Errorf("read checkpoint: %w", err)
	}
	cp := domain.Checkpoint{}
	if err := json.Unmarshal(payload, &cp); err != nil {
		return domain.Checkpoint{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	if cp.Latest.SessionID == "" {
		return domain.Checkpoint{}, domain.ErrCheckpointNotFound
	}
	return cp, nil
}

func (s *CheckpointStore) ClearCheckpoint(_ context.Context, userID string) error {
	if err := os.Remove(s.path(userID)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

func (s *CheckpointStore) path(userID string) string {
	return filepath.Join(s.dir, url.PathEscape(userID)+".json")
}
