package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"flashcard-progress/internal/domain"
)

// DefaultHistoryLimit caps history listings when the caller gives no limit.
const DefaultHistoryLimit = 20

// ProgressService contains the practice-session use cases. It keeps one
// Manager per user.
type ProgressService struct {
	managers    SessionRepository
	client      *StoreClient
	reader      *StatsReader
	checkpoints CheckpointStore
	opts        Options
}

func NewProgressService(managers SessionRepository, store AggregateStore, checkpoints CheckpointStore, opts Options) *ProgressService {
	client := NewStoreClient(store)
	return &ProgressService{
		managers:    managers,
		client:      client,
		reader:      NewStatsReader(client),
		checkpoints: checkpoints,
		opts:        opts.withDefaults(),
	}
}

// Start opens a session for userID, ending any session the user still has open.
func (s *ProgressService) Start(ctx context.Context, userID string, difficulty domain.Difficulty) (State, error) {
	if userID == "" {
		return State{}, domain.ErrUnauthenticated
	}
	manager := s.managers.GetOrCreate(userID, func() *Manager {
		return NewManager(Identity{UserID: userID}, s.client, s.reader, s.checkpoints, s.opts)
	})
	return manager.Start(ctx, difficulty)
}

// Answer records a correct or incorrect answer.
func (s *ProgressService) Answer(_ context.Context, userID string, correct bool) (State, error) {
	manager, err := s.manager(userID)
	if err != nil {
		return State{}, err
	}
	return manager.RecordAnswer(correct)
}

// Skip records a skipped question.
func (s *ProgressService) Skip(_ context.Context, userID string) (State, error) {
	manager, err := s.manager(userID)
	if err != nil {
		return State{}, err
	}
	return manager.Skip()
}

// Reveal records that the answer was shown.
func (s *ProgressService) Reveal(_ context.Context, userID string) (State, error) {
	manager, err := s.manager(userID)
	if err != nil {
		return State{}, err
	}
	return manager.RevealAnswer()
}

// ChangeDifficulty switches the tier of the open session.
func (s *ProgressService) ChangeDifficulty(_ context.Context, userID string, difficulty domain.Difficulty) (State, error) {
	manager, err := s.manager(userID)
	if err != nil {
		return State{}, err
	}
	return manager.ChangeDifficulty(difficulty)
}

// End closes the open session of userID and releases its manager.
func (s *ProgressService) End(ctx context.Context, userID string) (domain.SessionHistoryRecord, error) {
	manager, err := s.manager(userID)
	if err != nil {
		return domain.SessionHistoryRecord{}, err
	}
	rec, err := manager.End(ctx)
	if err != nil {
		return domain.SessionHistoryRecord{}, err
	}
	s.managers.Delete(userID)
	s.reader.Forget(userID)
	return rec, nil
}

// Leave is the teardown path for a disconnected client: the session is ended
// within the flush timeout and errors are only logged.
func (s *ProgressService) Leave(ctx context.Context, userID string) {
	s.LeaveSession(ctx, userID, "")
}

// LeaveSession is Leave for a client that owns sessionID. If the user has
// since started another session elsewhere, that session is left alone.
func (s *ProgressService) LeaveSession(ctx context.Context, userID, sessionID string) {
	manager, ok := s.managers.Get(userID)
	if !ok {
		return
	}
	if sessionID != "" {
		if state, err := manager.State(); err == nil && state.Session.SessionID != sessionID {
			log.Printf("teardown of %s skipped: session %s was replaced by %s", userID, sessionID, state.Session.SessionID)
			return
		}
	}
	if err := manager.Close(ctx); err != nil {
		log.Printf("teardown of %s: %v", userID, err)
	}
	s.managers.Delete(userID)
	s.reader.Forget(userID)
}

// Statistics returns the derived statistics of userID.
func (s *ProgressService) Statistics(ctx context.Context, userID string) (domain.Statistics, error) {
	return s.client.Statistics(ctx, userID)
}

// History lists completed sessions, newest first.
func (s *ProgressService) History(ctx context.Context, userID string, limit int) ([]domain.SessionHistoryRecord, error) {
	if limit <= 0 {
		limit = s.opts.HistoryLimit
	}
	return s.client.History(ctx, userID, limit)
}

// ResetStatistics ends any open session and recreates the aggregate at zero.
// Unlike ambient saves, failures are returned so the user can retry.
func (s *ProgressService) ResetStatistics(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}
	if manager, ok := s.managers.Get(userID); ok {
		if _, err := manager.End(ctx); err != nil && !errors.Is(err, domain.ErrNoActiveSession) {
			return err
		}
		s.managers.Delete(userID)
	}
	if s.checkpoints != nil {
		if err := s.checkpoints.ClearCheckpoint(ctx, userID); err != nil {
			return fmt.Errorf("clear checkpoint: %w", err)
		}
	}
	if err := s.client.Reset(ctx, userID); err != nil {
		return err
	}
	s.reader.Forget(userID)
	return nil
}

// Shutdown ends every open session in parallel, each within the flush timeout.
func (s *ProgressService) Shutdown(ctx context.Context) {
	var wg sync.WaitGroup
	for _, manager := range s.managers.List() {
		wg.Add(1)
		go func(m *Manager) {
			defer wg.Done()
			userID := m.Identity().UserID
			if err := m.Close(ctx); err != nil {
				log.Printf("shutdown flush for %s: %v", userID, err)
			}
			s.managers.Delete(userID)
		}(manager)
	}
	wg.Wait()
}

func (s *ProgressService) manager(userID string) (*Manager, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	manager, ok := s.managers.Get(userID)
	if !ok {
		return nil, domain.ErrNoActiveSession
	}
	return manager, nil
}
