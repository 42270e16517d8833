package redis

import (
	"context"
	"sync"
	"time"

	"flashcard-progress/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Managers live in a local map; Redis only carries a liveness marker per
// user so other instances and operators can see who is practicing.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	managers map[string]*app.Manager
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		managers: make(map[string]*app.Manager),
	}
}

func (s *SessionStore) GetOrCreate(userID string, create func() *app.Manager) *app.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	if manager, ok := s.managers[userID]; ok {
		return manager
	}
	manager := create()
	s.managers[userID] = manager
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), sessionKey(userID), "1", s.ttl).Err()
	return manager
}

func (s *SessionStore) Get(userID string) (*app.Manager, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	manager, ok := s.managers[userID]
	return manager, ok
}

func (s *SessionStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.managers[userID]; !ok {
		return
	}
	delete(s.managers, userID)
	_ = s.client.Del(context.Background(), sessionKey(userID)).Err()
}

func (s *SessionStore) List() []*app.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	managers := make([]*app.Manager, 0, len(s.managers))
	for _, manager := range s.managers {
		managers = append(managers, manager)
	}
	return managers
}
