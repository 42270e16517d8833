package memory

import (
	"sync"

	"flashcard-progress/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	managers map[string]*app.Manager
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
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
	delete(s.managers, userID)
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
