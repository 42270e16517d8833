package app

import (
	"context"
	"log"
	"sync"

	"flashcard-progress/internal/domain"
)

// Practice is one client's handle on a practice session. With a user it
// drives the user's shared Manager and tears down only the session it
// started itself. Without one it runs a private local-only Manager whose
// progress is never persisted.
type Practice struct {
	service *ProgressService
	userID  string
	local   *Manager

	mu        sync.Mutex
	sessionID string
}

// Practice returns a handle for userID. An empty userID gives an anonymous
// practice.
func (s *ProgressService) Practice(userID string) *Practice {
	p := &Practice{service: s, userID: userID}
	if userID == "" {
		p.local = NewManager(Identity{}, s.client, s.reader, nil, s.opts)
	}
	return p
}

// Anonymous reports whether the practice runs without a user.
func (p *Practice) Anonymous() bool {
	return p.local != nil
}

// Start opens a session and remembers it as the one this handle owns.
func (p *Practice) Start(ctx context.Context, difficulty domain.Difficulty) (State, error) {
	var (
		state State
		err   error
	)
	if p.local != nil {
		state, err = p.local.Start(ctx, difficulty)
	} else {
		state, err = p.service.Start(ctx, p.userID, difficulty)
	}
	if err != nil {
		return State{}, err
	}
	p.mu.Lock()
	p.sessionID = state.Session.SessionID
	p.mu.Unlock()
	return state, nil
}

func (p *Practice) Answer(_ context.Context, correct bool) (State, error) {
	manager, err := p.manager()
	if err != nil {
		return State{}, err
	}
	return manager.RecordAnswer(correct)
}

func (p *Practice) Skip(_ context.Context) (State, error) {
	manager, err := p.manager()
	if err != nil {
		return State{}, err
	}
	return manager.Skip()
}

func (p *Practice) Reveal(_ context.Context) (State, error) {
	manager, err := p.manager()
	if err != nil {
		return State{}, err
	}
	return manager.RevealAnswer()
}

func (p *Practice) ChangeDifficulty(_ context.Context, difficulty domain.Difficulty) (State, error) {
	manager, err := p.manager()
	if err != nil {
		return State{}, err
	}
	return manager.ChangeDifficulty(difficulty)
}

// End closes the open session.
func (p *Practice) End(ctx context.Context) (domain.SessionHistoryRecord, error) {
	if p.local != nil {
		return p.local.End(ctx)
	}
	return p.service.End(ctx, p.userID)
}

// Leave is the teardown hook of a dropped client.
func (p *Practice) Leave(ctx context.Context) {
	if p.local != nil {
		if err := p.local.Close(ctx); err != nil {
			log.Printf("anonymous teardown: %v", err)
		}
		return
	}
	p.mu.Lock()
	sessionID := p.sessionID
	p.mu.Unlock()
	p.service.LeaveSession(ctx, p.userID, sessionID)
}

func (p *Practice) manager() (*Manager, error) {
	if p.local != nil {
		return p.local, nil
	}
	return p.service.manager(p.userID)
}
