package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"flashcard-progress/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ReaderState tracks how the live counters of a user were seeded.
type ReaderState int

const (
	ReaderUninitialized ReaderState = iota
	ReaderLoading
	// ReaderReady means counters were seeded from a loaded aggregate.
	ReaderReady
	// ReaderDegraded means counters start at zero because the aggregate was
	// absent or unreachable.
	ReaderDegraded
)

func (s ReaderState) String() string {
	switch s {
	case ReaderUninitialized:
		return "uninitialized"
	case ReaderLoading:
		return "loading"
	case ReaderReady:
		return "ready"
	case ReaderDegraded:
		return "degraded"
	}
	return fmt.Sprintf("ReaderState(%d)", int(s))
}

// Seed is the result of loading a user's statistics for a new screen.
type Seed struct {
	Aggregate domain.Aggregate
	Live      domain.LiveCounters
	State     ReaderState
	Result    LoadResult
}

// StatsReader loads aggregates into live counters. Concurrent loads for the
// same user share one store call.
type StatsReader struct {
	client *StoreClient
	sf     singleflight.Group

	mu     sync.RWMutex
	states map[string]ReaderState
}

func NewStatsReader(client *StoreClient) *StatsReader {
	return &StatsReader{
		client: client,
		states: make(map[string]ReaderState),
	}
}

// Load never fails: an unreachable or missing aggregate yields a zero seed in
// the Degraded state.
func (r *StatsReader) Load(ctx context.Context, userID string) Seed {
	r.setState(userID, ReaderLoading)

	v, _, _ := r.sf.Do(userID, func() (interface{}, error) {
		agg, result := r.client.Load(ctx, userID)
		return Seed{Aggregate: agg, Result: result}, nil
	})
	seed := v.(Seed)

	if seed.Result == LoadFound {
		seed.Live = seed.Aggregate.Seed()
		seed.State = ReaderReady
	} else {
		if seed.Result == LoadUnavailable {
			log.Printf("statistics unavailable for %s, starting from zero", userID)
		}
		seed.Aggregate = domain.Aggregate{UserID: userID}
		seed.Live = domain.LiveCounters{}
		seed.State = ReaderDegraded
	}
	r.setState(userID, seed.State)
	return seed
}

// State returns the last known state for userID.
func (r *StatsReader) State(userID string) ReaderState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[userID]
}

// Forget drops the state of userID once its screen is gone.
func (r *StatsReader) Forget(userID string) {
	r.mu.Lock()
	delete(r.states, userID)
	r.mu.Unlock()
}

func (r *StatsReader) setState(userID string, state ReaderState) {
	r.mu.Lock()
	r.states[userID] = state
	r.mu.Unlock()
}
