package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"flashcard-progress/internal/domain"
	"github.com/google/uuid"
)

// Options tune a Manager. Zero values fall back to defaults.
type Options struct {
	// Debounce is the cool-down between incremental writes.
	Debounce time.Duration
	// WriteTimeout bounds one incremental write.
	WriteTimeout time.Duration
	// FlushTimeout bounds the final flush on teardown.
	FlushTimeout time.Duration
	// HistoryLimit caps history listings that ask for no limit.
	HistoryLimit int
	Now          func() time.Time
	NewID        func() string
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.FlushTimeout <= 0 {
		o.FlushTimeout = 3 * time.Second
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// State is what a practice screen renders after each event.
type State struct {
	Session   domain.Snapshot              `json:"session"`
	Live      domain.LiveCounters          `json:"live"`
	Reader    string                       `json:"reader"`
	Recovered *domain.SessionHistoryRecord `json:"recovered,omitempty"`
}

// Manager owns the one active practice session of a user. Mutations are
// applied synchronously in memory; persistence goes through a DebouncedWriter
// and never blocks or fails the caller.
type Manager struct {
	identity    Identity
	client      *StoreClient
	reader      *StatsReader
	checkpoints CheckpointStore
	opts        Options

	endMu  sync.Mutex
	syncMu sync.Mutex

	mu          sync.Mutex
	session     *Session
	writer      *DebouncedWriter
	acked       domain.Snapshot
	base        domain.LiveCounters
	readerState ReaderState
	final       *domain.SessionHistoryRecord
}

// NewManager builds a Manager for identity. checkpoints may be nil, which
// disables crash recovery.
func NewManager(identity Identity, client *StoreClient, reader *StatsReader, checkpoints CheckpointStore, opts Options) *Manager {
	return &Manager{
		identity:    identity,
		client:      client,
		reader:      reader,
		checkpoints: checkpoints,
		opts:        opts.withDefaults(),
	}
}

// Identity returns the user the manager acts for.
func (m *Manager) Identity() Identity {
	return m.identity
}

// Start opens a new session. A still-open session is ended first and any
// session a previous process left behind is recovered before the aggregate
// is loaded, so the seed already includes it.
func (m *Manager) Start(ctx context.Context, difficulty domain.Difficulty) (State, error) {
	if !difficulty.Valid() {
		return State{}, fmt.Errorf("%w: %q", domain.ErrInvalidDifficulty, difficulty)
	}
	if !m.identity.Authenticated() {
		log.Printf("progress tracking disabled: %v", domain.ErrUnauthenticated)
	}

	if m.Active() {
		if _, err := m.End(ctx); err != nil {
			return State{}, err
		}
	}

	recovered := m.recoverCheckpoint(ctx)
	seed := m.reader.Load(ctx, m.identity.UserID)
	now := m.opts.Now()

	m.mu.Lock()
	m.session = newSession(m.opts.NewID(), m.identity.UserID, difficulty, now, seed.Live.Streak)
	m.acked = domain.Snapshot{}
	m.base = seed.Live
	m.readerState = seed.State
	m.final = nil
	m.writer = NewDebouncedWriter(m.sync, m.opts.Debounce, m.opts.WriteTimeout)
	state := m.stateLocked(now)
	m.mu.Unlock()

	state.Recovered = recovered
	return state, nil
}

// RecordAnswer counts an answer and schedules persistence of the new snapshot.
func (m *Manager) RecordAnswer(correct bool) (State, error) {
	return m.mutate(func(s *Session) { s.recordAnswer(correct) }, true)
}

// Skip counts an attempt without an answer and resets the streak.
func (m *Manager) Skip() (State, error) {
	return m.mutate((*Session).skip, true)
}

// RevealAnswer resets the streak without counting an attempt.
func (m *Manager) RevealAnswer() (State, error) {
	return m.mutate((*Session).revealAnswer, true)
}

// ChangeDifficulty keeps every counter; later answers are attributed to d.
func (m *Manager) ChangeDifficulty(d domain.Difficulty) (State, error) {
	if !d.Valid() {
		return State{}, fmt.Errorf("%w: %q", domain.ErrInvalidDifficulty, d)
	}
	return m.mutate(func(s *Session) { s.changeDifficulty(d) }, false)
}

// State returns the current session state without mutating it.
func (m *Manager) State() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return State{}, domain.ErrNoActiveSession
	}
	return m.stateLocked(m.opts.Now()), nil
}

// Active reports whether a session is open.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && !m.session.ended
}

// End performs the final merge and appends the session history record.
// Calling it again returns the same record without touching the store. If the
// store is unreachable the session stays checkpointed and is recovered on the
// next Start.
func (m *Manager) End(ctx context.Context) (domain.SessionHistoryRecord, error) {
	m.endMu.Lock()
	defer m.endMu.Unlock()

	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return domain.SessionHistoryRecord{}, domain.ErrNoActiveSession
	}
	if m.session.ended {
		rec := m.final
		m.mu.Unlock()
		if rec == nil {
			return domain.SessionHistoryRecord{}, domain.ErrSessionEnded
		}
		return *rec, nil
	}
	m.session.ended = true
	m.session.seq++
	now := m.opts.Now()
	snap := m.session.snapshot(now)
	writer := m.writer
	m.mu.Unlock()

	writer.Close()

	rec := domain.HistoryRecord(m.opts.NewID(), snap, now, false)
	if err := m.sync(ctx, snap); err == nil {
		if m.client.Append(ctx, rec) {
			m.clearCheckpoint(ctx)
		}
	} else if m.identity.Authenticated() {
		log.Printf("session %s for %s kept for recovery: %v", snap.SessionID, m.identity.UserID, err)
	}

	m.mu.Lock()
	m.final = &rec
	m.mu.Unlock()
	return rec, nil
}

// Close is the teardown hook: it ends an open session within FlushTimeout.
func (m *Manager) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.FlushTimeout)
	defer cancel()
	_, err := m.End(ctx)
	if errors.Is(err, domain.ErrNoActiveSession) {
		return nil
	}
	return err
}

func (m *Manager) mutate(apply func(*Session), persist bool) (State, error) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return State{}, domain.ErrNoActiveSession
	}
	if m.session.ended {
		m.mu.Unlock()
		return State{}, domain.ErrSessionEnded
	}
	apply(m.session)
	state := m.stateLocked(m.opts.Now())
	writer := m.writer
	m.mu.Unlock()

	if persist {
		writer.Schedule(state.Session)
	}
	return state, nil
}

func (m *Manager) stateLocked(now time.Time) State {
	snap := m.session.snapshot(now)
	return State{
		Session: snap,
		Live: domain.LiveCounters{
			Score:             m.base.Score + snap.Correct,
			Streak:            snap.CurrentStreak,
			QuestionsAnswered: m.base.QuestionsAnswered + snap.Attempted,
		},
		Reader: m.readerState.String(),
	}
}

// sync merges everything of latest the store has not acknowledged yet. It is
// the single write path of the session, so merges never interleave and a
// stale snapshot is a no-op.
func (m *Manager) sync(ctx context.Context, latest domain.Snapshot) error {
	if !m.identity.Authenticated() {
		return domain.ErrUnauthenticated
	}
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	m.mu.Lock()
	if m.session == nil || m.session.id != latest.SessionID {
		m.mu.Unlock()
		return nil
	}
	acked := m.acked
	current := m.session.snapshot(m.opts.Now())
	m.mu.Unlock()

	if latest.Seq <= acked.Seq {
		return nil
	}

	ok := m.client.Merge(ctx, m.identity.UserID, domain.Diff(acked, latest))
	if ok {
		acked = latest
		m.mu.Lock()
		m.acked = latest
		m.mu.Unlock()
	}

	checkpoint := domain.Checkpoint{Latest: latest, Acked: acked}
	if current.Seq > latest.Seq {
		checkpoint.Latest = current
	}
	m.saveCheckpoint(ctx, checkpoint)

	if !ok {
		return domain.ErrUnavailable
	}
	return nil
}

// recoverCheckpoint folds in a session the previous process never ended.
func (m *Manager) recoverCheckpoint(ctx context.Context) *domain.SessionHistoryRecord {
	if m.checkpoints == nil || !m.identity.Authenticated() {
		return nil
	}
	userID := m.identity.UserID

	cp, err := m.checkpoints.LoadCheckpoint(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrCheckpointNotFound) {
			log.Printf("load checkpoint for %s: %v", userID, err)
		}
		return nil
	}
	if cp.Latest.SessionID == "" {
		m.clearCheckpoint(ctx)
		return nil
	}

	if cp.Pending() {
		if !m.client.Merge(ctx, userID, domain.Diff(cp.Acked, cp.Latest)) {
			log.Printf("recovery of session %s for %s deferred", cp.Latest.SessionID, userID)
			return nil
		}
		cp.Acked = cp.Latest
		m.saveCheckpoint(ctx, cp)
	}

	rec := domain.HistoryRecord(m.opts.NewID(), cp.Latest, cp.Latest.TakenAt, !cp.Latest.Ended)
	if !m.client.Append(ctx, rec) {
		return nil
	}
	m.clearCheckpoint(ctx)
	log.Printf("recovered session %s for %s", cp.Latest.SessionID, userID)
	return &rec
}

func (m *Manager) saveCheckpoint(ctx context.Context, cp domain.Checkpoint) {
	if m.checkpoints == nil {
		return
	}
	if err := m.checkpoints.SaveCheckpoint(ctx, m.identity.UserID, cp); err != nil {
		log.Printf("save checkpoint for %s: %v", m.identity.UserID, err)
	}
}

func (m *Manager) clearCheckpoint(ctx context.Context) {
	if m.checkpoints == nil {
		return
	}
	if err := m.checkpoints.ClearCheckpoint(ctx, m.identity.UserID); err != nil {
		log.Printf("clear checkpoint for %s: %v", m.identity.UserID, err)
	}
}
