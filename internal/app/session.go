package app

import (
	"time"

	"flashcard-progress/internal/domain"
)

// Session is one in-memory practice run. It is owned by a Manager and only
// mutated under the Manager's lock.
type Session struct {
	id            string
	userID        string
	difficulty    domain.Difficulty
	startedAt     time.Time
	attempted     int
	correct       int
	currentStreak int
	maxStreak     int
	byDifficulty  map[domain.Difficulty]domain.Counts
	seq           uint64
	ended         bool
}

func newSession(id, userID string, difficulty domain.Difficulty, startedAt time.Time, seedStreak int) *Session {
	if seedStreak < 0 {
		seedStreak = 0
	}
	return &Session{
		id:            id,
		userID:        userID,
		difficulty:    difficulty,
		startedAt:     startedAt,
		currentStreak: seedStreak,
		maxStreak:     seedStreak,
		byDifficulty:  make(map[domain.Difficulty]domain.Counts, len(domain.Difficulties)),
		seq:           1,
	}
}

func (s *Session) recordAnswer(correct bool) {
	bucket := s.byDifficulty[s.difficulty]
	bucket.Attempted++
	s.attempted++
	if correct {
		bucket.Correct++
		s.correct++
		s.currentStreak++
		if s.currentStreak > s.maxStreak {
			s.maxStreak = s.currentStreak
		}
	} else {
		s.currentStreak = 0
	}
	s.byDifficulty[s.difficulty] = bucket
	s.seq++
}

func (s *Session) skip() {
	bucket := s.byDifficulty[s.difficulty]
	bucket.Attempted++
	s.byDifficulty[s.difficulty] = bucket
	s.attempted++
	s.currentStreak = 0
	s.seq++
}

func (s *Session) revealAnswer() {
	s.currentStreak = 0
	s.seq++
}

func (s *Session) changeDifficulty(d domain.Difficulty) {
	s.difficulty = d
	s.seq++
}

func (s *Session) snapshot(now time.Time) domain.Snapshot {
	byDifficulty := make(map[domain.Difficulty]domain.Counts, len(s.byDifficulty))
	for d, c := range s.byDifficulty {
		byDifficulty[d] = c
	}
	return domain.Snapshot{
		UserID:        s.userID,
		SessionID:     s.id,
		Seq:           s.seq,
		Difficulty:    s.difficulty,
		StartedAt:     s.startedAt,
		TakenAt:       now,
		Attempted:     s.attempted,
		Correct:       s.correct,
		CurrentStreak: s.currentStreak,
		MaxStreak:     s.maxStreak,
		ByDifficulty:  byDifficulty,
		Ended:         s.ended,
	}
}
