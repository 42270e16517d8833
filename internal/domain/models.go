package domain

import (
	"fmt"
	"strings"
	"time"
)

// Difficulty is the tier a practice session is drawing words from.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists every tier in display order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Valid reports whether d is a known tier.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ParseDifficulty accepts a tier name in any case.
func ParseDifficulty(raw string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(raw)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, raw)
	}
	return d, nil
}

// Counts is an attempted/correct pair.
type Counts struct {
	Attempted int `json:"attempted"`
	Correct   int `json:"correct"`
}

// Snapshot is the full counter state of one practice session at mutation Seq.
// Snapshots are authoritative: a later one supersedes every earlier one.
type Snapshot struct {
	UserID        string                `json:"userId"`
	SessionID     string                `json:"sessionId"`
	Seq           uint64                `json:"seq"`
	Difficulty    Difficulty            `json:"difficulty"`
	StartedAt     time.Time             `json:"startedAt"`
	TakenAt       time.Time             `json:"takenAt"`
	Attempted     int                   `json:"attempted"`
	Correct       int                   `json:"correct"`
	CurrentStreak int                   `json:"currentStreak"`
	MaxStreak     int                   `json:"maxStreak"`
	ByDifficulty  map[Difficulty]Counts `json:"byDifficulty,omitempty"`
	Ended         bool                  `json:"ended,omitempty"`
}

// Score is the session score: one point per correct answer.
func (s Snapshot) Score() int {
	return s.Correct
}

// DurationSeconds is the elapsed session time when the snapshot was taken.
func (s Snapshot) DurationSeconds() int64 {
	if s.StartedAt.IsZero() || s.TakenAt.IsZero() || s.TakenAt.Before(s.StartedAt) {
		return 0
	}
	return int64(s.TakenAt.Sub(s.StartedAt) / time.Second)
}

// MergeInput is what mergeIncremental folds into an Aggregate. Cumulative
// fields are deltas; streak and score fields are absolute values.
type MergeInput struct {
	SessionID       string                `json:"sessionId"`
	Sessions        int                   `json:"sessions"`
	Attempted       int                   `json:"attempted"`
	Correct         int                   `json:"correct"`
	CurrentStreak   int                   `json:"currentStreak"`
	MaxStreak       int                   `json:"maxStreak"`
	Score           int                   `json:"score"`
	Difficulty      Difficulty            `json:"difficulty"`
	ByDifficulty    map[Difficulty]Counts `json:"byDifficulty,omitempty"`
	DurationSeconds int64                 `json:"durationSeconds"`
}

// Aggregate is the durable per-user statistics record every session merges into.
type Aggregate struct {
	UserID                  string    `json:"userId"`
	TotalSessions           int       `json:"totalSessions"`
	TotalQuestionsAttempted int       `json:"totalQuestionsAttempted"`
	TotalQuestionsCorrect   int       `json:"totalQuestionsCorrect"`
	BestStreak              int       `json:"bestStreak"`
	CurrentStreak           int       `json:"currentStreak"`
	BestScore               int       `json:"bestScore"`
	TotalTimeSpentSeconds   int64     `json:"totalTimeSpentSeconds"`
	Easy                    Counts    `json:"easy"`
	Medium                  Counts    `json:"medium"`
	Hard                    Counts    `json:"hard"`
	FirstSessionDate        time.Time `json:"firstSessionDate"`
	LastSessionDate         time.Time `json:"lastSessionDate"`
}

// SessionHistoryRecord is written once per completed session and never mutated.
type SessionHistoryRecord struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	SessionID       string     `json:"sessionId"`
	Difficulty      Difficulty `json:"difficulty"`
	Attempted       int        `json:"attempted"`
	Correct         int        `json:"correct"`
	Score           int        `json:"score"`
	MaxStreak       int        `json:"maxStreak"`
	DurationSeconds int64      `json:"durationSeconds"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         time.Time  `json:"endedAt"`
	Recovered       bool       `json:"recovered"`
}

// Checkpoint is the locally persisted state of an open session: the newest
// snapshot and the newest one the aggregate store acknowledged.
type Checkpoint struct {
	Latest Snapshot `json:"latest"`
	Acked  Snapshot `json:"acked"`
}

// Pending reports whether part of the session has not reached the aggregate yet.
func (c Checkpoint) Pending() bool {
	return c.Latest.Seq > c.Acked.Seq
}

// LiveCounters are the values a practice screen shows.
type LiveCounters struct {
	Score             int `json:"score"`
	Streak            int `json:"streak"`
	QuestionsAnswered int `json:"questionsAnswered"`
}
