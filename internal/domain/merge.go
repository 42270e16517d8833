package domain

import "time"

// Diff returns the merge input that brings an aggregate holding acked up to
// latest. acked is the zero Snapshot when nothing of the session has been
// merged yet, in which case the session itself is counted.
func Diff(acked, latest Snapshot) MergeInput {
	in := MergeInput{
		SessionID:       latest.SessionID,
		Attempted:       nonNegative(latest.Attempted - acked.Attempted),
		Correct:         nonNegative(latest.Correct - acked.Correct),
		CurrentStreak:   latest.CurrentStreak,
		MaxStreak:       latest.MaxStreak,
		Score:           latest.Score(),
		Difficulty:      latest.Difficulty,
		DurationSeconds: latest.DurationSeconds() - acked.DurationSeconds(),
	}
	if acked.Seq == 0 {
		in.Sessions = 1
	}
	if in.DurationSeconds < 0 {
		in.DurationSeconds = 0
	}

	for _, d := range Difficulties {
		now := latest.ByDifficulty[d]
		before := acked.ByDifficulty[d]
		delta := Counts{
			Attempted: nonNegative(now.Attempted - before.Attempted),
			Correct:   nonNegative(now.Correct - before.Correct),
		}
		if delta == (Counts{}) {
			continue
		}
		if in.ByDifficulty == nil {
			in.ByDifficulty = make(map[Difficulty]Counts, len(Difficulties))
		}
		in.ByDifficulty[d] = delta
	}
	return in
}

// Breakdown returns the per-difficulty deltas of the input. Inputs without an
// explicit breakdown attribute everything to Difficulty.
func (in MergeInput) Breakdown() map[Difficulty]Counts {
	if len(in.ByDifficulty) > 0 {
		return in.ByDifficulty
	}
	if !in.Difficulty.Valid() || (in.Attempted == 0 && in.Correct == 0) {
		return nil
	}
	return map[Difficulty]Counts{in.Difficulty: {Attempted: in.Attempted, Correct: in.Correct}}
}

// Apply folds in into the aggregate. Totals only grow, best values never
// decrease and CurrentStreak mirrors the latest activity.
func (a *Aggregate) Apply(in MergeInput, now time.Time) {
	a.TotalSessions += nonNegative(in.Sessions)
	a.TotalQuestionsAttempted += nonNegative(in.Attempted)
	a.TotalQuestionsCorrect += nonNegative(in.Correct)
	a.BestStreak = max(a.BestStreak, in.MaxStreak)
	a.CurrentStreak = nonNegative(in.CurrentStreak)
	a.BestScore = max(a.BestScore, in.Score)
	if in.DurationSeconds > 0 {
		a.TotalTimeSpentSeconds += in.DurationSeconds
	}
	for d, c := range in.Breakdown() {
		bucket := a.Bucket(d)
		if bucket == nil {
			continue
		}
		bucket.Attempted += nonNegative(c.Attempted)
		bucket.Correct += nonNegative(c.Correct)
	}
	if a.FirstSessionDate.IsZero() {
		a.FirstSessionDate = now
	}
	a.LastSessionDate = now
}

// Bucket returns the per-difficulty counters for d, or nil for an unknown tier.
func (a *Aggregate) Bucket(d Difficulty) *Counts {
	switch d {
	case DifficultyEasy:
		return &a.Easy
	case DifficultyMedium:
		return &a.Medium
	case DifficultyHard:
		return &a.Hard
	}
	return nil
}

// HistoryRecord builds the write-once history entry for a finished session.
func HistoryRecord(id string, s Snapshot, endedAt time.Time, recovered bool) SessionHistoryRecord {
	duration := int64(0)
	if !s.StartedAt.IsZero() && endedAt.After(s.StartedAt) {
		duration = int64(endedAt.Sub(s.StartedAt) / time.Second)
	}
	return SessionHistoryRecord{
		ID:              id,
		UserID:          s.UserID,
		SessionID:       s.SessionID,
		Difficulty:      s.Difficulty,
		Attempted:       s.Attempted,
		Correct:         s.Correct,
		Score:           s.Score(),
		MaxStreak:       s.MaxStreak,
		DurationSeconds: duration,
		StartedAt:       s.StartedAt,
		EndedAt:         endedAt,
		Recovered:       recovered,
	}
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
