package domain

import "time"

// Statistics is the derived, read-only view of an Aggregate.
type Statistics struct {
	UserID                  string     `json:"userId"`
	TotalSessions           int        `json:"totalSessions"`
	TotalQuestionsAttempted int        `json:"totalQuestionsAttempted"`
	TotalQuestionsCorrect   int        `json:"totalQuestionsCorrect"`
	AccuracyPercentage      float64    `json:"accuracyPercentage"`
	EasyAccuracy            float64    `json:"easyAccuracy"`
	MediumAccuracy          float64    `json:"mediumAccuracy"`
	HardAccuracy            float64    `json:"hardAccuracy"`
	BestStreak              int        `json:"bestStreak"`
	CurrentStreak           int        `json:"currentStreak"`
	BestScore               int        `json:"bestScore"`
	TotalTimeSpentSeconds   int64      `json:"totalTimeSpentSeconds"`
	Easy                    Counts     `json:"easy"`
	Medium                  Counts     `json:"medium"`
	Hard                    Counts     `json:"hard"`
	FirstSessionDate        *time.Time `json:"firstSessionDate,omitempty"`
	LastSessionDate         *time.Time `json:"lastSessionDate,omitempty"`
}

// Accuracy returns correct/attempted as a percentage, or 0 when nothing was attempted.
func Accuracy(correct, attempted int) float64 {
	if attempted <= 0 {
		return 0
	}
	return float64(correct) / float64(attempted) * 100
}

// Statistics derives the statistics view; nothing here is stored.
func (a Aggregate) Statistics() Statistics {
	st := Statistics{
		UserID:                  a.UserID,
		TotalSessions:           a.TotalSessions,
		TotalQuestionsAttempted: a.TotalQuestionsAttempted,
		TotalQuestionsCorrect:   a.TotalQuestionsCorrect,
		AccuracyPercentage:      Accuracy(a.TotalQuestionsCorrect, a.TotalQuestionsAttempted),
		EasyAccuracy:            Accuracy(a.Easy.Correct, a.Easy.Attempted),
		MediumAccuracy:          Accuracy(a.Medium.Correct, a.Medium.Attempted),
		HardAccuracy:            Accuracy(a.Hard.Correct, a.Hard.Attempted),
		BestStreak:              a.BestStreak,
		CurrentStreak:           a.CurrentStreak,
		BestScore:               a.BestScore,
		TotalTimeSpentSeconds:   a.TotalTimeSpentSeconds,
		Easy:                    a.Easy,
		Medium:                  a.Medium,
		Hard:                    a.Hard,
	}
	if !a.FirstSessionDate.IsZero() {
		first := a.FirstSessionDate
		st.FirstSessionDate = &first
	}
	if !a.LastSessionDate.IsZero() {
		last := a.LastSessionDate
		st.LastSessionDate = &last
	}
	return st
}

// Seed returns the live counters a restarted client resumes from.
func (a Aggregate) Seed() LiveCounters {
	return LiveCounters{
		Score:             a.TotalQuestionsCorrect,
		Streak:            a.CurrentStreak,
		QuestionsAnswered: a.TotalQuestionsAttempted,
	}
}
