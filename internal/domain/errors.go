package domain

import "errors"

var (
	// ErrUnavailable marks a transient backend or network failure; callers retry later.
	ErrUnavailable = errors.New("progress store unavailable")
	// ErrUnauthenticated is returned when an operation needs a user but none is set.
	ErrUnauthenticated = errors.New("no authenticated user")
	// ErrAggregateNotFound is the expected first-run condition for a user without statistics.
	ErrAggregateNotFound = errors.New("aggregate not found")
	// ErrConflict is reserved for multi-writer scenarios; the single-writer model never produces it.
	ErrConflict = errors.New("aggregate update conflict")
	// ErrCheckpointNotFound indicates there is no unterminated session to recover.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrInvalidDifficulty indicates an unknown difficulty tier.
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	// ErrNoActiveSession is returned when a mutation arrives before Start.
	ErrNoActiveSession = errors.New("no active practice session")
	// ErrSessionEnded is returned when a mutation arrives after End.
	ErrSessionEnded = errors.New("practice session already ended")
)
