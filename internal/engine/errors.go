package engine

import "errors"

var (
	// ErrConflictExhausted is returned when every attempt lost the race to
	// another writer. Nothing was written; the caller may retry.
	ErrConflictExhausted = errors.New("innings update conflicted on every attempt")

	// ErrInningsNotFound is returned for an innings that was never started
	ErrInningsNotFound = errors.New("innings not found")

	// ErrInningsExists is returned when starting an innings twice
	ErrInningsExists = errors.New("innings already started")

	// ErrInningsArchived is returned when changing an archived innings
	ErrInningsArchived = errors.New("innings is archived")

	// ErrArchiveDisabled is returned by Archive when no archive is configured
	ErrArchiveDisabled = errors.New("archive is not configured")
)
