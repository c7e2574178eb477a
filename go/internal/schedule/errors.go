package schedule

import "errors"

var (
	// ErrConflict is returned when a watcher name is already taken
	ErrConflict = errors.New("name already exists")
	// ErrWatcherNotFound is returned when signups reference an unknown watcher
	ErrWatcherNotFound = errors.New("watcher not found")
	// ErrPastSlot is returned when a signup batch includes a slot before now
	ErrPastSlot = errors.New("cannot sign up for past time slots")
	// ErrInvalidRequest is returned for missing or malformed input
	ErrInvalidRequest = errors.New("invalid request")
)
