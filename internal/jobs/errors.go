package jobs

import "errors"

// Domain errors for job registry operations.
var (
	ErrNotFound          = errors.New("job not found")
	ErrDuplicate         = errors.New("job already exists")
	ErrTerminal          = errors.New("job is in a terminal state")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNilChunkResult    = errors.New("chunk result is nil")
)
