package aggregate

import "errors"

// ErrIncomplete indicates the barrier has not yet received every chunk index.
// It is a wait condition, not a job failure.
var ErrIncomplete = errors.New("aggregation incomplete")
