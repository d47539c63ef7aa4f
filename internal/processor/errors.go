package processor

import (
	"errors"
	"fmt"
)

// ErrChunkProcessing indicates a single chunk failed during classification.
var ErrChunkProcessing = errors.New("chunk processing failed")

// ChunkError tags a processing failure with the index of the failed chunk.
type ChunkError struct {
	Index int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("%s: chunk %d: %v", ErrChunkProcessing, e.Index, e.Err)
}

func (e *ChunkError) Unwrap() []error {
	return []error{ErrChunkProcessing, e.Err}
}
