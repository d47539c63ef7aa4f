package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/internal/processor"
)

// Registry is the job state store. Conditional operations report whether
// they were applied: a false result with a nil error means the guard did
// not hold and nothing was written.
type Registry interface {
	// Create registers a queued job with progress 0.
	Create(ctx context.Context, cmd CreateCommand) (*Job, error)
	// Find returns the job with id or ErrNotFound.
	Find(ctx context.Context, id uuid.UUID) (*Job, error)
	// List returns jobs matching f, newest first.
	List(ctx context.Context, f Filters) ([]Job, error)
	// Transition moves a job along a non-terminal edge. It returns
	// ErrTerminal for a terminal job and ErrInvalidTransition for any
	// other illegal edge, including a lost race for the same edge.
	// Entering processing records started_at.
	Transition(ctx context.Context, id uuid.UUID, to Status) error
	// SetProgress stores p, clamped to 0..100, only if it exceeds the
	// stored value and the job is not terminal.
	SetProgress(ctx context.Context, id uuid.UUID, p int) (bool, error)
	// Complete moves an aggregating job to completed with progress 100.
	// It reports false if the job is already terminal.
	Complete(ctx context.Context, id uuid.UUID, resultRef string) (bool, error)
	// Fail moves any non-terminal job to failed. It reports false if the
	// job is already terminal.
	Fail(ctx context.Context, id uuid.UUID, message string) (bool, error)
	// SaveChunkResult buffers a partial result. The first result stored
	// for an index wins; later ones report false. An unknown job returns
	// ErrNotFound and a nil r returns ErrNilChunkResult.
	SaveChunkResult(ctx context.Context, id uuid.UUID, r *processor.ChunkResult) (bool, error)
	// ChunkResults returns every buffered partial result in index order.
	ChunkResults(ctx context.Context, id uuid.UUID) ([]*processor.ChunkResult, error)
}

// Backend names for Registry implementations.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)
