package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/JaimeStill/docket/internal/pipeline"
	"github.com/JaimeStill/docket/internal/processor"
)

// Task type names.
const (
	TypeJob   = "docket:job"
	TypeChunk = "docket:chunk"
)

// JobPayload starts a queued job.
type JobPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

// ChunkPayload is one independent unit of chunk work. It carries the
// chunk text and the job's policy so that a worker needs no other state
// to process it and evaluate the barrier.
type ChunkPayload struct {
	Finalization pipeline.Finalization `json:"finalization"`
	Task         processor.Task        `json:"task"`
}

// NewJobTask builds the task that starts job id.
func NewJobTask(id uuid.UUID, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(JobPayload{JobID: id})
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}
	opts = append(opts, asynq.TaskID(id.String()))
	return asynq.NewTask(TypeJob, payload, opts...), nil
}

// NewChunkTask builds the task that processes one chunk.
func NewChunkTask(p ChunkPayload, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal chunk payload: %w", err)
	}
	opts = append(opts, asynq.TaskID(fmt.Sprintf("%s:%d", p.Finalization.JobID, p.Task.Spec.Index)))
	return asynq.NewTask(TypeChunk, payload, opts...), nil
}

func decode[T any](t *asynq.Task) (T, error) {
	var v T
	if err := json.Unmarshal(t.Payload(), &v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w: %w", t.Type(), err, asynq.SkipRetry)
	}
	return v, nil
}
