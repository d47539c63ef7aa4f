// Package dispatch distributes jobs over a Redis-backed task queue. A job
// task extracts and plans the document, then fans out one chunk task per
// chunk. Every chunk task buffers its result and re-evaluates the
// aggregation barrier; the single task that claims aggregation completes
// the job.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/JaimeStill/docket/internal/jobs"
	"github.com/JaimeStill/docket/internal/pipeline"
	"github.com/JaimeStill/docket/pkg/lifecycle"
	"github.com/JaimeStill/docket/pkg/queue"
)

// Dispatcher enqueues tasks and serves their handlers.
type Dispatcher struct {
	runner  *pipeline.Runner
	queue   queue.System
	server  *asynq.Server
	logger  *slog.Logger
	timeout time.Duration
}

// New creates a Dispatcher. The task server is built but not started.
func New(runner *pipeline.Runner, q queue.System, logger *slog.Logger) *Dispatcher {
	logger = logger.With("system", "dispatch")
	cfg := q.Config()

	server := asynq.NewServer(q.Options(), asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Name: 1},
		Logger:      &asynqLogger{logger: logger},
		LogLevel:    asynq.WarnLevel,
	})

	return &Dispatcher{
		runner:  runner,
		queue:   q,
		server:  server,
		logger:  logger,
		timeout: cfg.TaskTimeoutDuration(),
	}
}

// options are applied to every task. Retries are the orchestrator's
// concern, so tasks run at most once.
func (d *Dispatcher) options() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(d.queue.Config().Name),
		asynq.MaxRetry(0),
		asynq.Timeout(d.timeout),
	}
}

// Enqueue schedules a queued job for processing by a worker.
func (d *Dispatcher) Enqueue(ctx context.Context, id uuid.UUID) error {
	task, err := NewJobTask(id, d.options()...)
	if err != nil {
		return err
	}

	info, err := d.queue.Tasks().EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", id, err)
	}

	d.logger.Info("job enqueued", "job_id", id, "task_id", info.ID, "queue", info.Queue)
	return nil
}

// Mux returns the handler routing for both task types.
func (d *Dispatcher) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeJob, d.HandleJob)
	mux.HandleFunc(TypeChunk, d.HandleChunk)
	return mux
}

// Start registers the task server with the lifecycle coordinator.
func (d *Dispatcher) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func() error {
		if err := d.server.Start(d.Mux()); err != nil {
			return fmt.Errorf("start task server: %w", err)
		}
		d.logger.Info("task server started", "queue", d.queue.Config().Name)
		return nil
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		d.server.Shutdown()
		d.logger.Info("task server stopped")
	})

	return nil
}

// HandleJob extracts metadata, plans chunks, and enqueues one chunk task
// per chunk. A task for a job that is no longer queued is dropped; any
// other failure fails the job.
func (d *Dispatcher) HandleJob(ctx context.Context, t *asynq.Task) error {
	p, err := decode[JobPayload](t)
	if err != nil {
		return err
	}

	job, err := d.runner.Registry().Find(ctx, p.JobID)
	if err != nil {
		return fmt.Errorf("job task %s: %w: %w", p.JobID, err, asynq.SkipRetry)
	}

	err = d.runner.Guard(ctx, job.ID, d.fanOut(ctx, job))
	if errors.Is(err, pipeline.ErrNotClaimed) {
		d.logger.Info("job task skipped", "job_id", job.ID, "status", job.Status)
		return nil
	}
	return err
}

func (d *Dispatcher) fanOut(ctx context.Context, job *jobs.Job) error {
	pol, err := d.runner.Policy()
	if err != nil {
		return err
	}

	prep, err := d.runner.Prepare(ctx, job, pol)
	if err != nil {
		return err
	}

	if err := d.runner.Registry().Transition(ctx, job.ID, jobs.StatusAnalyzing); err != nil {
		return err
	}

	final := prep.Finalization(pol)
	for _, task := range prep.Tasks {
		t, err := NewChunkTask(ChunkPayload{Finalization: final, Task: task}, d.options()...)
		if err != nil {
			return err
		}
		if _, err := d.queue.Tasks().EnqueueContext(ctx, t); err != nil {
			return fmt.Errorf("enqueue chunk %d: %w", task.Spec.Index, err)
		}
	}

	d.logger.Info("chunks enqueued", "job_id", job.ID, "total_chunks", final.TotalChunks)
	return nil
}

// HandleChunk processes one chunk, buffers its result, and attempts
// aggregation. A chunk failure fails the job.
func (d *Dispatcher) HandleChunk(ctx context.Context, t *asynq.Task) error {
	p, err := decode[ChunkPayload](t)
	if err != nil {
		return err
	}

	id := p.Finalization.JobID
	return d.runner.Guard(ctx, id, d.processChunk(ctx, p))
}

func (d *Dispatcher) processChunk(ctx context.Context, p ChunkPayload) error {
	id := p.Finalization.JobID

	job, err := d.runner.Registry().Find(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		d.logger.Info("chunk skipped for terminal job", "job_id", id, "chunk_index", p.Task.Spec.Index, "status", job.Status)
		return nil
	}

	proc, err := d.runner.Processor(p.Finalization.Policy)
	if err != nil {
		return err
	}

	if _, err := d.runner.ProcessChunk(ctx, id, proc, p.Task); err != nil {
		return err
	}

	done, err := d.runner.TryFinalize(ctx, p.Finalization)
	if err != nil {
		return err
	}
	if done {
		d.logger.Info("job aggregated", "job_id", id, "chunk_index", p.Task.Spec.Index)
	}
	return nil
}

// IsDuplicate reports whether err is a task id conflict, meaning the job
// is already scheduled.
func IsDuplicate(err error) bool {
	return errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask)
}
