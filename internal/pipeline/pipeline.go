// Package pipeline runs contract analysis jobs: submit, extract metadata,
// plan chunks, classify chunks in parallel, then aggregate, validate, and
// persist the result. It is the single place where a stage error becomes
// a failed job.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/docket/internal/aggregate"
	"github.com/JaimeStill/docket/internal/classify"
	"github.com/JaimeStill/docket/internal/document"
	"github.com/JaimeStill/docket/internal/jobs"
	"github.com/JaimeStill/docket/internal/metrics"
	"github.com/JaimeStill/docket/internal/policy"
	"github.com/JaimeStill/docket/internal/processor"
	"github.com/JaimeStill/docket/internal/results"
	"github.com/JaimeStill/docket/pkg/storage"
)

// Config tunes a Runner.
type Config struct {
	// PolicyPath is loaded once per job; empty selects the embedded policy.
	PolicyPath string
	// MaxDocumentSize rejects larger sources; zero disables the check.
	MaxDocumentSize int64
	// ChunkWorkers bounds concurrent chunk processing in Run.
	ChunkWorkers int
	// ProgressBatch is the number of lines between progress reports.
	ProgressBatch int
}

// Runner owns the stages of a job and their shared dependencies.
type Runner struct {
	cfg       Config
	registry  jobs.Registry
	store     storage.System
	extractor *document.Extractor
	sink      *results.Sink
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Runner. A nil m disables metrics.
func New(
	cfg Config,
	registry jobs.Registry,
	store storage.System,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Runner {
	if cfg.ChunkWorkers < 1 {
		cfg.ChunkWorkers = 4
	}

	return &Runner{
		cfg:       cfg,
		registry:  registry,
		store:     store,
		extractor: document.NewExtractor(store, logger, cfg.MaxDocumentSize),
		sink:      results.NewSink(store, logger),
		metrics:   m,
		logger:    logger.With("system", "pipeline"),
	}
}

// Registry returns the job registry the Runner reports to.
func (r *Runner) Registry() jobs.Registry {
	return r.registry
}

// SubmitCommand carries a source document for a new job.
type SubmitCommand struct {
	ContractID  string
	Filename    string
	ContentType string
	Data        []byte
}

// Submit uploads the source document and registers a queued job for it.
func (r *Runner) Submit(ctx context.Context, cmd SubmitCommand) (*jobs.Job, error) {
	if cmd.ContractID == "" {
		return nil, errors.New("contract id is required")
	}

	key := sourceKey(uuid.New(), cmd.Filename)
	if err := r.store.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType); err != nil {
		return nil, fmt.Errorf("upload source: %w", err)
	}

	job, err := r.registry.Create(ctx, jobs.CreateCommand{
		ContractID: cmd.ContractID,
		SourceKey:  key,
		Filename:   filepath.Base(cmd.Filename),
	})
	if err != nil {
		return nil, fmt.Errorf("register job: %w", err)
	}

	r.logger.Info("job submitted", "job_id", job.ID, "contract_id", job.ContractID, "source_key", key)
	return job, nil
}

// Policy loads the policy for one job.
func (r *Runner) Policy() (*policy.Policy, error) {
	return policy.Load(r.cfg.PolicyPath)
}

// Processor builds the chunk processor for p.
func (r *Runner) Processor(p *policy.Policy) (*processor.Processor, error) {
	c, err := classify.New(p)
	if err != nil {
		return nil, err
	}
	return processor.New(c, r.cfg.ProgressBatch, r.logger), nil
}

// Run executes a queued job to a terminal status in this process. The
// returned error is the cause recorded on a failed job.
func (r *Runner) Run(ctx context.Context, id uuid.UUID) error {
	job, err := r.registry.Find(ctx, id)
	if err != nil {
		return err
	}
	return r.Guard(ctx, job.ID, r.run(ctx, job))
}

func (r *Runner) run(ctx context.Context, job *jobs.Job) error {
	pol, err := r.Policy()
	if err != nil {
		return err
	}

	prep, err := r.Prepare(ctx, job, pol)
	if err != nil {
		return err
	}

	proc, err := r.Processor(pol)
	if err != nil {
		return err
	}

	if err := r.registry.Transition(ctx, job.ID, jobs.StatusAnalyzing); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.ChunkWorkers)

	for _, task := range prep.Tasks {
		g.Go(func() error {
			_, err := r.ProcessChunk(gctx, job.ID, proc, task)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	done, err := r.TryFinalize(ctx, prep.Finalization(pol))
	if err != nil {
		return err
	}
	if !done {
		return fmt.Errorf("%w: job %s not finalized after all chunks", aggregate.ErrIncomplete, job.ID)
	}
	return nil
}

// ErrNotClaimed indicates the job was not queued when a run tried to start
// it. The job belongs to another runner and is left unchanged.
var ErrNotClaimed = errors.New("job not claimed")

// Guard converts a stage error into the terminal failure of job id. A nil
// cause and ErrNotClaimed are returned unchanged without touching the job.
// The failure is written even when ctx is already cancelled.
func (r *Runner) Guard(ctx context.Context, id uuid.UUID, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, ErrNotClaimed) {
		r.logger.Warn("job not claimed", "job_id", id, "error", cause)
		return cause
	}

	ctx = context.WithoutCancel(ctx)
	failed, err := r.registry.Fail(ctx, id, cause.Error())
	if err != nil {
		r.logger.Error("record job failure", "job_id", id, "cause", cause, "error", err)
		return errors.Join(cause, err)
	}

	if failed {
		r.logger.Error("job failed", "job_id", id, "error", cause)
		r.metrics.JobFinished(string(jobs.StatusFailed), r.startedAt(ctx, id))
	}
	return cause
}

func (r *Runner) startedAt(ctx context.Context, id uuid.UUID) time.Time {
	job, err := r.registry.Find(ctx, id)
	if err != nil || job.StartedAt == nil {
		return time.Time{}
	}
	return *job.StartedAt
}

// sourceKey builds the blob key of an uploaded source document.
func sourceKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("sources/%s/%s", id, sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	return url.PathEscape(name)
}
