package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/internal/aggregate"
	"github.com/JaimeStill/docket/internal/chunking"
	"github.com/JaimeStill/docket/internal/document"
	"github.com/JaimeStill/docket/internal/jobs"
	"github.com/JaimeStill/docket/internal/policy"
	"github.com/JaimeStill/docket/internal/processor"
	"github.com/JaimeStill/docket/internal/results"
)

// Prepared is the output of the extraction and planning stages.
type Prepared struct {
	Job      *jobs.Job
	Metadata document.Metadata
	Plan     *chunking.Plan
	Tasks    []processor.Task
}

// Finalization identifies everything the aggregation stage needs about a job.
type Finalization struct {
	JobID       uuid.UUID         `json:"job_id"`
	ContractID  string            `json:"contract_id"`
	Metadata    document.Metadata `json:"metadata"`
	TotalChunks int               `json:"total_chunks"`
	Policy      *policy.Policy    `json:"policy"`
}

// Finalization returns the aggregation inputs for p.
func (p *Prepared) Finalization(pol *policy.Policy) Finalization {
	return Finalization{
		JobID:       p.Job.ID,
		ContractID:  p.Job.ContractID,
		Metadata:    p.Metadata,
		TotalChunks: p.Plan.TotalChunks,
		Policy:      pol,
	}
}

// Prepare moves a queued job through processing and chunking: it fetches
// the source, extracts metadata, plans chunks, and slices the text of every
// chunk.
func (r *Runner) Prepare(ctx context.Context, job *jobs.Job, pol *policy.Policy) (*Prepared, error) {
	if err := r.claim(ctx, job.ID); err != nil {
		return nil, err
	}

	data, err := r.extractor.Fetch(ctx, job.SourceKey)
	if err != nil {
		return nil, err
	}

	meta, err := r.extractor.Extract(data, job.Filename, pol.ChunkCharSize)
	if err != nil {
		return nil, err
	}

	var text string
	if !meta.FileType.Paginated() {
		if text, err = document.FullText(data, meta.FileType); err != nil {
			return nil, err
		}
	}

	plan, err := chunking.NewPlan(meta, text)
	if err != nil {
		return nil, err
	}

	tasks, err := Tasks(data, text, plan)
	if err != nil {
		return nil, err
	}

	if err := r.registry.Transition(ctx, job.ID, jobs.StatusChunking); err != nil {
		return nil, err
	}

	r.logger.Info(
		"job planned",
		"job_id", job.ID,
		"file_type", meta.FileType,
		"unit", plan.Unit,
		"total_length", plan.TotalLength,
		"total_chunks", plan.TotalChunks,
	)

	return &Prepared{
		Job:      job,
		Metadata: meta,
		Plan:     plan,
		Tasks:    tasks,
	}, nil
}

// claim moves a queued job to processing. Losing the claim to another
// runner, or finding the job terminal, is reported as ErrNotClaimed.
func (r *Runner) claim(ctx context.Context, id uuid.UUID) error {
	err := r.registry.Transition(ctx, id, jobs.StatusProcessing)
	if errors.Is(err, jobs.ErrInvalidTransition) || errors.Is(err, jobs.ErrTerminal) {
		return fmt.Errorf("%w: %w", ErrNotClaimed, err)
	}
	return err
}

// Tasks slices the text of every chunk in plan. Page chunks are extracted
// from the pdf bytes in data; character chunks are cut from text by
// character index. A page range that cannot be extracted fails as a
// *processor.ChunkError for its index.
func Tasks(data []byte, text string, plan *chunking.Plan) ([]processor.Task, error) {
	tasks := make([]processor.Task, 0, plan.TotalChunks)

	var runes []rune
	if plan.Unit == chunking.Chars {
		runes = []rune(text)
	}

	for _, spec := range plan.Chunks {
		task := processor.Task{Spec: spec, TotalChunks: plan.TotalChunks}

		switch plan.Unit {
		case chunking.Pages:
			t, err := document.PageText(data, spec.Range.Start, spec.Range.End)
			if err != nil {
				return nil, &processor.ChunkError{Index: spec.Index, Err: err}
			}
			task.Text = t
		case chunking.Chars:
			task.Text = string(runes[spec.Range.Start:spec.Range.End])
		default:
			return nil, fmt.Errorf("unknown chunk unit %q", plan.Unit)
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}

// ProcessChunk classifies one chunk, reports its progress, and buffers its
// result in the registry.
func (r *Runner) ProcessChunk(
	ctx context.Context,
	jobID uuid.UUID,
	proc *processor.Processor,
	task processor.Task,
) (*processor.ChunkResult, error) {
	report := func(ctx context.Context, p int) {
		if _, err := r.registry.SetProgress(ctx, jobID, p); err != nil {
			r.logger.Warn("progress update failed", "job_id", jobID, "progress", p, "error", err)
		}
	}

	result, err := proc.Process(ctx, task, report)
	if err != nil {
		return nil, err
	}

	saved, err := r.registry.SaveChunkResult(ctx, jobID, result)
	if err != nil {
		return nil, &processor.ChunkError{Index: task.Spec.Index, Err: err}
	}
	if !saved {
		r.logger.Warn("duplicate chunk result ignored", "job_id", jobID, "chunk_index", result.Index)
		return result, nil
	}

	categories := make([]string, len(result.ClausesFound))
	for i, c := range result.ClausesFound {
		categories[i] = c.Category
	}
	r.metrics.ChunkProcessed(categories)

	r.logger.Debug(
		"chunk saved",
		"job_id", jobID,
		"chunk_index", result.Index,
		"clauses", len(result.ClausesFound),
	)
	return result, nil
}

// TryFinalize evaluates the aggregation barrier for a job. It reports
// false, with a nil error, while chunk results are missing or when another
// caller has already claimed aggregation. The caller that wins the
// analyzing → aggregating transition merges, validates, persists the
// report, and completes the job. It is safe to call repeatedly.
func (r *Runner) TryFinalize(ctx context.Context, f Finalization) (bool, error) {
	buffered, err := r.registry.ChunkResults(ctx, f.JobID)
	if err != nil {
		return false, err
	}

	merged, err := aggregate.Merge(f.TotalChunks, buffered)
	if errors.Is(err, aggregate.ErrIncomplete) {
		r.logger.Debug("barrier not satisfied", "job_id", f.JobID, "received", len(buffered), "total_chunks", f.TotalChunks)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := r.registry.Transition(ctx, f.JobID, jobs.StatusAggregating); err != nil {
		if errors.Is(err, jobs.ErrInvalidTransition) || errors.Is(err, jobs.ErrTerminal) {
			return false, nil
		}
		return false, err
	}

	validation := aggregate.Validate(merged, f.Policy)

	key, err := r.sink.Write(ctx, &results.Report{
		JobID:       f.JobID,
		ContractID:  f.ContractID,
		Metadata:    f.Metadata,
		TotalChunks: f.TotalChunks,
		Analysis:    merged,
		Validation:  validation,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}

	completed, err := r.registry.Complete(ctx, f.JobID, key)
	if err != nil {
		return false, err
	}
	if completed {
		r.metrics.JobFinished(string(jobs.StatusCompleted), r.startedAt(ctx, f.JobID))
		r.logger.Info(
			"job completed",
			"job_id", f.JobID,
			"passed", validation.Passed,
			"issues", len(validation.Issues),
			"warnings", len(validation.Warnings),
		)
	}
	return completed, nil
}
