package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/internal/processor"
	"github.com/JaimeStill/docket/pkg/query"
	"github.com/JaimeStill/docket/pkg/repository"
)

type postgresRegistry struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgres creates a Registry backed by the jobs and chunk_results tables.
// Every conditional write is a single guarded UPDATE or INSERT, so concurrent
// workers cannot regress progress or leave a terminal status.
func NewPostgres(db *sql.DB, logger *slog.Logger) Registry {
	return &postgresRegistry{
		db:     db,
		logger: logger.With("system", "jobs", "backend", BackendPostgres),
	}
}

func (r *postgresRegistry) Create(ctx context.Context, cmd CreateCommand) (*Job, error) {
	q := `
		INSERT INTO jobs(id, contract_id, source_key, filename, status, progress)
		VALUES ($1, $2, $3, $4, $5, 0)
		RETURNING id, contract_id, source_key, filename, status, progress, error, result_ref, started_at, completed_at, created_at, updated_at`

	args := []any{uuid.New(), cmd.ContractID, cmd.SourceKey, cmd.Filename, string(StatusQueued)}

	j, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Job, error) {
		return repository.QueryOne(ctx, tx, q, args, scanJob)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("job created", "job_id", j.ID, "contract_id", j.ContractID)
	return &j, nil
}

func (r *postgresRegistry) Find(ctx context.Context, id uuid.UUID) (*Job, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	j, err := repository.QueryOne(ctx, r.db, q, args, scanJob)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &j, nil
}

func (r *postgresRegistry) List(ctx context.Context, f Filters) ([]Job, error) {
	q, args := f.Apply(query.NewBuilder(projection, defaultSort)).Build()

	jobs, err := repository.QueryMany(ctx, r.db, q, args, scanJob)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	return jobs, nil
}

func (r *postgresRegistry) Transition(ctx context.Context, id uuid.UUID, to Status) error {
	if to.Terminal() {
		return terminalTarget(to)
	}

	from := to.Predecessors()
	args := []any{id, string(to), to.ProgressFloor()}
	q := fmt.Sprintf(`
		UPDATE jobs SET
			status = $2,
			progress = GREATEST(progress, $3),
			started_at = CASE WHEN $2 = '%s' THEN now() ELSE started_at END,
			updated_at = now()
		WHERE id = $1 AND status IN (%s)`,
		StatusProcessing, placeholders(len(args)+1, len(from)),
	)
	for _, s := range from {
		args = append(args, string(s))
	}

	applied, err := repository.ExecConditional(ctx, r.db, q, args...)
	if err != nil {
		return fmt.Errorf("transition job %s to %s: %w", id, to, err)
	}
	if applied {
		r.logger.Debug("job transitioned", "job_id", id, "status", to)
		return nil
	}

	return r.explain(ctx, id, to)
}

func (r *postgresRegistry) SetProgress(ctx context.Context, id uuid.UUID, p int) (bool, error) {
	q := `
		UPDATE jobs SET progress = $2, updated_at = now()
		WHERE id = $1 AND progress < $2 AND status NOT IN ($3, $4)`

	applied, err := repository.ExecConditional(ctx, r.db, q, id, clampProgress(p), string(StatusCompleted), string(StatusFailed))
	if err != nil {
		return false, fmt.Errorf("set progress for job %s: %w", id, err)
	}
	if !applied {
		return false, r.exists(ctx, id)
	}
	return true, nil
}

func (r *postgresRegistry) Complete(ctx context.Context, id uuid.UUID, resultRef string) (bool, error) {
	q := `
		UPDATE jobs SET
			status = $2, progress = 100, result_ref = $3,
			completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $4`

	applied, err := repository.ExecConditional(ctx, r.db, q, id, string(StatusCompleted), resultRef, string(StatusAggregating))
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", id, err)
	}
	if applied {
		r.logger.Info("job completed", "job_id", id, "result_ref", resultRef)
		return true, nil
	}

	if err := r.explain(ctx, id, StatusCompleted); !errors.Is(err, ErrTerminal) {
		return false, err
	}
	return false, nil
}

func (r *postgresRegistry) Fail(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	q := `
		UPDATE jobs SET
			status = $2, error = $3,
			completed_at = now(), updated_at = now()
		WHERE id = $1 AND status NOT IN ($2, $4)`

	applied, err := repository.ExecConditional(ctx, r.db, q, id, string(StatusFailed), message, string(StatusCompleted))
	if err != nil {
		return false, fmt.Errorf("fail job %s: %w", id, err)
	}
	if applied {
		r.logger.Warn("job failed", "job_id", id, "error", message)
		return true, nil
	}
	return false, r.exists(ctx, id)
}

func (r *postgresRegistry) SaveChunkResult(ctx context.Context, id uuid.UUID, result *processor.ChunkResult) (bool, error) {
	if result == nil {
		return false, ErrNilChunkResult
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("marshal chunk %d: %w", result.Index, err)
	}

	q := `
		INSERT INTO chunk_results(job_id, chunk_index, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id, chunk_index) DO NOTHING`

	applied, err := repository.ExecConditional(ctx, r.db, q, id, result.Index, payload)
	if err != nil {
		return false, fmt.Errorf("save chunk %d for job %s: %w", result.Index, id, repository.MapError(err, ErrNotFound, ErrDuplicate))
	}
	return applied, nil
}

func (r *postgresRegistry) ChunkResults(ctx context.Context, id uuid.UUID) ([]*processor.ChunkResult, error) {
	if err := r.exists(ctx, id); err != nil {
		return nil, err
	}

	q := `SELECT payload FROM chunk_results WHERE job_id = $1 ORDER BY chunk_index`

	results, err := repository.QueryMany(ctx, r.db, q, []any{id}, scanChunkResult)
	if err != nil {
		return nil, fmt.Errorf("query chunk results for job %s: %w", id, err)
	}
	return results, nil
}

// explain reports why a guarded status write did not apply.
func (r *postgresRegistry) explain(ctx context.Context, id uuid.UUID, to Status) error {
	j, err := r.Find(ctx, id)
	if err != nil {
		return err
	}
	return rejection(j.Status, to)
}

func (r *postgresRegistry) exists(ctx context.Context, id uuid.UUID) error {
	var found bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)", id).Scan(&found)
	if err != nil {
		return fmt.Errorf("check job %s: %w", id, err)
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func scanChunkResult(s repository.Scanner) (*processor.ChunkResult, error) {
	var payload []byte
	if err := s.Scan(&payload); err != nil {
		return nil, err
	}

	var result processor.ChunkResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode chunk result: %w", err)
	}
	return &result, nil
}

// placeholders returns n comma-separated positional parameters starting at $start.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}
