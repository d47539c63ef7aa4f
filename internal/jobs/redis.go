package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/docket/internal/processor"
)

const (
	redisJobPrefix = "docket:job:"
	redisJobIndex  = "docket:jobs"
)

// advanceScript applies field writes only when the job's status is one of
// the listed predecessors. The progress field is never lowered.
//
//	KEYS[1]  job hash
//	ARGV[1]  n, the number of allowed current statuses
//	ARGV[2..n+1]  allowed statuses
//	ARGV[n+2..]   field/value pairs
var advanceScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then return -1 end
local n = tonumber(ARGV[1])
local allowed = false
for i = 2, n + 1 do
  if ARGV[i] == status then allowed = true break end
end
if not allowed then return 0 end
for i = n + 2, #ARGV, 2 do
  local field, value = ARGV[i], ARGV[i + 1]
  if field == 'progress' then
    local cur = tonumber(redis.call('HGET', KEYS[1], 'progress') or '0')
    if tonumber(value) > cur then redis.call('HSET', KEYS[1], field, value) end
  else
    redis.call('HSET', KEYS[1], field, value)
  end
end
return 1
`)

// progressScript raises progress on a non-terminal job.
//
//	KEYS[1]  job hash
//	ARGV[1]  progress
//	ARGV[2]  updated_at
var progressScript = redis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'status', 'progress')
if not cur[1] then return -1 end
if cur[1] == 'completed' or cur[1] == 'failed' then return 0 end
if tonumber(ARGV[1]) <= tonumber(cur[2] or '0') then return 0 end
redis.call('HSET', KEYS[1], 'progress', ARGV[1], 'updated_at', ARGV[2])
return 1
`)

type redisRegistry struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewRedis creates a Registry that stores each job as a hash and its chunk
// results as a hash keyed by chunk index. Guarded writes run as Lua scripts.
func NewRedis(client redis.UniversalClient, logger *slog.Logger) Registry {
	return &redisRegistry{
		client: client,
		logger: logger.With("system", "jobs", "backend", BackendRedis),
	}
}

func jobKey(id uuid.UUID) string {
	return redisJobPrefix + id.String()
}

func chunksKey(id uuid.UUID) string {
	return redisJobPrefix + id.String() + ":chunks"
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (r *redisRegistry) Create(ctx context.Context, cmd CreateCommand) (*Job, error) {
	now := time.Now().UTC()
	j := &Job{
		ID:         uuid.New(),
		ContractID: cmd.ContractID,
		SourceKey:  cmd.SourceKey,
		Filename:   cmd.Filename,
		Status:     StatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, jobKey(j.ID),
			"id", j.ID.String(),
			"contract_id", j.ContractID,
			"source_key", j.SourceKey,
			"filename", j.Filename,
			"status", string(j.Status),
			"progress", 0,
			"created_at", stamp(now),
			"updated_at", stamp(now),
		)
		pipe.ZAdd(ctx, redisJobIndex, redis.Z{Score: float64(now.UnixMilli()), Member: j.ID.String()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	r.logger.Info("job created", "job_id", j.ID, "contract_id", j.ContractID)
	return j, nil
}

func (r *redisRegistry) Find(ctx context.Context, id uuid.UUID) (*Job, error) {
	fields, err := r.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeJob(fields)
}

func (r *redisRegistry) List(ctx context.Context, f Filters) ([]Job, error) {
	ids, err := r.client.ZRevRange(ctx, redisJobIndex, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, redisJobPrefix+id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	out := make([]Job, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		j, err := decodeJob(fields)
		if err != nil {
			return nil, err
		}
		if f.Status != nil && j.Status != *f.Status {
			continue
		}
		if f.ContractID != nil && j.ContractID != *f.ContractID {
			continue
		}

		out = append(out, *j)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r *redisRegistry) Transition(ctx context.Context, id uuid.UUID, to Status) error {
	if to.Terminal() {
		return terminalTarget(to)
	}

	now := stamp(time.Now())
	fields := []any{
		"status", string(to),
		"progress", to.ProgressFloor(),
		"updated_at", now,
	}
	if to == StatusProcessing {
		fields = append(fields, "started_at", now)
	}

	applied, err := r.advance(ctx, id, to.Predecessors(), fields)
	if err != nil {
		return fmt.Errorf("transition job %s to %s: %w", id, to, err)
	}
	if applied {
		r.logger.Debug("job transitioned", "job_id", id, "status", to)
		return nil
	}
	return r.explain(ctx, id, to)
}

func (r *redisRegistry) SetProgress(ctx context.Context, id uuid.UUID, p int) (bool, error) {
	res, err := progressScript.Run(ctx, r.client, []string{jobKey(id)}, clampProgress(p), stamp(time.Now())).Int()
	if err != nil {
		return false, fmt.Errorf("set progress for job %s: %w", id, err)
	}
	if res < 0 {
		return false, ErrNotFound
	}
	return res == 1, nil
}

func (r *redisRegistry) Complete(ctx context.Context, id uuid.UUID, resultRef string) (bool, error) {
	now := stamp(time.Now())
	applied, err := r.advance(ctx, id, StatusCompleted.Predecessors(), []any{
		"status", string(StatusCompleted),
		"progress", 100,
		"result_ref", resultRef,
		"completed_at", now,
		"updated_at", now,
	})
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

func (r *redisRegistry) Fail(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	now := stamp(time.Now())
	applied, err := r.advance(ctx, id, StatusFailed.Predecessors(), []any{
		"status", string(StatusFailed),
		"error", message,
		"completed_at", now,
		"updated_at", now,
	})
	if err != nil {
		return false, fmt.Errorf("fail job %s: %w", id, err)
	}
	if applied {
		r.logger.Warn("job failed", "job_id", id, "error", message)
	}
	return applied, nil
}

func (r *redisRegistry) SaveChunkResult(ctx context.Context, id uuid.UUID, result *processor.ChunkResult) (bool, error) {
	if result == nil {
		return false, ErrNilChunkResult
	}
	if err := r.exists(ctx, id); err != nil {
		return false, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("marshal chunk %d: %w", result.Index, err)
	}

	ok, err := r.client.HSetNX(ctx, chunksKey(id), strconv.Itoa(result.Index), payload).Result()
	if err != nil {
		return false, fmt.Errorf("save chunk %d for job %s: %w", result.Index, id, err)
	}
	return ok, nil
}

func (r *redisRegistry) ChunkResults(ctx context.Context, id uuid.UUID) ([]*processor.ChunkResult, error) {
	if err := r.exists(ctx, id); err != nil {
		return nil, err
	}

	raw, err := r.client.HGetAll(ctx, chunksKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("query chunk results for job %s: %w", id, err)
	}

	out := make([]*processor.ChunkResult, 0, len(raw))
	for field, payload := range raw {
		var result processor.ChunkResult
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			return nil, fmt.Errorf("decode chunk %s for job %s: %w", field, id, err)
		}
		out = append(out, &result)
	}

	slices.SortFunc(out, func(a, b *processor.ChunkResult) int {
		return a.Index - b.Index
	})
	return out, nil
}

func (r *redisRegistry) advance(ctx context.Context, id uuid.UUID, from []Status, fields []any) (bool, error) {
	args := make([]any, 0, 1+len(from)+len(fields))
	args = append(args, len(from))
	for _, s := range from {
		args = append(args, string(s))
	}
	args = append(args, fields...)

	res, err := advanceScript.Run(ctx, r.client, []string{jobKey(id)}, args...).Int()
	if err != nil {
		return false, err
	}
	if res < 0 {
		return false, ErrNotFound
	}
	return res == 1, nil
}

func (r *redisRegistry) explain(ctx context.Context, id uuid.UUID, to Status) error {
	status, err := r.client.HGet(ctx, jobKey(id), "status").Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read job %s status: %w", id, err)
	}
	return rejection(Status(status), to)
}

func (r *redisRegistry) exists(ctx context.Context, id uuid.UUID) error {
	n, err := r.client.Exists(ctx, jobKey(id)).Result()
	if err != nil {
		return fmt.Errorf("check job %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeJob(fields map[string]string) (*Job, error) {
	id, err := uuid.Parse(fields["id"])
	if err != nil {
		return nil, fmt.Errorf("decode job id: %w", err)
	}

	progress, err := strconv.Atoi(fields["progress"])
	if err != nil {
		return nil, fmt.Errorf("decode job %s progress: %w", id, err)
	}

	j := &Job{
		ID:         id,
		ContractID: fields["contract_id"],
		SourceKey:  fields["source_key"],
		Filename:   fields["filename"],
		Status:     Status(fields["status"]),
		Progress:   progress,
	}

	if v, ok := fields["error"]; ok {
		j.Error = &v
	}
	if v, ok := fields["result_ref"]; ok {
		j.ResultRef = &v
	}

	times := []struct {
		field string
		dst   **time.Time
	}{
		{"started_at", &j.StartedAt},
		{"completed_at", &j.CompletedAt},
	}
	for _, t := range times {
		v, ok := fields[t.field]
		if !ok {
			continue
		}
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("decode job %s %s: %w", id, t.field, err)
		}
		*t.dst = &parsed
	}

	if j.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return nil, fmt.Errorf("decode job %s created_at: %w", id, err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		return nil, fmt.Errorf("decode job %s updated_at: %w", id, err)
	}

	return j, nil
}
