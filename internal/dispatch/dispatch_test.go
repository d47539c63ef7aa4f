package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/docket/internal/dispatch"
	"github.com/JaimeStill/docket/internal/jobs"
	"github.com/JaimeStill/docket/internal/pipeline"
	"github.com/JaimeStill/docket/pkg/lifecycle"
	"github.com/JaimeStill/docket/pkg/queue"
	"github.com/JaimeStill/docket/pkg/storage"
)

// offlineQueue satisfies queue.System without a Redis server. Chunk
// handling never enqueues, so the clients are never used.
type offlineQueue struct {
	cfg *queue.Config
}

func (q *offlineQueue) Redis() redis.UniversalClient { return nil }
func (q *offlineQueue) Tasks() *asynq.Client         { return nil }
func (q *offlineQueue) Config() *queue.Config        { return q.cfg }

func (q *offlineQueue) Options() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: q.cfg.Addr}
}

func (q *offlineQueue) Start(lc *lifecycle.Coordinator) error { return nil }

type harness struct {
	dispatcher *dispatch.Dispatcher
	runner     *pipeline.Runner
	registry   jobs.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	scfg := &storage.Config{Provider: storage.ProviderLocal, Root: t.TempDir()}
	if err := scfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}
	store, err := storage.New(scfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	lc := lifecycle.New()
	if err := store.Start(lc); err != nil {
		t.Fatal(err)
	}
	if err := lc.WaitForStartup(); err != nil {
		t.Fatal(err)
	}

	qcfg := &queue.Config{}
	if err := qcfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}

	registry := jobs.NewMemory()
	runner := pipeline.New(pipeline.Config{}, registry, store, nil, logger)

	return &harness{
		dispatcher: dispatch.New(runner, &offlineQueue{cfg: qcfg}, logger),
		runner:     runner,
		registry:   registry,
	}
}

// chunkTasks drives a job through planning the way HandleJob does and
// returns the chunk tasks it would enqueue.
func chunkTasks(t *testing.T, h *harness, text string) (*jobs.Job, []*asynq.Task) {
	t.Helper()
	ctx := context.Background()

	job, err := h.runner.Submit(ctx, pipeline.SubmitCommand{
		ContractID: "c-1",
		Filename:   "contract.txt",
		Data:       []byte(text),
	})
	if err != nil {
		t.Fatal(err)
	}

	pol, err := h.runner.Policy()
	if err != nil {
		t.Fatal(err)
	}
	pol.ChunkCharSize = 16

	prep, err := h.runner.Prepare(ctx, job, pol)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.registry.Transition(ctx, job.ID, jobs.StatusAnalyzing); err != nil {
		t.Fatal(err)
	}

	final := prep.Finalization(pol)
	var tasks []*asynq.Task
	for _, task := range prep.Tasks {
		at, err := dispatch.NewChunkTask(dispatch.ChunkPayload{Finalization: final, Task: task})
		if err != nil {
			t.Fatal(err)
		}
		tasks = append(tasks, at)
	}
	return job, tasks
}

func TestNewJobTask(t *testing.T) {
	h := newHarness(t)
	job, err := h.registry.Create(context.Background(), jobs.CreateCommand{ContractID: "c"})
	if err != nil {
		t.Fatal(err)
	}

	task, err := dispatch.NewJobTask(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != dispatch.TypeJob {
		t.Errorf("type = %q", task.Type())
	}
	if string(task.Payload()) != `{"job_id":"`+job.ID.String()+`"}` {
		t.Errorf("payload = %s", task.Payload())
	}
}

func TestHandleChunkOutOfOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	job, tasks := chunkTasks(t, h, "I. TERMS\nBuyer may terminate.\nII. FEES DUE\n")
	if len(tasks) < 2 {
		t.Fatalf("expected several chunk tasks, got %d", len(tasks))
	}

	for i := len(tasks) - 1; i >= 0; i-- {
		if err := h.dispatcher.HandleChunk(ctx, tasks[i]); err != nil {
			t.Fatalf("HandleChunk(%d): %v", i, err)
		}

		got, _ := h.registry.Find(ctx, job.ID)
		if i > 0 && got.Status != jobs.StatusAnalyzing {
			t.Fatalf("status after chunk %d = %s, want analyzing", i, got.Status)
		}
	}

	done, _ := h.registry.Find(ctx, job.ID)
	if done.Status != jobs.StatusCompleted || done.Progress != 100 {
		t.Errorf("job = %s/%d, want completed/100", done.Status, done.Progress)
	}

	if err := h.dispatcher.HandleChunk(ctx, tasks[0]); err != nil {
		t.Errorf("redelivery after completion: %v", err)
	}
}

func TestHandleChunkFailureFailsJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	job, tasks := chunkTasks(t, h, "I. TERMS\nBuyer may terminate.\n")

	var payload dispatch.ChunkPayload
	if err := json.Unmarshal(tasks[0].Payload(), &payload); err != nil {
		t.Fatal(err)
	}
	payload.Task.Text = "bad \xff text"
	broken, err := dispatch.NewChunkTask(payload)
	if err != nil {
		t.Fatal(err)
	}

	if err := h.dispatcher.HandleChunk(ctx, broken); err == nil {
		t.Fatal("expected chunk failure")
	}

	failed, _ := h.registry.Find(ctx, job.ID)
	if failed.Status != jobs.StatusFailed || failed.Error == nil {
		t.Fatalf("job = %s error=%v, want failed", failed.Status, failed.Error)
	}

	if err := h.dispatcher.HandleChunk(ctx, tasks[1]); err != nil {
		t.Errorf("chunk for failed job: %v", err)
	}
	if after, _ := h.registry.Find(ctx, job.ID); after.Status != jobs.StatusFailed {
		t.Errorf("status changed after failure: %s", after.Status)
	}
}

func TestNewChunkTaskID(t *testing.T) {
	h := newHarness(t)
	_, tasks := chunkTasks(t, h, "I. TERMS\nBuyer may terminate.\n")

	var p dispatch.ChunkPayload
	if err := json.Unmarshal(tasks[1].Payload(), &p); err != nil {
		t.Fatal(err)
	}
	if p.Task.Spec.Index != 1 {
		t.Errorf("index = %d, want 1", p.Task.Spec.Index)
	}
	if p.Finalization.Policy == nil || len(p.Finalization.Policy.RequiredSections) == 0 {
		t.Error("policy not carried in payload")
	}
	if p.Finalization.TotalChunks != len(tasks) {
		t.Errorf("total chunks = %d, want %d", p.Finalization.TotalChunks, len(tasks))
	}
}

func TestIsDuplicate(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"conflict", asynq.ErrTaskIDConflict, true},
		{"wrapped", fmt.Errorf("enqueue: %w", asynq.ErrTaskIDConflict), true},
		{"duplicate", asynq.ErrDuplicateTask, true},
		{"other", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dispatch.IsDuplicate(tt.err); got != tt.expected {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestHandleMalformedPayload(t *testing.T) {
	h := newHarness(t)

	err := h.dispatcher.HandleChunk(context.Background(), asynq.NewTask(dispatch.TypeChunk, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("got %v, want SkipRetry", err)
	}
}

func TestHandleJobSkipsClaimedJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	job, err := h.runner.Submit(ctx, pipeline.SubmitCommand{
		ContractID: "c-1",
		Filename:   "contract.txt",
		Data:       []byte("I. TERMS\nBuyer may terminate.\n"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.registry.Transition(ctx, job.ID, jobs.StatusProcessing); err != nil {
		t.Fatal(err)
	}

	task, err := dispatch.NewJobTask(job.ID)
	if err != nil {
		t.Fatal(err)
	}

	if err := h.dispatcher.HandleJob(ctx, task); err != nil {
		t.Fatalf("redelivered job task: %v", err)
	}

	got, _ := h.registry.Find(ctx, job.ID)
	if got.Status != jobs.StatusProcessing || got.Error != nil {
		t.Errorf("job = %s error=%v, want processing with no error", got.Status, got.Error)
	}
}
