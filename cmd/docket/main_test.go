package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JaimeStill/docket/internal/chunking"
	"github.com/JaimeStill/docket/internal/jobs"
	"github.com/JaimeStill/docket/internal/metrics"
	"github.com/JaimeStill/docket/internal/policy"
	"github.com/JaimeStill/docket/pkg/lifecycle"
)

// memoryEnv points every command at an in-memory registry and a
// temporary local store.
func memoryEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DOCKET_REGISTRY", "memory")
	t.Setenv("DOCKET_STORAGE_PROVIDER", "local")
	t.Setenv("DOCKET_STORAGE_ROOT", filepath.Join(dir, "blobs"))
	t.Setenv("DOCKET_LOG_LEVEL", "error")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath = ""

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPlanCommand(t *testing.T) {
	dir := memoryEnv(t)
	path := writeFile(t, dir, "contract.txt", strings.Repeat("x", 25000))

	out, err := execute(t, "plan", path)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	var got planOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"file type", string(got.Metadata.FileType), "text"},
		{"unit", got.Plan.Unit, chunking.Chars},
		{"total length", got.Plan.TotalLength, 25000},
		{"total chunks", got.Plan.TotalChunks, 3},
		{"last range", got.Plan.Chunks[2].Range, chunking.Range{Start: 20000, End: 25000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func TestPlanChunkSizeOverride(t *testing.T) {
	dir := memoryEnv(t)
	path := writeFile(t, dir, "contract.txt", strings.Repeat("y", 100))

	out, err := execute(t, "plan", "--chunk-size", "30", path)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	var got planOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if got.Plan.TotalChunks != 4 {
		t.Errorf("total chunks = %d, want 4", got.Plan.TotalChunks)
	}
}

func TestPlanUnsupported(t *testing.T) {
	dir := memoryEnv(t)
	path := writeFile(t, dir, "image.bin", "\x00\x01\x02binary")

	if _, err := execute(t, "plan", path); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestSubmitRun(t *testing.T) {
	dir := memoryEnv(t)
	pol, err := policy.Default()
	if err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, dir, "contract.txt", "I. TERMS\nEither party may terminate this agreement.\n"+pol.ClosingLine+"\n")

	out, err := execute(t, "submit", "--contract", "c-42", "--run", path)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var job jobs.Job
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("decode job: %v\n%s", err, out)
	}

	if job.ContractID != "c-42" {
		t.Errorf("contract id = %s", job.ContractID)
	}
	if job.Status != jobs.StatusCompleted || job.Progress != 100 {
		t.Errorf("job = %s/%d, want completed/100", job.Status, job.Progress)
	}
	if job.ResultRef == nil {
		t.Error("result ref not recorded")
	}
}

func TestSubmitRunFailureReported(t *testing.T) {
	dir := memoryEnv(t)
	path := writeFile(t, dir, "contract.docx", "not a zip archive")

	out, err := execute(t, "submit", "--contract", "c-1", "--run", path)
	if err == nil {
		t.Fatal("expected run error")
	}

	var job jobs.Job
	if jerr := json.Unmarshal([]byte(out), &job); jerr != nil {
		t.Fatalf("decode job: %v\n%s", jerr, out)
	}
	if job.Status != jobs.StatusFailed || job.Error == nil || *job.Error != err.Error() {
		t.Errorf("job = %s error=%v, want failed with %q", job.Status, job.Error, err)
	}
}

func TestSubmitRequiresContract(t *testing.T) {
	dir := memoryEnv(t)
	path := writeFile(t, dir, "contract.txt", "text")

	if _, err := execute(t, "submit", path); err == nil {
		t.Fatal("expected missing --contract error")
	}
}

func TestSubmitExclusiveModes(t *testing.T) {
	dir := memoryEnv(t)
	path := writeFile(t, dir, "contract.txt", "text")

	if _, err := execute(t, "submit", "--contract", "c", "--run", "--enqueue", path); err == nil {
		t.Fatal("expected mutually exclusive flag error")
	}
}

func TestStatusUnknownJob(t *testing.T) {
	memoryEnv(t)

	if _, err := execute(t, "status", "7d3c1a4e-0000-4000-8000-000000000000"); err == nil {
		t.Fatal("expected not found error")
	}
	if _, err := execute(t, "status", "not-a-uuid"); err == nil {
		t.Fatal("expected invalid id error")
	}
	if _, err := execute(t, "status", "--status", "sleeping"); err == nil {
		t.Fatal("expected invalid status error")
	}
}

func TestStatusListEmpty(t *testing.T) {
	memoryEnv(t)

	out, err := execute(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if strings.TrimSpace(out) != "[]" && strings.TrimSpace(out) != "null" {
		t.Errorf("output = %q, want empty list", out)
	}
}

func TestMetricsMux(t *testing.T) {
	lc := lifecycle.New()
	m := metrics.New()
	mux := buildMetricsMux("/metrics", m.Handler(), lc)

	tests := []struct {
		name     string
		path     string
		expected int
	}{
		{"metrics", "/metrics", http.StatusOK},
		{"healthz", "/healthz", http.StatusOK},
		{"readyz before startup", "/readyz", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.expected {
				t.Errorf("status = %d, want %d", rec.Code, tt.expected)
			}
		})
	}

	if err := lc.WaitForStartup(); err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz after startup = %d, want 200", rec.Code)
	}
}

func TestPlanHelper(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pol, err := policy.Default()
	if err != nil {
		t.Fatal(err)
	}
	pol.ChunkCharSize = 5

	out, err := plan([]byte("abcdefghij"), "notes.txt", pol, logger)
	if err != nil {
		t.Fatal(err)
	}
	if out.Plan.TotalChunks != 2 || out.Metadata.ChunkCharSize != 5 {
		t.Errorf("plan = %+v metadata = %+v", out.Plan, out.Metadata)
	}
}
