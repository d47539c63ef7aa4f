package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JaimeStill/docket/internal/metrics"
)

func TestChunkProcessed(t *testing.T) {
	m := metrics.New()
	m.ChunkProcessed([]string{"payment", "payment", "termination"})
	m.ChunkProcessed(nil)

	expected := `
# HELP docket_clauses_found_total Clauses matched, by taxonomy category.
# TYPE docket_clauses_found_total counter
docket_clauses_found_total{category="payment"} 2
docket_clauses_found_total{category="termination"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "docket_clauses_found_total"); err != nil {
		t.Error(err)
	}

	chunks := `
# HELP docket_chunks_processed_total Chunks classified successfully.
# TYPE docket_chunks_processed_total counter
docket_chunks_processed_total 2
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(chunks), "docket_chunks_processed_total"); err != nil {
		t.Error(err)
	}
}

func TestJobFinished(t *testing.T) {
	m := metrics.New()
	m.JobFinished("completed", time.Now().Add(-time.Second))
	m.JobFinished("failed", time.Time{})

	expected := `
# HELP docket_jobs_total Jobs that reached a terminal status, by status.
# TYPE docket_jobs_total counter
docket_jobs_total{status="completed"} 1
docket_jobs_total{status="failed"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "docket_jobs_total"); err != nil {
		t.Error(err)
	}

	n, err := testutil.GatherAndCount(m.Registry(), "docket_job_duration_seconds")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *metrics.Metrics
	m.JobFinished("completed", time.Now())
	m.ChunkProcessed([]string{"x"})
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.ChunkProcessed(nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "docket_chunks_processed_total 1") {
		t.Error("exposition missing chunk counter")
	}
}
