package processor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/JaimeStill/docket/internal/chunking"
	"github.com/JaimeStill/docket/internal/classify"
	"github.com/JaimeStill/docket/internal/policy"
	"github.com/JaimeStill/docket/internal/processor"
)

func newProcessor(t *testing.T, batch int) *processor.Processor {
	t.Helper()

	p := &policy.Policy{
		RequiredSections: []string{"I", "II", "III"},
		Taxonomy: []policy.Category{
			{Name: "indemnification", Keywords: []string{"indemnify", "hold harmless"}},
			{Name: "termination", Keywords: []string{"terminate"}},
		},
	}

	c, err := classify.New(p)
	if err != nil {
		t.Fatalf("classify.New: %v", err)
	}
	return processor.New(c, batch, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func task(index, total int, text string) processor.Task {
	return processor.Task{
		Spec:        chunking.ChunkSpec{Index: index, Unit: chunking.Chars},
		TotalChunks: total,
		Text:        text,
	}
}

const sample = `Preamble mentions terminate before any header.

I. DEFINITIONS
Supplier shall indemnify and hold harmless the Buyer.
II. TERM
Either party may terminate this Agreement.`

func TestProcess(t *testing.T) {
	proc := newProcessor(t, 0)

	result, err := proc.Process(context.Background(), task(2, 3, sample), nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Index != 2 {
		t.Errorf("index = %d, want 2", result.Index)
	}

	expectedSections := map[string][]string{
		"I":  {"I. DEFINITIONS", "Supplier shall indemnify and hold harmless the Buyer."},
		"II": {"II. TERM", "Either party may terminate this Agreement."},
	}
	if !reflect.DeepEqual(result.Sections, expectedSections) {
		t.Errorf("sections = %v, want %v", result.Sections, expectedSections)
	}

	if !reflect.DeepEqual(result.SectionOrder, []string{"I", "II"}) {
		t.Errorf("section order = %v, want [I II]", result.SectionOrder)
	}

	expectedClauses := []processor.Clause{
		{Category: "termination", Keyword: "terminate", Line: "Preamble mentions terminate before any header.", LineNumber: 1},
		{Category: "indemnification", Keyword: "indemnify", Line: "Supplier shall indemnify and hold harmless the Buyer.", LineNumber: 4, Section: "I"},
		{Category: "termination", Keyword: "terminate", Line: "Either party may terminate this Agreement.", LineNumber: 6, Section: "II"},
	}
	if !reflect.DeepEqual(result.ClausesFound, expectedClauses) {
		t.Errorf("clauses = %+v, want %+v", result.ClausesFound, expectedClauses)
	}
}

func TestProcessEmpty(t *testing.T) {
	result, err := newProcessor(t, 0).Process(context.Background(), task(0, 1, ""), nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(result.Sections) != 0 || len(result.ClausesFound) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if result.ClausesFound == nil {
		t.Error("clauses_found should be an empty list, not nil")
	}
}

func TestProcessInvalidText(t *testing.T) {
	_, err := newProcessor(t, 0).Process(context.Background(), task(4, 5, "bad \xff bytes"), nil)

	if !errors.Is(err, processor.ErrChunkProcessing) {
		t.Fatalf("got %v, want ErrChunkProcessing", err)
	}

	var ce *processor.ChunkError
	if !errors.As(err, &ce) {
		t.Fatalf("got %T, want *ChunkError", err)
	}
	if ce.Index != 4 {
		t.Errorf("index = %d, want 4", ce.Index)
	}
}

func TestProcessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newProcessor(t, 0).Process(ctx, task(1, 2, sample), nil)
	if !errors.Is(err, processor.ErrChunkProcessing) {
		t.Errorf("got %v, want ErrChunkProcessing", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestProcessReportsMonotonicProgress(t *testing.T) {
	proc := newProcessor(t, 10)
	text := strings.Repeat("Either party may terminate.\n", 95)

	var (
		mu      sync.Mutex
		reports []int
	)
	report := func(_ context.Context, p int) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, p)
	}

	if _, err := proc.Process(context.Background(), task(0, 1, text), report); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(reports) != 10 {
		t.Fatalf("got %d reports, want 10: %v", len(reports), reports)
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] < reports[i-1] {
			t.Errorf("progress regressed: %v", reports)
		}
	}
	if last := reports[len(reports)-1]; last != processor.ProgressAnalyzing {
		t.Errorf("final progress = %d, want %d", last, processor.ProgressAnalyzing)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name                      string
		index, total, done, lines int
		expected                  int
	}{
		{"start of first chunk", 0, 4, 0, 100, processor.ProgressChunking},
		{"end of last chunk", 3, 4, 100, 100, processor.ProgressAnalyzing},
		{"half of single chunk", 0, 1, 50, 100, 52},
		{"second of two chunks begins at midpoint", 1, 2, 0, 10, 52},
		{"done beyond lines clamps", 0, 1, 500, 100, processor.ProgressAnalyzing},
		{"zero total", 0, 0, 0, 0, processor.ProgressChunking},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := processor.Progress(tt.index, tt.total, tt.done, tt.lines); got != tt.expected {
				t.Errorf("got %d, want %d", got, tt.expected)
			}
		})
	}
}
