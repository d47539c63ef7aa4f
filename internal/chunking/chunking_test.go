package chunking_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/JaimeStill/docket/internal/chunking"
	"github.com/JaimeStill/docket/internal/document"
)

func pdfMeta(pages int) document.Metadata {
	return document.Metadata{
		FileType:            document.PDF,
		PageCount:           pages,
		EstimatedChunkCount: max(1, pages/document.PagesPerEstimatedChunk),
		ChunkCharSize:       document.DefaultChunkCharSize,
	}
}

func textMeta(size int) document.Metadata {
	return document.Metadata{
		FileType:            document.Text,
		PageCount:           1,
		EstimatedChunkCount: 1,
		ChunkCharSize:       size,
	}
}

func ranges(p *chunking.Plan) []chunking.Range {
	out := make([]chunking.Range, len(p.Chunks))
	for i, c := range p.Chunks {
		out[i] = c.Range
	}
	return out
}

func TestNewPlanPages(t *testing.T) {
	tests := []struct {
		name  string
		pages int
		want  []chunking.Range
	}{
		{"single page", 1, []chunking.Range{{0, 1}}},
		{"under stride", 49, []chunking.Range{{0, 49}}},
		{"exact stride", 50, []chunking.Range{{0, 50}}},
		{"two estimated chunks", 120, []chunking.Range{{0, 60}, {60, 120}}},
		{"remainder", 149, []chunking.Range{{0, 74}, {74, 148}, {148, 149}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := chunking.NewPlan(pdfMeta(tt.pages), "")
			if err != nil {
				t.Fatalf("NewPlan: %v", err)
			}
			if plan.Unit != chunking.Pages {
				t.Errorf("unit = %q, want %q", plan.Unit, chunking.Pages)
			}
			if got := ranges(plan); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ranges = %v, want %v", got, tt.want)
			}
			if plan.TotalChunks != len(tt.want) {
				t.Errorf("total chunks = %d, want %d", plan.TotalChunks, len(tt.want))
			}
		})
	}
}

func TestNewPlanChars(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []chunking.Range
	}{
		{"empty", "", 10, []chunking.Range{{0, 0}}},
		{"shorter than stride", "abc", 10, []chunking.Range{{0, 3}}},
		{"exact multiple", strings.Repeat("a", 20), 10, []chunking.Range{{0, 10}, {10, 20}}},
		{"twenty five thousand", strings.Repeat("x", 25000), 10000, []chunking.Range{{0, 10000}, {10000, 20000}, {20000, 25000}}},
		{"multibyte counted as characters", strings.Repeat("é", 15), 10, []chunking.Range{{0, 10}, {10, 15}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := chunking.NewPlan(textMeta(tt.size), tt.text)
			if err != nil {
				t.Fatalf("NewPlan: %v", err)
			}
			if plan.Unit != chunking.Chars {
				t.Errorf("unit = %q, want %q", plan.Unit, chunking.Chars)
			}
			if got := ranges(plan); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ranges = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewPlanTiles(t *testing.T) {
	for pages := 1; pages <= 600; pages += 7 {
		plan, err := chunking.NewPlan(pdfMeta(pages), "")
		if err != nil {
			t.Fatalf("pages=%d: %v", pages, err)
		}

		next := 0
		for i, c := range plan.Chunks {
			if c.Index != i {
				t.Fatalf("pages=%d: chunk %d has index %d", pages, i, c.Index)
			}
			if c.Range.Start != next {
				t.Fatalf("pages=%d: chunk %d starts at %d, want %d", pages, i, c.Range.Start, next)
			}
			if c.Range.Len() <= 0 {
				t.Fatalf("pages=%d: chunk %d is empty", pages, i)
			}
			next = c.Range.End
		}
		if next != pages {
			t.Fatalf("pages=%d: coverage ends at %d", pages, next)
		}
	}
}

func TestNewPlanDeterministic(t *testing.T) {
	text := strings.Repeat("clause ", 5000)
	a, err := chunking.NewPlan(textMeta(1000), text)
	if err != nil {
		t.Fatal(err)
	}
	b, err := chunking.NewPlan(textMeta(1000), text)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("plans differ for identical input")
	}
}

func TestNewPlanInvalid(t *testing.T) {
	if _, err := chunking.NewPlan(pdfMeta(0), ""); err == nil {
		t.Error("expected error for zero pages")
	}
	if _, err := chunking.NewPlan(textMeta(0), "abc"); err == nil {
		t.Error("expected error for zero chunk size")
	}
}

func TestPagesPerChunk(t *testing.T) {
	if got := chunking.PagesPerChunk(pdfMeta(120)); got != 60 {
		t.Errorf("PagesPerChunk(120) = %d, want 60", got)
	}
	if got := chunking.PagesPerChunk(pdfMeta(10)); got != chunking.MinPagesPerChunk {
		t.Errorf("PagesPerChunk(10) = %d, want %d", got, chunking.MinPagesPerChunk)
	}
}
