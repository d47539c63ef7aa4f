// Package chunking partitions a document into contiguous, non-overlapping
// chunks addressed by page range or character range.
package chunking

import (
	"fmt"
	"unicode/utf8"

	"github.com/JaimeStill/docket/internal/document"
)

// Unit is the addressing unit of a chunk range.
type Unit string

// Range units.
const (
	Pages Unit = "page"
	Chars Unit = "char"
)

// MinPagesPerChunk is the smallest page stride the planner uses.
const MinPagesPerChunk = 50

// Range is the half-open interval [Start, End).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of units covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// ChunkSpec assigns one range of a document to one independent processing unit.
type ChunkSpec struct {
	Index    int               `json:"chunk_index"`
	Unit     Unit              `json:"unit"`
	Range    Range             `json:"range"`
	FileType document.FileType `json:"file_type"`
}

// Plan is the ordered partition of a document.
type Plan struct {
	Unit        Unit        `json:"unit"`
	TotalLength int         `json:"total_length"`
	TotalChunks int         `json:"total_chunks"`
	Chunks      []ChunkSpec `json:"chunks"`
}

// PagesPerChunk returns the page stride for a paginated document.
func PagesPerChunk(meta document.Metadata) int {
	return max(MinPagesPerChunk, meta.PageCount/max(1, meta.EstimatedChunkCount))
}

// NewPlan partitions a document. Paginated types are split by page using
// PagesPerChunk and ignore text; all other types are split every
// meta.ChunkCharSize characters of text. The result depends only on its
// inputs.
func NewPlan(meta document.Metadata, text string) (*Plan, error) {
	if meta.FileType.Paginated() {
		if meta.PageCount < 1 {
			return nil, fmt.Errorf("invalid page count: %d", meta.PageCount)
		}
		return partition(meta.FileType, Pages, meta.PageCount, PagesPerChunk(meta)), nil
	}

	if meta.ChunkCharSize < 1 {
		return nil, fmt.Errorf("invalid chunk char size: %d", meta.ChunkCharSize)
	}
	return partition(meta.FileType, Chars, utf8.RuneCountInString(text), meta.ChunkCharSize), nil
}

// partition tiles [0, total) with strides of size stride. The final chunk
// holds whatever remains. An empty document yields a single empty chunk.
func partition(fileType document.FileType, unit Unit, total, stride int) *Plan {
	plan := &Plan{
		Unit:        unit,
		TotalLength: total,
	}

	if total == 0 {
		plan.Chunks = []ChunkSpec{{Unit: unit, FileType: fileType}}
	}

	for start := 0; start < total; start += stride {
		plan.Chunks = append(plan.Chunks, ChunkSpec{
			Index:    len(plan.Chunks),
			Unit:     unit,
			Range:    Range{Start: start, End: min(start+stride, total)},
			FileType: fileType,
		})
	}

	plan.TotalChunks = len(plan.Chunks)
	return plan
}
