// Package processor runs the classifier over the text of exactly one chunk
// and produces that chunk's partial result.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/JaimeStill/docket/internal/chunking"
	"github.com/JaimeStill/docket/internal/classify"
)

// Progress bounds shared by the pipeline stages.
const (
	ProgressChunking  = 10
	ProgressAnalyzing = 95
	ProgressComplete  = 100
)

// DefaultBatchSize is the number of lines processed between progress reports.
const DefaultBatchSize = 200

// Clause is one category match on one line of a chunk.
type Clause struct {
	Category   string `json:"category"`
	Keyword    string `json:"keyword"`
	Line       string `json:"line"`
	LineNumber int    `json:"line_number"`
	Section    string `json:"section,omitempty"`
}

// ChunkResult is the partial analysis of a single chunk. Sections holds
// the lines attributed to each section within this chunk only, and
// SectionOrder lists those sections in order of first appearance.
type ChunkResult struct {
	Index        int                 `json:"chunk_index"`
	Sections     map[string][]string `json:"sections"`
	SectionOrder []string            `json:"section_order"`
	ClausesFound []Clause            `json:"clauses_found"`
}

// Task is the complete input of one chunk: its spec, the plan size, and
// the text of its range.
type Task struct {
	Spec        chunking.ChunkSpec `json:"spec"`
	TotalChunks int                `json:"total_chunks"`
	Text        string             `json:"text"`
}

// ProgressFunc receives job progress values in (ProgressChunking, ProgressAnalyzing].
type ProgressFunc func(ctx context.Context, progress int)

// Processor is safe for concurrent use; it holds no per-chunk state.
type Processor struct {
	classifier *classify.Classifier
	batchSize  int
	logger     *slog.Logger
}

// New creates a Processor. A batchSize below one uses DefaultBatchSize.
func New(classifier *classify.Classifier, batchSize int, logger *slog.Logger) *Processor {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Processor{
		classifier: classifier,
		batchSize:  batchSize,
		logger:     logger.With("system", "processor"),
	}
}

// Process classifies every non-blank line of task.Text. Lines are numbered
// from 1 within the chunk. Lines preceding the first section header are
// classified but attributed to no section. Any failure is returned as a
// *ChunkError.
func (p *Processor) Process(ctx context.Context, task Task, report ProgressFunc) (*ChunkResult, error) {
	index := task.Spec.Index
	if !utf8.ValidString(task.Text) {
		return nil, &ChunkError{Index: index, Err: errors.New("text is not valid UTF-8")}
	}

	result := &ChunkResult{
		Index:        index,
		Sections:     make(map[string][]string),
		SectionOrder: []string{},
		ClausesFound: []Clause{},
	}

	lines := strings.Split(task.Text, "\n")
	current := ""

	for i, raw := range lines {
		if i%p.batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, &ChunkError{Index: index, Err: err}
			}
			if i > 0 && report != nil {
				report(ctx, Progress(index, task.TotalChunks, i, len(lines)))
			}
		}

		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if id, ok := p.classifier.SectionHeader(line); ok {
			current = id
			if _, seen := result.Sections[id]; !seen {
				result.SectionOrder = append(result.SectionOrder, id)
			}
		}
		if current != "" {
			result.Sections[current] = append(result.Sections[current], line)
		}

		for _, m := range p.classifier.Classify(line) {
			result.ClausesFound = append(result.ClausesFound, Clause{
				Category:   m.Category,
				Keyword:    m.Keyword,
				Line:       line,
				LineNumber: i + 1,
				Section:    current,
			})
		}
	}

	if report != nil {
		report(ctx, Progress(index, task.TotalChunks, len(lines), len(lines)))
	}

	p.logger.Debug(
		"chunk processed",
		"chunk_index", index,
		"lines", len(lines),
		"sections", len(result.Sections),
		"clauses", len(result.ClausesFound),
	)

	return result, nil
}

// Progress maps a position within one chunk onto the analyzing band of job
// progress, treating chunks as equally weighted and processed in index
// order. The result never exceeds ProgressAnalyzing.
func Progress(index, total, done, lines int) int {
	total = max(1, total)
	lines = max(1, lines)

	span := ProgressAnalyzing - ProgressChunking
	pos := index*lines + min(done, lines)
	p := ProgressChunking + span*pos/(total*lines)

	return min(max(p, ProgressChunking), ProgressAnalyzing)
}
