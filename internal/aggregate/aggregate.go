// Package aggregate buffers chunk results until every index of a plan is
// present, merges them in index order, and validates the merged result
// against a policy.
package aggregate

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/JaimeStill/docket/internal/processor"
)

// AnalysisResult is the merged analysis of a job. Sections maps each
// section identifier to its content lines joined by newlines, in chunk
// order. SectionOrder lists identifiers in order of first appearance.
type AnalysisResult struct {
	Sections     map[string]string  `json:"sections"`
	SectionOrder []string           `json:"section_order"`
	ClausesFound []processor.Clause `json:"clauses_found"`
}

// Collector is the fan-in barrier for one job. It is safe for concurrent use.
type Collector struct {
	total int

	mu      sync.Mutex
	results map[int]*processor.ChunkResult
}

// NewCollector creates a barrier expecting indices 0..total-1.
func NewCollector(total int) *Collector {
	return &Collector{
		total:   total,
		results: make(map[int]*processor.ChunkResult, total),
	}
}

// Add buffers r. It reports false when a result for the same index was
// already buffered; the first result wins.
func (c *Collector) Add(r *processor.ChunkResult) (bool, error) {
	if r == nil {
		return false, fmt.Errorf("nil chunk result")
	}
	if r.Index < 0 || r.Index >= c.total {
		return false, fmt.Errorf("chunk index %d out of range [0,%d)", r.Index, c.total)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.results[r.Index]; ok {
		return false, nil
	}
	c.results[r.Index] = r
	return true, nil
}

// Received returns the number of distinct indices buffered.
func (c *Collector) Received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Ready reports whether every expected index is present.
func (c *Collector) Ready() bool {
	return c.Received() == c.total
}

// Merge returns the merged result, or ErrIncomplete while any index is
// missing. It may be called repeatedly.
func (c *Collector) Merge() (*AnalysisResult, error) {
	c.mu.Lock()
	results := make([]*processor.ChunkResult, 0, len(c.results))
	for _, r := range c.results {
		results = append(results, r)
	}
	c.mu.Unlock()

	return Merge(c.total, results)
}

// Merge combines results for a plan of total chunks, regardless of the
// order they arrived in. Duplicate indices keep the first occurrence.
// It returns ErrIncomplete unless every index 0..total-1 is present.
func Merge(total int, results []*processor.ChunkResult) (*AnalysisResult, error) {
	byIndex := make(map[int]*processor.ChunkResult, total)
	for _, r := range results {
		if r == nil || r.Index < 0 || r.Index >= total {
			continue
		}
		if _, ok := byIndex[r.Index]; !ok {
			byIndex[r.Index] = r
		}
	}

	if total < 1 || len(byIndex) != total {
		return nil, fmt.Errorf("%w: %d of %d chunks", ErrIncomplete, len(byIndex), total)
	}

	ordered := make([]*processor.ChunkResult, 0, total)
	for _, r := range byIndex {
		ordered = append(ordered, r)
	}
	slices.SortFunc(ordered, func(a, b *processor.ChunkResult) int {
		return a.Index - b.Index
	})

	lines := make(map[string][]string)
	merged := &AnalysisResult{
		Sections:     make(map[string]string),
		SectionOrder: []string{},
		ClausesFound: []processor.Clause{},
	}

	for _, r := range ordered {
		for _, id := range sectionOrder(r) {
			if _, ok := r.Sections[id]; !ok {
				continue
			}
			if _, seen := lines[id]; !seen {
				merged.SectionOrder = append(merged.SectionOrder, id)
			}
			lines[id] = append(lines[id], r.Sections[id]...)
		}
		merged.ClausesFound = append(merged.ClausesFound, r.ClausesFound...)
	}

	for id, content := range lines {
		merged.Sections[id] = strings.Join(content, "\n")
	}

	return merged, nil
}

// Content joins all section content in SectionOrder.
func (r *AnalysisResult) Content() string {
	parts := make([]string, 0, len(r.SectionOrder))
	for _, id := range r.SectionOrder {
		parts = append(parts, r.Sections[id])
	}
	return strings.Join(parts, "\n")
}

// sectionOrder returns r.SectionOrder followed by any section keys it
// omits, the latter sorted.
func sectionOrder(r *processor.ChunkResult) []string {
	order := slices.Clone(r.SectionOrder)
	var extra []string
	for id := range r.Sections {
		if !slices.Contains(order, id) {
			extra = append(extra, id)
		}
	}
	slices.Sort(extra)
	return append(order, extra...)
}
