// Package jobs implements the job model, its status state machine, and
// the registry that pipeline stages report status, progress, and partial
// results to.
package jobs

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

// Job statuses in pipeline order.
const (
	StatusQueued      Status = "queued"
	StatusProcessing  Status = "processing"
	StatusChunking    Status = "chunking"
	StatusAnalyzing   Status = "analyzing"
	StatusAggregating Status = "aggregating"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// predecessors lists, for each status, the statuses it may be entered
// from. Failed may be entered from any non-terminal status.
var predecessors = map[Status][]Status{
	StatusProcessing:  {StatusQueued},
	StatusChunking:    {StatusProcessing},
	StatusAnalyzing:   {StatusChunking},
	StatusAggregating: {StatusAnalyzing},
	StatusCompleted:   {StatusAggregating},
	StatusFailed: {
		StatusQueued,
		StatusProcessing,
		StatusChunking,
		StatusAnalyzing,
		StatusAggregating,
	},
}

// progressFloor is the progress a job has at least reached on entering a status.
var progressFloor = map[Status]int{
	StatusQueued:      0,
	StatusProcessing:  5,
	StatusChunking:    10,
	StatusAnalyzing:   10,
	StatusAggregating: 95,
	StatusCompleted:   100,
}

// Terminal reports whether no further writes are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusQueued || len(predecessors[s]) > 0
}

// Predecessors returns the statuses s may be entered from.
func (s Status) Predecessors() []Status {
	return predecessors[s]
}

// ProgressFloor returns the minimum progress of a job in status s.
func (s Status) ProgressFloor() int {
	return progressFloor[s]
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to Status) bool {
	return slices.Contains(predecessors[to], from)
}

// Job is one end-to-end contract analysis run. Error is set iff Status is
// failed; ResultRef is set iff Status is completed.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	ContractID  string     `json:"contract_id"`
	SourceKey   string     `json:"source_key"`
	Filename    string     `json:"filename"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Error       *string    `json:"error,omitempty"`
	ResultRef   *string    `json:"result_ref,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateCommand carries the data needed to register a queued job.
type CreateCommand struct {
	ContractID string
	SourceKey  string
	Filename   string
}

// Filters narrows List results. Nil fields are ignored. Limit of zero
// returns every match.
type Filters struct {
	Status     *Status `json:"status,omitempty"`
	ContractID *string `json:"contract_id,omitempty"`
	Limit      int     `json:"limit,omitempty"`
}

// rejection explains why moving a job from cur to to was not applied.
func rejection(cur, to Status) error {
	if cur.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, cur)
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, cur, to)
}

func terminalTarget(to Status) error {
	return fmt.Errorf("%w: %s is entered through Complete or Fail", ErrInvalidTransition, to)
}

func clampProgress(p int) int {
	return min(max(p, 0), 100)
}
