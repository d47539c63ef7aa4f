package jobs

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/internal/processor"
)

type memoryRegistry struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*Job
	chunks map[uuid.UUID]map[int]*processor.ChunkResult
	now    func() time.Time
}

// NewMemory creates a process-local Registry. State does not survive the process.
func NewMemory() Registry {
	return &memoryRegistry{
		jobs:   make(map[uuid.UUID]*Job),
		chunks: make(map[uuid.UUID]map[int]*processor.ChunkResult),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *memoryRegistry) Create(_ context.Context, cmd CreateCommand) (*Job, error) {
	now := m.now()
	j := &Job{
		ID:         uuid.New(),
		ContractID: cmd.ContractID,
		SourceKey:  cmd.SourceKey,
		Filename:   cmd.Filename,
		Status:     StatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobs[j.ID] = j
	m.chunks[j.ID] = make(map[int]*processor.ChunkResult)
	return j.clone(), nil
}

func (m *memoryRegistry) Find(_ context.Context, id uuid.UUID) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j.clone(), nil
}

func (m *memoryRegistry) List(_ context.Context, f Filters) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if f.Status != nil && j.Status != *f.Status {
			continue
		}
		if f.ContractID != nil && j.ContractID != *f.ContractID {
			continue
		}
		out = append(out, *j.clone())
	}

	slices.SortFunc(out, func(a, b Job) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memoryRegistry) Transition(_ context.Context, id uuid.UUID, to Status) error {
	if to.Terminal() {
		return terminalTarget(to)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if !CanTransition(j.Status, to) {
		return rejection(j.Status, to)
	}

	now := m.now()
	j.Status = to
	j.Progress = max(j.Progress, to.ProgressFloor())
	j.UpdatedAt = now
	if to == StatusProcessing {
		j.StartedAt = &now
	}
	return nil
}

func (m *memoryRegistry) SetProgress(_ context.Context, id uuid.UUID, p int) (bool, error) {
	p = clampProgress(p)

	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return false, ErrNotFound
	}
	if j.Status.Terminal() || p <= j.Progress {
		return false, nil
	}

	j.Progress = p
	j.UpdatedAt = m.now()
	return true, nil
}

func (m *memoryRegistry) Complete(_ context.Context, id uuid.UUID, resultRef string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return false, ErrNotFound
	}
	if j.Status.Terminal() {
		return false, nil
	}
	if !CanTransition(j.Status, StatusCompleted) {
		return false, rejection(j.Status, StatusCompleted)
	}

	now := m.now()
	j.Status = StatusCompleted
	j.Progress = 100
	j.ResultRef = &resultRef
	j.CompletedAt = &now
	j.UpdatedAt = now
	return true, nil
}

func (m *memoryRegistry) Fail(_ context.Context, id uuid.UUID, message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return false, ErrNotFound
	}
	if j.Status.Terminal() {
		return false, nil
	}

	now := m.now()
	j.Status = StatusFailed
	j.Error = &message
	j.CompletedAt = &now
	j.UpdatedAt = now
	return true, nil
}

func (m *memoryRegistry) SaveChunkResult(_ context.Context, id uuid.UUID, r *processor.ChunkResult) (bool, error) {
	if r == nil {
		return false, ErrNilChunkResult
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	chunks, ok := m.chunks[id]
	if !ok {
		return false, ErrNotFound
	}
	if _, exists := chunks[r.Index]; exists {
		return false, nil
	}
	chunks[r.Index] = r
	return true, nil
}

func (m *memoryRegistry) ChunkResults(_ context.Context, id uuid.UUID) ([]*processor.ChunkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chunks, ok := m.chunks[id]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]*processor.ChunkResult, 0, len(chunks))
	for _, r := range chunks {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *processor.ChunkResult) int {
		return a.Index - b.Index
	})
	return out, nil
}

func (j *Job) clone() *Job {
	c := *j
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.ResultRef != nil {
		r := *j.ResultRef
		c.ResultRef = &r
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
