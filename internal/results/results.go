// Package results persists the final report of a job as a write-once JSON
// blob and returns the reference stored on the job.
package results

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/internal/aggregate"
	"github.com/JaimeStill/docket/internal/document"
	"github.com/JaimeStill/docket/pkg/storage"
)

const contentType = "application/json"

// Report is the persisted outcome of a completed job.
type Report struct {
	JobID       uuid.UUID                  `json:"job_id"`
	ContractID  string                     `json:"contract_id"`
	Metadata    document.Metadata          `json:"metadata"`
	TotalChunks int                        `json:"total_chunks"`
	Analysis    *aggregate.AnalysisResult  `json:"analysis"`
	Validation  aggregate.ValidationResult `json:"validation"`
	CompletedAt time.Time                  `json:"completed_at"`
}

// Key returns the blob key of a job's report.
func Key(jobID uuid.UUID) string {
	return fmt.Sprintf("results/%s/analysis.json", jobID)
}

// Sink writes reports to blob storage.
type Sink struct {
	store  storage.System
	logger *slog.Logger
}

// NewSink creates a Sink writing to store.
func NewSink(store storage.System, logger *slog.Logger) *Sink {
	return &Sink{
		store:  store,
		logger: logger.With("system", "results"),
	}
}

// Write stores r and returns its key. A report already stored for the
// same job is left unchanged and its key is returned.
func (s *Sink) Write(ctx context.Context, r *Report) (string, error) {
	key := Key(r.JobID)

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check result %s: %w", key, err)
	}
	if exists {
		s.logger.Warn("result already written", "job_id", r.JobID, "key", key)
		return key, nil
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	if err := s.store.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("upload result %s: %w", key, err)
	}

	s.logger.Info(
		"result written",
		"job_id", r.JobID,
		"key", key,
		"passed", r.Validation.Passed,
		"clauses", len(r.Analysis.ClausesFound),
	)
	return key, nil
}

// Read loads the report stored at key.
func (s *Sink) Read(ctx context.Context, key string) (*Report, error) {
	data, err := storage.ReadAll(ctx, s.store, key)
	if err != nil {
		return nil, err
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", key, err)
	}
	return &r, nil
}
