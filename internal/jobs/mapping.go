package jobs

import (
	"github.com/JaimeStill/docket/pkg/query"
	"github.com/JaimeStill/docket/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "jobs", "j").
	Project("id", "ID").
	Project("contract_id", "ContractID").
	Project("source_key", "SourceKey").
	Project("filename", "Filename").
	Project("status", "Status").
	Project("progress", "Progress").
	Project("error", "Error").
	Project("result_ref", "ResultRef").
	Project("started_at", "StartedAt").
	Project("completed_at", "CompletedAt").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}

	return b.
		WhereEquals("Status", status).
		WhereEquals("ContractID", f.ContractID).
		Limit(f.Limit)
}

func scanJob(s repository.Scanner) (Job, error) {
	var j Job
	err := s.Scan(
		&j.ID,
		&j.ContractID,
		&j.SourceKey,
		&j.Filename,
		&j.Status,
		&j.Progress,
		&j.Error,
		&j.ResultRef,
		&j.StartedAt,
		&j.CompletedAt,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	return j, err
}
