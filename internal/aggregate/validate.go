package aggregate

import (
	"fmt"
	"strings"

	"github.com/JaimeStill/docket/internal/policy"
)

// Finding codes.
const (
	CodeMissingSection     = "missing_section"
	CodeNoClausesFound     = "no_clauses_found"
	CodeClosingLineMissing = "closing_line_missing"
)

// Finding is one validation issue or warning.
type Finding struct {
	Code    string `json:"code"`
	Section string `json:"section,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds blocking issues and non-blocking warnings.
// Passed is true exactly when Issues is empty.
type ValidationResult struct {
	Passed   bool      `json:"passed"`
	Issues   []Finding `json:"issues"`
	Warnings []Finding `json:"warnings"`
}

// Validate checks a merged result against p. Each required section absent
// from the result is an issue. An empty clause list and a missing closing
// line are warnings.
func Validate(result *AnalysisResult, p *policy.Policy) ValidationResult {
	v := ValidationResult{
		Issues:   []Finding{},
		Warnings: []Finding{},
	}

	for _, id := range p.RequiredSections {
		if _, ok := result.Sections[id]; !ok {
			v.Issues = append(v.Issues, Finding{
				Code:    CodeMissingSection,
				Section: id,
				Message: fmt.Sprintf("required section %s not found", id),
			})
		}
	}

	if len(result.ClausesFound) == 0 {
		v.Warnings = append(v.Warnings, Finding{
			Code:    CodeNoClausesFound,
			Message: "no clauses matched the policy taxonomy",
		})
	}

	if p.ClosingLine != "" && !strings.Contains(result.Content(), p.ClosingLine) {
		v.Warnings = append(v.Warnings, Finding{
			Code:    CodeClosingLineMissing,
			Message: fmt.Sprintf("closing line not found: %q", p.ClosingLine),
		})
	}

	v.Passed = len(v.Issues) == 0
	return v
}
