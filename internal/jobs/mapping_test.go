package jobs

import (
	"strings"
	"testing"

	"github.com/JaimeStill/docket/pkg/query"
)

func TestFiltersApply(t *testing.T) {
	status := StatusAnalyzing
	contract := "c-9"

	q, args := Filters{Status: &status, ContractID: &contract, Limit: 5}.
		Apply(query.NewBuilder(projection, defaultSort)).
		Build()

	for _, want := range []string{
		"FROM public.jobs j",
		"WHERE j.status = $1 AND j.contract_id = $2",
		"ORDER BY j.created_at DESC",
		"LIMIT 5",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query %q missing %q", q, want)
		}
	}

	if len(args) != 2 {
		t.Fatalf("args = %v, want 2", args)
	}
	if s, ok := args[0].(*string); !ok || *s != "analyzing" {
		t.Errorf("status arg = %v", args[0])
	}
	if s, ok := args[1].(*string); !ok || *s != "c-9" {
		t.Errorf("contract arg = %v", args[1])
	}
}

func TestFiltersApplyEmpty(t *testing.T) {
	q, args := Filters{}.Apply(query.NewBuilder(projection)).Build()
	if strings.Contains(q, "WHERE") || len(args) != 0 {
		t.Errorf("empty filters produced %q %v", q, args)
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(4, 3); got != "$4, $5, $6" {
		t.Errorf("got %q", got)
	}
}
