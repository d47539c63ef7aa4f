package classify_test

import (
	"reflect"
	"testing"

	"github.com/JaimeStill/docket/internal/classify"
	"github.com/JaimeStill/docket/internal/policy"
)

func newClassifier(t *testing.T) *classify.Classifier {
	t.Helper()

	p := &policy.Policy{
		RequiredSections: []string{"I", "II", "III", "IV"},
		Taxonomy: []policy.Category{
			{Name: "indemnification", Keywords: []string{"indemnify", "hold harmless"}},
			{Name: "termination", Keywords: []string{"terminate", "termination"}},
			{Name: "payment", Keywords: []string{"fees", "invoice"}},
		},
	}

	c, err := classify.New(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClassify(t *testing.T) {
	c := newClassifier(t)

	tests := []struct {
		name     string
		line     string
		expected []classify.Match
	}{
		{"no match", "The parties agree as follows.", nil},
		{
			"single category",
			"Supplier shall INDEMNIFY the Buyer.",
			[]classify.Match{{Category: "indemnification", Keyword: "indemnify"}},
		},
		{
			"first keyword in category wins",
			"Buyer may terminate; termination is effective immediately.",
			[]classify.Match{{Category: "termination", Keyword: "terminate"}},
		},
		{
			"keyword order beats line order",
			"Termination notice: either party may terminate.",
			[]classify.Match{{Category: "termination", Keyword: "terminate"}},
		},
		{
			"multiple categories in taxonomy order",
			"Upon termination all fees are due and Supplier shall hold harmless the Buyer.",
			[]classify.Match{
				{Category: "indemnification", Keyword: "hold harmless"},
				{Category: "termination", Keyword: "termination"},
				{Category: "payment", Keyword: "fees"},
			},
		},
		{"word boundary", "The indemnifying party and predetermined terms.", nil},
		{
			"punctuation boundary",
			"(invoice)",
			[]classify.Match{{Category: "payment", Keyword: "invoice"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.line)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSectionHeader(t *testing.T) {
	c := newClassifier(t)

	tests := []struct {
		name     string
		line     string
		expected string
		ok       bool
	}{
		{"dot delimiter", "I. DEFINITIONS", "I", true},
		{"longer identifier", "II. SCOPE OF WORK", "II", true},
		{"paren delimiter", "IV) TERM", "IV", true},
		{"colon delimiter", "III: PAYMENT", "III", true},
		{"leading whitespace", "   II. SCOPE", "II", true},
		{"no delimiter", "II SCOPE", "", false},
		{"identifier only", "I", "", false},
		{"prose", "In witness whereof", "", false},
		{"lowercase", "ii. scope", "", false},
		{"unknown identifier", "VII. MISC", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.SectionHeader(tt.line)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("got (%q, %v), want (%q, %v)", got, ok, tt.expected, tt.ok)
			}
		})
	}
}
