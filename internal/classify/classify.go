// Package classify matches lines of contract text against a policy taxonomy
// and recognizes section headers.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JaimeStill/docket/internal/policy"
)

// headerDelimiters may follow a section identifier at the start of a header line.
const headerDelimiters = ".):"

// Match is one category hit on a line.
type Match struct {
	Category string `json:"category"`
	Keyword  string `json:"keyword"`
}

type keyword struct {
	text    string
	pattern *regexp.Regexp
}

type category struct {
	name     string
	keywords []keyword
}

// Classifier is immutable after New and safe for concurrent use.
type Classifier struct {
	categories []category
	sections   []string
}

// New compiles the taxonomy of p. Category and keyword order are preserved.
func New(p *policy.Policy) (*Classifier, error) {
	c := &Classifier{
		categories: make([]category, 0, len(p.Taxonomy)),
		sections:   p.RequiredSections,
	}

	for _, cat := range p.Taxonomy {
		compiled := category{name: cat.Name}
		for _, kw := range cat.Keywords {
			re, err := keywordPattern(kw)
			if err != nil {
				return nil, fmt.Errorf("%w: category %q keyword %q: %w", policy.ErrInvalidPolicy, cat.Name, kw, err)
			}
			compiled.keywords = append(compiled.keywords, keyword{text: kw, pattern: re})
		}
		c.categories = append(c.categories, compiled)
	}

	return c, nil
}

// keywordPattern matches kw case-insensitively where it is not adjoined by a
// letter, digit, or underscore.
func keywordPattern(kw string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(strings.TrimSpace(kw)) + `(?:[^\p{L}\p{N}_]|$)`)
}

// Classify returns at most one Match per category, in taxonomy order.
// Within a category the first keyword that matches ends the search.
func (c *Classifier) Classify(line string) []Match {
	var matches []Match
	for _, cat := range c.categories {
		for _, kw := range cat.keywords {
			if kw.pattern.MatchString(line) {
				matches = append(matches, Match{Category: cat.name, Keyword: kw.text})
				break
			}
		}
	}
	return matches
}

// SectionHeader reports whether line opens a section. A header is a line
// whose trimmed text begins with a section identifier immediately followed
// by one of ". ) :". Identifiers are tried in policy order.
func (c *Classifier) SectionHeader(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	for _, id := range c.sections {
		rest, ok := strings.CutPrefix(trimmed, id)
		if ok && rest != "" && strings.IndexByte(headerDelimiters, rest[0]) >= 0 {
			return id, true
		}
	}
	return "", false
}
