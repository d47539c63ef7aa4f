// Package policy defines the read-only analysis policy: the clause taxonomy,
// the required section identifiers, the expected closing line, and the
// character chunk size.
package policy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/docket/internal/document"
)

//go:embed default_policy.yaml
var defaultPolicy []byte

// Category is one taxonomy entry. Keywords are matched in the listed order.
type Category struct {
	Name     string   `yaml:"category" json:"category"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Policy is loaded once per job and passed by pointer to every stage.
// It must not be mutated after Parse returns.
type Policy struct {
	Name             string     `yaml:"name" json:"name"`
	Taxonomy         []Category `yaml:"taxonomy" json:"taxonomy"`
	RequiredSections []string   `yaml:"required_sections" json:"required_sections"`
	ClosingLine      string     `yaml:"closing_line" json:"closing_line"`
	ChunkCharSize    int        `yaml:"chunk_char_size" json:"chunk_char_size"`
}

// Default returns the embedded policy.
func Default() (*Policy, error) {
	return Parse(defaultPolicy)
}

// Load reads a policy from path, or the embedded policy when path is empty.
func Load(path string) (*Policy, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidPolicy, path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML policy document.
func Parse(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}

	if p.ChunkCharSize == 0 {
		p.ChunkCharSize = document.DefaultChunkCharSize
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Policy) validate() error {
	if p.ChunkCharSize < 0 {
		return fmt.Errorf("%w: chunk_char_size must be positive", ErrInvalidPolicy)
	}
	if len(p.RequiredSections) == 0 {
		return fmt.Errorf("%w: required_sections is empty", ErrInvalidPolicy)
	}

	seen := make(map[string]bool, len(p.RequiredSections))
	for _, id := range p.RequiredSections {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: blank section identifier", ErrInvalidPolicy)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate section %q", ErrInvalidPolicy, id)
		}
		seen[id] = true
	}

	names := make(map[string]bool, len(p.Taxonomy))
	for _, c := range p.Taxonomy {
		if c.Name == "" {
			return fmt.Errorf("%w: taxonomy entry without category", ErrInvalidPolicy)
		}
		if names[c.Name] {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidPolicy, c.Name)
		}
		names[c.Name] = true

		if len(c.Keywords) == 0 {
			return fmt.Errorf("%w: category %q has no keywords", ErrInvalidPolicy, c.Name)
		}
		for _, kw := range c.Keywords {
			if strings.TrimSpace(kw) == "" {
				return fmt.Errorf("%w: category %q has a blank keyword", ErrInvalidPolicy, c.Name)
			}
		}
	}

	return nil
}
