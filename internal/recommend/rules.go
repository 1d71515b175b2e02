// Package recommend turns a demand score and request context into advice text.
package recommend

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRules []byte

type Band struct {
	Name     string   `yaml:"name"`
	Min      *float64 `yaml:"min,omitempty"`
	Max      *float64 `yaml:"max,omitempty"`
	Messages []string `yaml:"messages"`
}

// Contains reports min <= score < max, treating a missing bound as unbounded.
func (b Band) Contains(score float64) bool {
	if b.Min != nil && score < *b.Min {
		return false
	}
	if b.Max != nil && score >= *b.Max {
		return false
	}
	return true
}

// Rule adds Message when the context field satisfies Op.
type Rule struct {
	Field   string   `yaml:"field"`
	Op      string   `yaml:"op"`
	Value   string   `yaml:"value,omitempty"`
	Values  []string `yaml:"values,omitempty"`
	Message string   `yaml:"message"`
}

type Rules struct {
	Bands   []Band `yaml:"bands"`
	Context []Rule `yaml:"context"`
}

var knownFields = map[string]bool{
	"service":            true,
	"facility_type":      true,
	"facility_owner":     true,
	"country":            true,
	"country_code":       true,
	"missing_indicators": true,
}

var knownOps = map[string]bool{
	"eq":       true,
	"ne":       true,
	"in":       true,
	"contains": true,
	"present":  true,
	"absent":   true,
}

func (r *Rules) Validate() error {
	if len(r.Bands) == 0 {
		return errors.New("rules: at least one band is required")
	}
	for i, b := range r.Bands {
		if b.Name == "" {
			return fmt.Errorf("rules: band %d has no name", i)
		}
		if b.Min != nil && b.Max != nil && *b.Min >= *b.Max {
			return fmt.Errorf("rules: band %q has min >= max", b.Name)
		}
		if len(b.Messages) == 0 {
			return fmt.Errorf("rules: band %q has no messages", b.Name)
		}
	}
	for i, c := range r.Context {
		if !knownFields[c.Field] {
			return fmt.Errorf("rules: context rule %d uses unknown field %q", i, c.Field)
		}
		if !knownOps[c.Op] {
			return fmt.Errorf("rules: context rule %d uses unknown op %q", i, c.Op)
		}
		if strings.TrimSpace(c.Message) == "" {
			return fmt.Errorf("rules: context rule %d has no message", i)
		}
	}
	return nil
}

func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// DefaultRules returns the built-in rules table.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRules)
	if err != nil {
		panic(err)
	}
	return r
}
