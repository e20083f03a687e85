// Package patterns evaluates global column naming rules and renders dialect
// time templates. Rules are compiled once and evaluated in file order.
package patterns

import (
	"fmt"
	"regexp"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
)

// RuleSpec is an uncompiled column pattern as read from configuration.
type RuleSpec struct {
	Pattern      string
	SemanticType string
	Description  string
	Hints        string
}

// Rule is a compiled column pattern.
type Rule struct {
	Pattern      string
	SemanticType models.SemanticType
	Description  string
	Hints        string

	re *regexp.Regexp
}

// Matches reports whether the column name matches the rule.
func (r Rule) Matches(column string) bool {
	return r.re.MatchString(column)
}

// Matcher holds an ordered list of compiled rules. It is immutable after construction
// and safe for concurrent use.
type Matcher struct {
	rules []Rule
}

// NewMatcher compiles specs in order. Patterns match case-insensitively.
// The first invalid regex or semantic type fails the whole set.
func NewMatcher(specs []RuleSpec) (*Matcher, error) {
	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		if spec.Pattern == "" {
			return nil, fmt.Errorf("column pattern %d: empty regex", i)
		}
		re, err := regexp.Compile("(?i)" + spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("column pattern %q: %w", spec.Pattern, err)
		}
		st, err := models.ParseSemanticType(spec.SemanticType)
		if err != nil {
			return nil, fmt.Errorf("column pattern %q: %w", spec.Pattern, err)
		}
		rules = append(rules, Rule{
			Pattern:      spec.Pattern,
			SemanticType: st,
			Description:  spec.Description,
			Hints:        spec.Hints,
			re:           re,
		})
	}
	return &Matcher{rules: rules}, nil
}

// Match returns the first rule matching column.
func (m *Matcher) Match(column string) (Rule, bool) {
	if m == nil {
		return Rule{}, false
	}
	for _, r := range m.rules {
		if r.Matches(column) {
			return r, true
		}
	}
	return Rule{}, false
}

// Describe returns the pattern-derived descriptor for column, or nil if no rule matches.
func (m *Matcher) Describe(column string) *models.ColumnDescriptor {
	r, ok := m.Match(column)
	if !ok {
		return nil
	}
	return &models.ColumnDescriptor{
		Name:         column,
		SemanticType: r.SemanticType,
		Description:  r.Description,
		AIHints:      r.Hints,
		Source:       models.ColumnSourcePattern,
	}
}

// Rules returns a copy of the compiled rules in evaluation order.
func (m *Matcher) Rules() []Rule {
	if m == nil {
		return nil
	}
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// Len returns the number of rules.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}
