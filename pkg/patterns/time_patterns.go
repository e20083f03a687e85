package patterns

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
)

// Placeholder is substituted with the target column when a time pattern is rendered.
const Placeholder = "{date_column}"

var (
	ErrUnknownTimePattern = errors.New("unknown time pattern")
	ErrDialectNotDefined  = errors.New("time pattern has no template for dialect")
	ErrInvalidColumn      = errors.New("invalid column reference")
)

// Allows bare, schema-qualified, bracketed, and double-quoted identifiers.
var columnRefPattern = regexp.MustCompile(`^(?:[A-Za-z_][A-Za-z0-9_$]*|\[[^\]]+\]|"[^"]+")(?:\.(?:[A-Za-z_][A-Za-z0-9_$]*|\[[^\]]+\]|"[^"]+"))*$`)

// TimePatterns holds dialect templates keyed by semantic name (e.g. "last_30_days").
type TimePatterns struct {
	templates map[string]map[models.Dialect]string
}

// NewTimePatterns validates raw templates. Dialect keys accept the aliases understood
// by models.ParseDialect; every template must contain Placeholder.
func NewTimePatterns(raw map[string]map[string]string) (*TimePatterns, error) {
	tp := &TimePatterns{templates: make(map[string]map[models.Dialect]string, len(raw))}
	for name, byDialect := range raw {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("time pattern with empty name")
		}
		parsed := make(map[models.Dialect]string, len(byDialect))
		for d, tmpl := range byDialect {
			dialect, err := models.ParseDialect(d)
			if err != nil {
				return nil, fmt.Errorf("time pattern %q: %w", name, err)
			}
			if !strings.Contains(tmpl, Placeholder) {
				return nil, fmt.Errorf("time pattern %q (%s): template missing %s", name, dialect, Placeholder)
			}
			parsed[dialect] = tmpl
		}
		tp.templates[name] = parsed
	}
	return tp, nil
}

// Render substitutes column into the named template for dialect.
func (t *TimePatterns) Render(name string, dialect models.Dialect, column string) (string, error) {
	if !columnRefPattern.MatchString(column) {
		return "", fmt.Errorf("%w: %q", ErrInvalidColumn, column)
	}
	tmpl, err := t.Template(name, dialect)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(tmpl, Placeholder, column), nil
}

// Template returns the raw template for name and dialect.
func (t *TimePatterns) Template(name string, dialect models.Dialect) (string, error) {
	if t == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownTimePattern, name)
	}
	byDialect, ok := t.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTimePattern, name)
	}
	tmpl, ok := byDialect[dialect]
	if !ok {
		return "", fmt.Errorf("%w: %q has no %s template", ErrDialectNotDefined, name, dialect)
	}
	return tmpl, nil
}

// Names returns the pattern names, sorted.
func (t *TimePatterns) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.templates))
	for n := range t.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of time patterns.
func (t *TimePatterns) Len() int {
	if t == nil {
		return 0
	}
	return len(t.templates)
}
