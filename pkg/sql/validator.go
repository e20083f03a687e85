// Package sql validates operator-authored SQL fragments (calculated fields,
// active-record filters) before they are handed to a SQL-generation client.
package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrMultipleStatements indicates the fragment contains a statement separator.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single expressions are permitted")
	// ErrCommentNotAllowed indicates the fragment contains a SQL comment.
	ErrCommentNotAllowed = errors.New("SQL comments are not allowed in templates")
	// ErrUnterminatedLiteral indicates an unclosed quote.
	ErrUnterminatedLiteral = errors.New("unterminated string literal or quoted identifier")
	// ErrForbiddenKeyword indicates a statement keyword inside an expression template.
	ErrForbiddenKeyword = errors.New("forbidden keyword in SQL template")
)

// Matches {date_column}, {table}, {start_date} and similar template placeholders.
var placeholderPattern = regexp.MustCompile(`\{[A-Za-z_][A-Za-z0-9_]*\}`)

var forbiddenKeywords = map[string]struct{}{
	"ALTER": {}, "CREATE": {}, "DELETE": {}, "DROP": {}, "EXEC": {}, "EXECUTE": {},
	"GRANT": {}, "INSERT": {}, "MERGE": {}, "REVOKE": {}, "TRUNCATE": {}, "UPDATE": {},
	"SHUTDOWN": {}, "BACKUP": {}, "RESTORE": {},
}

// FragmentError is returned by ValidateTemplate.
type FragmentError struct {
	Template string
	Err      error
	Detail   string // offending keyword or injection fingerprint
}

func (e *FragmentError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Detail)
	}
	return e.Err.Error()
}

func (e *FragmentError) Unwrap() error {
	return e.Err
}

// ValidateTemplate checks that tmpl is a single SQL expression: no statement
// separators, no comments, no DDL/DML keywords outside literals, and no string
// literal that libinjection flags. Placeholders are stripped before scanning.
// A trailing semicolon is tolerated.
func ValidateTemplate(tmpl string) error {
	stripped := strings.TrimSpace(StripPlaceholders(tmpl))
	if stripped == "" {
		return nil
	}
	stripped = stripTrailingSemicolon(stripped)

	scan, err := scanFragment(stripped)
	if err != nil {
		return &FragmentError{Template: tmpl, Err: err}
	}
	for _, word := range scan.words {
		if _, bad := forbiddenKeywords[strings.ToUpper(word)]; bad {
			return &FragmentError{Template: tmpl, Err: ErrForbiddenKeyword, Detail: word}
		}
		if strings.HasPrefix(strings.ToLower(word), "xp_") {
			return &FragmentError{Template: tmpl, Err: ErrForbiddenKeyword, Detail: word}
		}
	}
	if hit := CheckLiterals(scan.literals); hit != nil {
		return &FragmentError{Template: tmpl, Err: ErrInjectionDetected, Detail: hit.Fingerprint}
	}
	return nil
}

// StripPlaceholders replaces every {name} placeholder with a neutral identifier.
func StripPlaceholders(tmpl string) string {
	return placeholderPattern.ReplaceAllString(tmpl, "x")
}

type fragmentScan struct {
	words    []string // bare words outside quotes
	literals []string // contents of single-quoted literals, '' unescaped
}

// scanFragment walks the fragment once, tracking quote state.
func scanFragment(s string) (fragmentScan, error) {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateBracket
	)

	var (
		out     fragmentScan
		word    strings.Builder
		literal strings.Builder
		state   = stateNormal
	)
	flushWord := func() {
		if word.Len() > 0 {
			out.words = append(out.words, word.String())
			word.Reset()
		}
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}
		switch state {
		case stateNormal:
			switch {
			case c == ';':
				return out, ErrMultipleStatements
			case c == '-' && next == '-', c == '/' && next == '*', c == '#':
				return out, ErrCommentNotAllowed
			case c == '\'':
				flushWord()
				state = stateSingleQuote
			case c == '"':
				flushWord()
				state = stateDoubleQuote
			case c == '[':
				flushWord()
				state = stateBracket
			case c == '_' || c == '$' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9'):
				word.WriteRune(c)
			default:
				flushWord()
			}
		case stateSingleQuote:
			if c == '\'' {
				if next == '\'' {
					literal.WriteRune('\'')
					i++
					continue
				}
				out.literals = append(out.literals, literal.String())
				literal.Reset()
				state = stateNormal
				continue
			}
			literal.WriteRune(c)
		case stateDoubleQuote:
			if c == '"' {
				state = stateNormal
			}
		case stateBracket:
			if c == ']' {
				state = stateNormal
			}
		}
	}
	if state != stateNormal {
		return out, ErrUnterminatedLiteral
	}
	flushWord()
	return out, nil
}

// stripTrailingSemicolon removes a trailing semicolon and any whitespace after it.
func stripTrailingSemicolon(s string) string {
	s = strings.TrimRight(s, " \t\n\r")
	if strings.HasSuffix(s, ";") {
		s = strings.TrimRight(strings.TrimSuffix(s, ";"), " \t\n\r")
	}
	return s
}
