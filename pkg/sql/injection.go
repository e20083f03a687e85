package sql

import (
	"errors"

	libinjection "github.com/corazawaf/libinjection-go"
)

// ErrInjectionDetected indicates a string literal in a template looks like an injection payload.
var ErrInjectionDetected = errors.New("SQL injection pattern detected in template literal")

// InjectionCheckResult describes a literal that libinjection flagged.
type InjectionCheckResult struct {
	Literal     string
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckLiterals runs libinjection over each string literal and returns the first hit,
// or nil if all literals are clean.
//
// Whole templates are not checked directly: an expression such as
// "AMOUNT - DISCOUNT" is legitimate SQL and libinjection would fingerprint it.
// Payloads hide in literals, so that is where they are looked for.
func CheckLiterals(literals []string) *InjectionCheckResult {
	for _, lit := range literals {
		if lit == "" {
			continue
		}
		isSQLi, fingerprint := libinjection.IsSQLi(lit)
		if isSQLi {
			return &InjectionCheckResult{Literal: lit, Fingerprint: string(fingerprint)}
		}
	}
	return nil
}
