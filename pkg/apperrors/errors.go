package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrConfigLoad     = errors.New("schema configuration could not be loaded")
	ErrAccessDenied   = errors.New("access denied")
	ErrSchemaNotFound = errors.New("schema not found")
	ErrCacheCapacity  = errors.New("schema cache capacity exceeded")
	ErrLiveTimeout    = errors.New("live introspection timed out")
	ErrNoIntrospector = errors.New("no live database configured")
)

// ConfigLoadError reports a missing, unparsable, or invalid configuration file.
type ConfigLoadError struct {
	Path  string
	Table string // set when the failure is scoped to one table's detail file
	Err   error
}

func (e *ConfigLoadError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("load %s (table %s): %v", e.Path, e.Table, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

// Unwrap exposes both the cause and ErrConfigLoad to errors.Is.
func (e *ConfigLoadError) Unwrap() []error {
	return []error{ErrConfigLoad, e.Err}
}

// AccessDeniedError is returned in strict mode for tables absent from the whitelist.
type AccessDeniedError struct {
	Table string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: table %q is not whitelisted (strict mode)", e.Table)
}

func (e *AccessDeniedError) Unwrap() error {
	return ErrAccessDenied
}

// SchemaNotFoundError is returned when a table is absent from static config and
// the live database, or live introspection failed.
type SchemaNotFoundError struct {
	Table string
	Err   error // underlying introspection failure, nil when the table simply does not exist
}

func (e *SchemaNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema not found for table %q: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("schema not found for table %q", e.Table)
}

func (e *SchemaNotFoundError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSchemaNotFound, e.Err}
	}
	return []error{ErrSchemaNotFound}
}

// IsTimeout returns true if the lookup failed because the live database timed out.
func (e *SchemaNotFoundError) IsTimeout() bool {
	return errors.Is(e.Err, ErrLiveTimeout)
}
