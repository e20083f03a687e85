package tools

import (
	"encoding/json"
	"errors"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/logging"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/patterns"
)

// ErrorResponse represents a structured error in tool results.
// Returned as a successful tool result so the error details reach the
// caller instead of being swallowed by the MCP client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use it for errors the caller can act on (unknown table, bad parameter).
// System failures should still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// sqlStateRegex matches PostgreSQL SQLSTATE codes in error messages like "(SQLSTATE 42501)".
var sqlStateRegex = regexp.MustCompile(`\(SQLSTATE ([0-9A-Z]{5})\)`)

// sqlState extracts the SQLSTATE of a PostgreSQL error, or "".
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	if matches := sqlStateRegex.FindStringSubmatch(err.Error()); len(matches) >= 2 {
		return matches[1]
	}
	return ""
}

// ResolveErrorResult maps a resolver failure to a structured tool error.
// Returns nil for failures the caller cannot act on.
func ResolveErrorResult(err error) *mcp.CallToolResult {
	if err == nil {
		return nil
	}

	var denied *apperrors.AccessDeniedError
	if errors.As(err, &denied) {
		return NewErrorResultWithDetails("access_denied", err.Error(),
			map[string]any{"table_name": denied.Table, "strict_mode": true})
	}

	var notFound *apperrors.SchemaNotFoundError
	if errors.As(err, &notFound) {
		switch {
		case notFound.IsTimeout():
			return NewErrorResultWithDetails("live_timeout", logging.SanitizeError(err),
				map[string]any{"table_name": notFound.Table})
		case errors.Is(err, apperrors.ErrNoIntrospector):
			return NewErrorResultWithDetails("schema_not_found",
				"table is not configured and no live database is available",
				map[string]any{"table_name": notFound.Table})
		}
		details := map[string]any{"table_name": notFound.Table}
		if notFound.Err != nil {
			if state := sqlState(notFound.Err); state != "" {
				details["sqlstate"] = state
			}
		}
		return NewErrorResultWithDetails("schema_not_found", logging.SanitizeError(err), details)
	}

	switch {
	case errors.Is(err, patterns.ErrUnknownTimePattern):
		return NewErrorResult("unknown_time_pattern", err.Error())
	case errors.Is(err, patterns.ErrDialectNotDefined):
		return NewErrorResult("dialect_not_defined", err.Error())
	case errors.Is(err, patterns.ErrInvalidColumn):
		return NewErrorResult("invalid_column", err.Error())
	case errors.Is(err, apperrors.ErrConfigLoad):
		return NewErrorResult("config_load_failed", logging.SanitizeError(err))
	}
	return nil
}

// IsInputError returns true if the error was caused by the caller's input
// rather than a server failure. Input errors are logged at DEBUG.
func IsInputError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, apperrors.ErrAccessDenied) ||
		errors.Is(err, apperrors.ErrSchemaNotFound) ||
		errors.Is(err, patterns.ErrUnknownTimePattern) ||
		errors.Is(err, patterns.ErrDialectNotDefined) ||
		errors.Is(err, patterns.ErrInvalidColumn)
}
