package tools

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-datadict/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datadict/pkg/logging"
)

// ErrorResponse represents a structured error in tool results.
// Errors the caller can act on are returned as a successful tool result
// so the details reach the model instead of being swallowed by the client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
//
// Example:
//
//	if table == "" {
//	    return NewErrorResult("invalid_parameters", "parameter 'table' cannot be empty"), nil
//	}
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

// ErrorResultFor converts a pipeline error into a tool result tagged with
// its apperrors kind. It returns nil for internal errors, which the caller
// should return as a Go error instead.
func ErrorResultFor(err error) *mcp.CallToolResult {
	kind := apperrors.Kind(err)
	if kind == apperrors.KindInternal || kind == "" {
		return nil
	}

	if code := SQLUserErrorCode(err); code != "" {
		return NewErrorResultWithDetails(kind, ExtractSQLErrorMessage(err), map[string]any{
			"sql_error": code,
		})
	}
	return NewErrorResult(kind, logging.SanitizeError(err))
}

// sqlStateRegex matches PostgreSQL SQLSTATE codes in error messages like "(SQLSTATE 42601)"
var sqlStateRegex = regexp.MustCompile(`\(SQLSTATE ([0-9A-Z]{5})\)`)

// SQLUserErrorCode returns a readable code for a PostgreSQL user error
// (missing table, permission denied, bad input), or "" for anything else.
func SQLUserErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var state string
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		state = pgErr.Code
	} else if matches := sqlStateRegex.FindStringSubmatch(err.Error()); len(matches) >= 2 {
		state = matches[1]
	}
	if len(state) < 2 {
		return ""
	}

	switch state {
	case "42P01":
		return "undefined_table"
	case "42703":
		return "undefined_column"
	case "42501":
		return "insufficient_privilege"
	case "22P02":
		return "invalid_input"
	}

	switch state[:2] {
	case "22":
		return "data_exception"
	case "42":
		return "sql_error"
	}
	return ""
}

// ExtractSQLErrorMessage extracts a clean error message from a SQL error.
// Removes the "SQLSTATE XXXXX" suffix and any "ERROR: " prefix for cleaner display.
func ExtractSQLErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message
	}

	msg := err.Error()
	if idx := strings.Index(msg, " (SQLSTATE"); idx != -1 {
		msg = msg[:idx]
	}
	if idx := strings.LastIndex(msg, "ERROR: "); idx != -1 {
		msg = msg[idx+len("ERROR: "):]
	}
	return msg
}
