// Package sql provides identifier validation and injection screening for
// names that end up interpolated into query text.
package sql

import (
	"fmt"
	"regexp"

	"github.com/ekaya-inc/ekaya-datadict/pkg/apperrors"
)

// MaxIdentifierLength bounds table names accepted from callers.
const MaxIdentifierLength = 255

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateTableName reports whether name may be quoted into a row-fetch
// query. Only ASCII letters, digits, underscore and hyphen are allowed, so a
// validated name can never close or escape any engine's identifier quoting.
// The returned error wraps apperrors.ErrInvalidTableName.
func ValidateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", apperrors.ErrInvalidTableName)
	}
	if len(name) > MaxIdentifierLength {
		return fmt.Errorf("%w: name exceeds %d characters", apperrors.ErrInvalidTableName, MaxIdentifierLength)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q may only contain letters, digits, '_' and '-'", apperrors.ErrInvalidTableName, name)
	}
	return nil
}

// IsValidTableName is ValidateTableName as a predicate.
func IsValidTableName(name string) bool {
	return ValidateTableName(name) == nil
}
