package datasource

import (
	"errors"
	"fmt"

	"github.com/ekaya-inc/ekaya-datadict/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datadict/pkg/sql"
)

// ConnectError wraps a failed connection attempt in apperrors.ErrConnectionFailure.
func ConnectError(dbType string, err error) error {
	if errors.Is(err, apperrors.ErrConnectionFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", apperrors.ErrConnectionFailure, dbType, err)
}

// QueryError wraps a failed data operation in apperrors.ErrQueryFailure.
// Not-connected errors and already-wrapped query failures pass through unchanged.
func QueryError(op string, err error) error {
	if errors.Is(err, apperrors.ErrNotConnected) || errors.Is(err, apperrors.ErrQueryFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", apperrors.ErrQueryFailure, op, err)
}

// CheckFetch validates the arguments of FetchRows. It returns skip=true
// when limit asks for no rows, in which case the caller returns an empty
// sample without touching the backend.
func CheckFetch(table string, limit int) (skip bool, err error) {
	if err := sql.ValidateTableName(table); err != nil {
		return false, fmt.Errorf("%w: %w", apperrors.ErrQueryFailure, err)
	}
	return limit <= 0, nil
}
