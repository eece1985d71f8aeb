package datasource

import (
	"database/sql"
	"fmt"
	"slices"
	"sync"

	"github.com/ekaya-inc/ekaya-datadict/pkg/apperrors"
)

var driverChecks sync.Map // driver name -> bool

// DriverAvailable reports whether a database/sql driver is registered.
// The answer is computed on first use and memoized; drivers register in
// init so it cannot change afterwards.
func DriverAvailable(driverName string) bool {
	if driverName == "" {
		return false
	}
	if v, ok := driverChecks.Load(driverName); ok {
		return v.(bool)
	}
	available := slices.Contains(sql.Drivers(), driverName)
	driverChecks.Store(driverName, available)
	return available
}

// RequireDriver returns an error matching both apperrors.ErrConnectionFailure
// and apperrors.ErrDriverUnavailable when driverName is not linked in.
func RequireDriver(dbType, driverName string) error {
	if DriverAvailable(driverName) {
		return nil
	}
	return fmt.Errorf("%w: %w: %s driver %q is not compiled in",
		apperrors.ErrConnectionFailure, apperrors.ErrDriverUnavailable, dbType, driverName)
}
