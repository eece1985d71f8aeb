//go:build !no_snowflake

package snowflake

import (
	"errors"

	"github.com/snowflakedb/gosnowflake"
)

// objectMissing is the Snowflake error number for an object that does not
// exist or is not visible to the current role.
const objectMissing = 2003

func formatDSN(cfg *Config) (string, error) {
	return gosnowflake.DSN(&gosnowflake.Config{
		Account:      cfg.Account,
		User:         cfg.User,
		Password:     cfg.Password,
		Database:     cfg.Database,
		Schema:       cfg.Schema,
		Warehouse:    cfg.Warehouse,
		Role:         cfg.Role,
		LoginTimeout: cfg.LoginTimeout,
	})
}

func isObjectMissing(err error) bool {
	var sfErr *gosnowflake.SnowflakeError
	return errors.As(err, &sfErr) && sfErr.Number == objectMissing
}
