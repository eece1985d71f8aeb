//go:build !no_postgres

package postgres

// The stdlib shim registers the "pgx" database/sql driver, which is what the
// availability check looks for. Queries themselves go through pgxpool.
import _ "github.com/jackc/pgx/v5/stdlib"
