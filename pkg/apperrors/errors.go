package apperrors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnsupportedDatabase = errors.New("unsupported database type")
	ErrInvalidTableName    = errors.New("invalid table name")

	// Connector and pipeline failures. Callers wrap these with the driver
	// error so both match under errors.Is.
	ErrDriverUnavailable = errors.New("database driver unavailable")
	ErrConnectionFailure = errors.New("connection failure")
	ErrNotConnected      = errors.New("not connected")
	ErrExtractionFailure = errors.New("schema extraction failed")
	ErrQueryFailure      = errors.New("query failed")
)

// Kind tags, stable across releases. Used as the "error" field of API responses.
const (
	KindDriverUnavailable   = "driver_unavailable"
	KindConnectionFailure   = "connection_failure"
	KindNotConnected        = "not_connected"
	KindExtractionFailure   = "extraction_failure"
	KindQueryFailure        = "query_failure"
	KindInvalidTableName    = "invalid_table_name"
	KindUnsupportedDatabase = "unsupported_database"
	KindNotFound            = "not_found"
	KindInternal            = "internal_error"
)

// kindOrder is checked most-specific first: an invalid table name is also a
// query failure, and a missing driver is also a connection failure.
var kindOrder = []struct {
	err  error
	kind string
}{
	{ErrInvalidTableName, KindInvalidTableName},
	{ErrDriverUnavailable, KindDriverUnavailable},
	{ErrNotConnected, KindNotConnected},
	{ErrUnsupportedDatabase, KindUnsupportedDatabase},
	{ErrExtractionFailure, KindExtractionFailure},
	{ErrConnectionFailure, KindConnectionFailure},
	{ErrQueryFailure, KindQueryFailure},
	{ErrNotFound, KindNotFound},
}

// Kind returns the stable tag for err, or KindInternal if err is not part of
// the taxonomy.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
