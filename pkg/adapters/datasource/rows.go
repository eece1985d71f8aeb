package datasource

import (
	"database/sql"
	"database/sql/driver"
	"encoding/base64"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
)

// NormalizeValue converts a driver value into a JSON-friendly one.
// Text stored as bytes becomes a string, binary becomes base64,
// 16-byte arrays (pgx UUIDs) become canonical UUID strings.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		if utf8.Valid(val) {
			return string(val)
		}
		return base64.StdEncoding.EncodeToString(val)
	case [16]byte:
		return uuid.UUID(val).String()
	case time.Time:
		return val
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	case driver.Valuer:
		inner, err := val.Value()
		if err != nil {
			return fmt.Sprint(val)
		}
		if _, again := inner.(driver.Valuer); again {
			return inner
		}
		return NormalizeValue(inner)
	case fmt.Stringer:
		return val.String()
	default:
		return val
	}
}

// ScanRows reads every remaining row of rows into column-keyed maps and closes rows.
// The result is never nil.
func ScanRows(rows *sql.Rows) (models.RowSample, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	sample := make(models.RowSample, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(models.Row, len(columns))
		for i, col := range columns {
			row[col] = NormalizeValue(values[i])
		}
		sample = append(sample, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sample, nil
}

// TableRecords converts a listing query result into table descriptors.
func TableRecords(sample models.RowSample) []TableRecord {
	records := make([]TableRecord, len(sample))
	for i, row := range sample {
		records[i] = TableRecord(row)
	}
	return records
}
