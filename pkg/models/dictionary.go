package models

import "sort"

// ColumnInfo describes one column as reported by a connector.
type ColumnInfo struct {
	ColumnName string `json:"column_name" yaml:"column_name"`
	DataType   string `json:"data_type" yaml:"data_type"`
	IsNullable bool   `json:"is_nullable" yaml:"is_nullable"`
}

// TableSchema is the ordered column list of a single table.
// Columns is empty, not nil, for a table the backend does not know.
type TableSchema struct {
	TableName string       `json:"table_name" yaml:"table_name"`
	Columns   []ColumnInfo `json:"columns" yaml:"columns"`
}

// ColumnNames returns the column names in declaration order.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.ColumnName
	}
	return names
}

// ExtractionResult maps table name to schema for every table in a database.
type ExtractionResult map[string]TableSchema

// TableNames returns the extracted table names sorted alphabetically.
func (r ExtractionResult) TableNames() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Row maps column name to value. Values are normalized to JSON-friendly
// types by the connector; nil represents SQL NULL.
type Row map[string]any

// RowSample is an ordered batch of rows, at most the requested limit.
type RowSample []Row
