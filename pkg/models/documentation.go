package models

import "time"

// TableSummary is a natural-language description of a table produced by an LLM
// or by the local fallback when no provider is reachable.
type TableSummary struct {
	TableName string `json:"table_name"`
	Summary   string `json:"summary"`
	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`
	// Fallback is true when the text came from the local stub.
	Fallback bool `json:"fallback"`
}

// Artifact is a documentation file written to the artifacts directory.
type Artifact struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Format    string    `json:"format"`
	Bytes     int       `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// TableMetadata is a data-dictionary entry generated for a JSON document,
// either by an LLM or by local inference.
type TableMetadata struct {
	TableType   string           `json:"tableType" yaml:"table_type"`
	TableName   string           `json:"tableName" yaml:"table_name"`
	Description string           `json:"description" yaml:"description"`
	PrimaryKeys []string         `json:"primaryKeys" yaml:"primary_keys"`
	ForeignKeys []any            `json:"foreignKeys" yaml:"foreign_keys"`
	Columns     []ColumnMetadata `json:"columns" yaml:"columns"`
}

// ColumnMetadata describes one field of a TableMetadata.
type ColumnMetadata struct {
	ColumnName   string `json:"columnName" yaml:"column_name"`
	DataType     string `json:"dataType" yaml:"data_type"`
	Description  string `json:"description" yaml:"description"`
	Nullable     bool   `json:"nullable" yaml:"nullable"`
	IsUnique     bool   `json:"isUnique" yaml:"is_unique"`
	SampleValues []any  `json:"sampleValues" yaml:"sample_values"`
}
