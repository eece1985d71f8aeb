package models

// CompletenessReport maps column name to the fraction of non-null values, in [0, 1].
type CompletenessReport map[string]float64

// QualityMetrics is the result of a table quality analysis.
type QualityMetrics struct {
	TableName       string             `json:"table_name" yaml:"table_name"`
	RowsSampled     int                `json:"rows_sampled" yaml:"rows_sampled"`
	ColumnsAnalyzed int                `json:"columns_analyzed" yaml:"columns_analyzed"`
	Completeness    CompletenessReport `json:"completeness" yaml:"completeness"`
	// OverallCompleteness is the mean of Completeness, 0 when there are no columns.
	OverallCompleteness float64 `json:"overall_completeness" yaml:"overall_completeness"`
}
