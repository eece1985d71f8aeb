package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
)

// Sample size bounds for table quality analysis.
const (
	DefaultSampleSize = 500
	MinSampleSize     = 1
	MaxSampleSize     = 10000
)

// ClampSample returns sample when it lies in [MinSampleSize, MaxSampleSize]
// and DefaultSampleSize otherwise.
func ClampSample(sample int) int {
	if sample < MinSampleSize || sample > MaxSampleSize {
		return DefaultSampleSize
	}
	return sample
}

// ComputeCompleteness returns, for every column seen in any row, the
// fraction of rows holding a non-null value. A column missing from a row
// counts as null for that row. An empty sample yields an empty report.
func ComputeCompleteness(rows models.RowSample) models.CompletenessReport {
	nonNull := make(map[string]int)
	for _, row := range rows {
		for column, value := range row {
			if _, seen := nonNull[column]; !seen {
				nonNull[column] = 0
			}
			if value != nil {
				nonNull[column]++
			}
		}
	}

	report := make(models.CompletenessReport, len(nonNull))
	total := len(rows)
	for column, count := range nonNull {
		if total == 0 {
			report[column] = 0.0
			continue
		}
		report[column] = float64(count) / float64(total)
	}
	return report
}

// QualityAnalyzer samples tables and scores their completeness.
type QualityAnalyzer struct {
	logger *zap.Logger
}

// NewQualityAnalyzer creates a new analyzer.
func NewQualityAnalyzer(logger *zap.Logger) *QualityAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QualityAnalyzer{logger: logger.Named("quality")}
}

// AnalyzeTable fetches up to sample rows of table (clamped with
// ClampSample) and computes completeness metrics over them. When the
// sample is empty, every column of the table's schema is reported at 0.
func (a *QualityAnalyzer) AnalyzeTable(ctx context.Context, conn datasource.Connector, table string, sample int) (*models.QualityMetrics, error) {
	limit := ClampSample(sample)

	rows, err := conn.FetchRows(ctx, table, limit)
	if err != nil {
		return nil, err
	}

	report := ComputeCompleteness(rows)
	if len(rows) == 0 {
		schema, err := conn.GetTableSchema(ctx, table)
		if err != nil {
			return nil, err
		}
		for _, name := range schema.ColumnNames() {
			report[name] = 0.0
		}
	}

	metrics := &models.QualityMetrics{
		TableName:       table,
		RowsSampled:     len(rows),
		ColumnsAnalyzed: len(report),
		Completeness:    report,
	}
	if len(report) > 0 {
		var sum float64
		for _, v := range report {
			sum += v
		}
		metrics.OverallCompleteness = sum / float64(len(report))
	}

	a.logger.Info("Quality analysis completed",
		zap.String("table", table),
		zap.Int("rows_sampled", metrics.RowsSampled),
		zap.Int("columns_analyzed", metrics.ColumnsAnalyzed))

	return metrics, nil
}
