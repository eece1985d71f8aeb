package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datadict/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
)

// SchemaExtractor builds the data dictionary of a connected database.
type SchemaExtractor struct {
	logger *zap.Logger
}

// NewSchemaExtractor creates a new extractor.
func NewSchemaExtractor(logger *zap.Logger) *SchemaExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaExtractor{logger: logger.Named("schema-extractor")}
}

// ExtractAll lists every table of conn and reads its schema. It is all or
// nothing: the first failure aborts with apperrors.ErrExtractionFailure
// wrapping the cause, and no partial result is returned. Results are keyed
// by table name.
func (e *SchemaExtractor) ExtractAll(ctx context.Context, conn datasource.Connector) (models.ExtractionResult, error) {
	start := time.Now()

	tables, err := conn.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables: %w", apperrors.ErrExtractionFailure, err)
	}

	result := make(models.ExtractionResult, len(tables))
	for i, record := range tables {
		name, ok := record.Name()
		if !ok {
			return nil, fmt.Errorf("%w: table record %d has no name (keys %v)", apperrors.ErrExtractionFailure, i, recordKeys(record))
		}

		// The same name in two schemas resolves to one table on the
		// connector side, so it is read once.
		if _, seen := result[name]; seen {
			e.logger.Debug("Table name listed more than once", zap.String("table", name))
			continue
		}

		schema, err := conn.GetTableSchema(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("%w: table %s: %w", apperrors.ErrExtractionFailure, name, err)
		}
		result[name] = *schema
	}

	e.logger.Info("Schema extraction completed",
		zap.String("db_type", conn.Type()),
		zap.Int("tables", len(result)),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

func recordKeys(record datasource.TableRecord) []string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	return keys
}
