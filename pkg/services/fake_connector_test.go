package services

import (
	"context"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datadict/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
)

// fakeConnector serves canned tables. Errors keyed by table name are
// returned from GetTableSchema and FetchRows for that table.
type fakeConnector struct {
	tables     []datasource.TableRecord
	schemas    map[string]models.TableSchema
	rows       map[string]models.RowSample
	listErr    error
	schemaErrs map[string]error
	fetchErrs  map[string]error

	schemaCalls []string
	fetchLimits []int
	closed      bool
}

var _ datasource.Connector = (*fakeConnector)(nil)

func (f *fakeConnector) Connect(ctx context.Context) error { return nil }

func (f *fakeConnector) ListTables(ctx context.Context) ([]datasource.TableRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tables, nil
}

func (f *fakeConnector) GetTableSchema(ctx context.Context, table string) (*models.TableSchema, error) {
	f.schemaCalls = append(f.schemaCalls, table)
	if err := f.schemaErrs[table]; err != nil {
		return nil, err
	}
	schema, ok := f.schemas[table]
	if !ok {
		return &models.TableSchema{TableName: table, Columns: []models.ColumnInfo{}}, nil
	}
	return &schema, nil
}

func (f *fakeConnector) FetchRows(ctx context.Context, table string, limit int) (models.RowSample, error) {
	f.fetchLimits = append(f.fetchLimits, limit)
	if err := f.fetchErrs[table]; err != nil {
		return nil, err
	}
	rows := f.rows[table]
	if limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeConnector) Type() string { return "fake" }

func (f *fakeConnector) Close() error {
	f.closed = true
	return nil
}

func customersFixture() *fakeConnector {
	return &fakeConnector{
		tables: []datasource.TableRecord{
			{"table_schema": "public", "table_name": "customers"},
			{"table_schema": "public", "table_name": "orders"},
		},
		schemas: map[string]models.TableSchema{
			"customers": {TableName: "customers", Columns: []models.ColumnInfo{
				{ColumnName: "id", DataType: "integer"},
				{ColumnName: "name", DataType: "text"},
				{ColumnName: "email", DataType: "text", IsNullable: true},
			}},
			"orders": {TableName: "orders", Columns: []models.ColumnInfo{
				{ColumnName: "id", DataType: "integer"},
				{ColumnName: "total", DataType: "numeric", IsNullable: true},
			}},
		},
		rows: map[string]models.RowSample{
			"customers": {
				{"id": int64(1), "name": "Ada", "email": "ada@example.com"},
				{"id": int64(2), "name": "Grace", "email": nil},
				{"id": int64(3), "name": "Edsger", "email": nil},
				{"id": int64(4), "name": "Barbara", "email": "barbara@example.com"},
			},
		},
		schemaErrs: map[string]error{},
		fetchErrs:  map[string]error{},
	}
}

var errBackend = apperrors.ErrQueryFailure
