package services

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
)

const maxSampleValues = 3

// InferMetadata derives a data-dictionary entry from JSON data without an
// LLM. When data holds exactly one array of objects, each object is a
// record; otherwise data itself is the single record.
func InferMetadata(data map[string]any, tableName string) *models.TableMetadata {
	records := recordsOf(data)

	type columnStats struct {
		types   map[string]int
		present int
		nulls   int
		values  map[string]bool
		samples []any
	}
	stats := map[string]*columnStats{}
	for _, rec := range records {
		for key, value := range rec {
			cs, ok := stats[key]
			if !ok {
				cs = &columnStats{types: map[string]int{}, values: map[string]bool{}}
				stats[key] = cs
			}
			cs.present++
			if value == nil {
				cs.nulls++
				continue
			}
			cs.types[inferSQLType(value)]++
			encoded, _ := json.Marshal(value)
			cs.values[string(encoded)] = true
			if len(cs.samples) < maxSampleValues {
				cs.samples = append(cs.samples, value)
			}
		}
	}

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	metadata := &models.TableMetadata{
		TableType:   "TABLE",
		TableName:   tableName,
		Description: fmt.Sprintf("%d record(s) with %d field(s), inferred from sample JSON", len(records), len(names)),
		PrimaryKeys: []string{},
		ForeignKeys: []any{},
		Columns:     make([]models.ColumnMetadata, 0, len(names)),
	}

	for _, name := range names {
		cs := stats[name]
		nonNull := cs.present - cs.nulls
		unique := nonNull > 0 && cs.nulls == 0 && cs.present == len(records) && len(cs.values) == nonNull
		column := models.ColumnMetadata{
			ColumnName:   name,
			DataType:     dominantType(cs.types),
			Nullable:     cs.nulls > 0 || cs.present < len(records),
			IsUnique:     unique && len(records) > 1,
			SampleValues: cs.samples,
		}
		if column.SampleValues == nil {
			column.SampleValues = []any{}
		}
		metadata.Columns = append(metadata.Columns, column)

		if column.IsUnique && isKeyName(name, tableName) {
			metadata.PrimaryKeys = append(metadata.PrimaryKeys, name)
		}
	}
	return metadata
}

func recordsOf(data map[string]any) []map[string]any {
	if len(data) == 1 {
		for _, v := range data {
			if arr, ok := v.([]any); ok {
				records := make([]map[string]any, 0, len(arr))
				for _, item := range arr {
					obj, ok := item.(map[string]any)
					if !ok {
						return []map[string]any{data}
					}
					records = append(records, obj)
				}
				return records
			}
		}
	}
	return []map[string]any{data}
}

func inferSQLType(v any) string {
	switch val := v.(type) {
	case bool:
		return "BOOLEAN"
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return "INTEGER"
		}
		return "DECIMAL"
	case string:
		if _, err := time.Parse(time.RFC3339, val); err == nil {
			return "TIMESTAMP"
		}
		if _, err := time.Parse(time.DateOnly, val); err == nil {
			return "DATE"
		}
		return "VARCHAR"
	case map[string]any, []any:
		return "JSON"
	}
	return "VARCHAR"
}

func dominantType(types map[string]int) string {
	switch len(types) {
	case 0:
		return "VARCHAR"
	case 1:
		for t := range types {
			return t
		}
	}
	if len(types) == 2 && types["INTEGER"] > 0 && types["DECIMAL"] > 0 {
		return "DECIMAL"
	}
	return "VARCHAR"
}

func isKeyName(column, table string) bool {
	lower := strings.ToLower(column)
	return lower == "id" || lower == strings.ToLower(table)+"_id"
}
