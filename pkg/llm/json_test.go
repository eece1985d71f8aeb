package llm

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain object",
			input:    `{"tableName": "orders", "primaryKeys": ["id"]}`,
			expected: `{"tableName": "orders", "primaryKeys": ["id"]}`,
		},
		{
			name:     "plain array",
			input:    `[{"columnName": "id"}, {"columnName": "total"}]`,
			expected: `[{"columnName": "id"}, {"columnName": "total"}]`,
		},
		{
			name:     "nested",
			input:    `{"columns": [{"sampleValues": [1, 2, {"x": null}]}]}`,
			expected: `{"columns": [{"sampleValues": [1, 2, {"x": null}]}]}`,
		},
		{
			name:     "think block",
			input:    "<think>\nThe user wants metadata {maybe}.\n</think>\n{\"tableName\": \"users\"}",
			expected: `{"tableName": "users"}`,
		},
		{
			name:     "markdown fence",
			input:    "Here is the metadata:\n```json\n{\"tableName\": \"events\"}\n```\nLet me know if you need more.",
			expected: `{"tableName": "events"}`,
		},
		{
			name:     "prose with stray brace first",
			input:    `Columns {id, name} are described below: {"tableName": "people"}`,
			expected: `{"tableName": "people"}`,
		},
		{
			name:     "brackets inside strings",
			input:    `{"description": "values like [a] and {b}"}`,
			expected: `{"description": "values like [a] and {b}"}`,
		},
		{
			name:     "escaped quotes",
			input:    `{"description": "the \"primary\" key"}`,
			expected: `{"description": "the \"primary\" key"}`,
		},
		{
			name:     "array before object",
			input:    `result: [1, 2] then {"a": 1}`,
			expected: `[1, 2]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	for _, input := range []string{"", "The table stores orders.", `{"unterminated": `, "<think>{}</think>"} {
		if _, err := ExtractJSON(input); !errors.Is(err, ErrNoJSON) {
			t.Errorf("ExtractJSON(%q): expected ErrNoJSON, got %v", input, err)
		}
	}
}

func TestParseJSONResponse(t *testing.T) {
	type column struct {
		ColumnName string `json:"columnName"`
		Nullable   bool   `json:"nullable"`
	}
	type metadata struct {
		TableName string   `json:"tableName"`
		Columns   []column `json:"columns"`
	}

	input := `<think>thinking</think>{"tableName": "orders", "columns": [{"columnName": "id", "nullable": false}]}`
	result, err := ParseJSONResponse[metadata](input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TableName != "orders" {
		t.Errorf("expected table 'orders', got %q", result.TableName)
	}
	if len(result.Columns) != 1 || result.Columns[0].ColumnName != "id" {
		t.Errorf("unexpected columns %+v", result.Columns)
	}
}

func TestParseJSONResponse_TypeMismatch(t *testing.T) {
	type metadata struct {
		TableName string `json:"tableName"`
	}
	if _, err := ParseJSONResponse[metadata](`[1, 2, 3]`); err == nil {
		t.Error("expected unmarshal error for array into struct")
	}
}

func TestStripThinking(t *testing.T) {
	got := StripThinking("<think>\nlet me see\n</think>\n\nThe table stores orders.")
	if got != "The table stores orders." {
		t.Errorf("unexpected result %q", got)
	}
	if StripThinking("  plain answer ") != "plain answer" {
		t.Errorf("plain text should only be trimmed")
	}
}
