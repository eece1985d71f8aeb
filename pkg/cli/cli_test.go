package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
	"github.com/ekaya-inc/ekaya-datadict/pkg/testhelpers"
)

// writeConfig writes a config file pointing the default database at a
// seeded SQLite fixture and returns its path and the artifacts directory.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("DATABASE_URL", "")

	dir := t.TempDir()
	artifacts := filepath.Join(dir, "artifacts")
	content := fmt.Sprintf(`env: test
log_level: error
datasource:
  default_type: sqlite
sqlite:
  path: %s
artifacts:
  dir: %s
`, testhelpers.SQLiteFixture(t), artifacts)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path, artifacts
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestExtractCmd_JSON(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := run(t, "extract", "-c", cfgPath)
	require.NoError(t, err)

	var dict dictionaryOutput
	require.NoError(t, json.Unmarshal([]byte(out), &dict))
	assert.Equal(t, "sqlite", dict.DBType)
	assert.Equal(t, []string{"customers", "orders"}, dict.Tables.TableNames())
	assert.Empty(t, dict.Summaries)
}

func TestExtractCmd_YAMLWithSummaries(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := run(t, "extract", "-c", cfgPath, "--format", "yaml", "--summarize")
	require.NoError(t, err)

	var dict dictionaryOutput
	require.NoError(t, yaml.Unmarshal([]byte(out), &dict))
	require.Len(t, dict.Summaries, 2)
	assert.Equal(t, "customers", dict.Summaries[0].TableName)
	assert.True(t, dict.Summaries[0].Fallback)
}

func TestExtractCmd_MarkdownWritesArtifacts(t *testing.T) {
	cfgPath, artifacts := writeConfig(t)

	out, err := run(t, "extract", "-c", cfgPath, "-f", "markdown", "--write")
	require.NoError(t, err)

	assert.Contains(t, out, "# Table: customers")
	assert.Contains(t, out, "# Table: orders")
	assert.Contains(t, out, "| email | TEXT | YES |")

	entries, err := os.ReadDir(artifacts)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestExtractCmd_WriteJSONArtifact(t *testing.T) {
	cfgPath, artifacts := writeConfig(t)

	_, err := run(t, "extract", "-c", cfgPath, "--write")
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(artifacts, "data_dictionary_sqlite_*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestExtractCmd_UnknownFormat(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	_, err := run(t, "extract", "-c", cfgPath, "--format", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestExtractCmd_UnsupportedDBType(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	_, err := run(t, "extract", "-c", cfgPath, "--db-type", "oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestQualityCmd(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := run(t, "quality", "customers", "-c", cfgPath, "--sample", "10")
	require.NoError(t, err)

	var metrics models.QualityMetrics
	require.NoError(t, json.Unmarshal([]byte(out), &metrics))
	assert.Equal(t, 4, metrics.RowsSampled)
	assert.InDelta(t, 0.5, metrics.Completeness["email"], 1e-9)
}

func TestQualityCmd_RejectsInvalidTableName(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	_, err := run(t, "quality", "customers;drop", "-c", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func TestQualityCmd_RequiresTable(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	_, err := run(t, "quality", "-c", cfgPath)
	require.Error(t, err)
}

func TestTypesCmd(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := run(t, "types", "-c", cfgPath)
	require.NoError(t, err)

	assert.Contains(t, out, "TYPE")
	for _, dbType := range []string{"postgres", "mysql", "snowflake", "mssql", "sqlite"} {
		assert.Contains(t, out, dbType)
	}
}

func TestRootCmd_Version(t *testing.T) {
	cmd := NewRootCmd("1.2.3")
	assert.Equal(t, "1.2.3", cmd.Version)

	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "extract", "quality", "types"})
}
