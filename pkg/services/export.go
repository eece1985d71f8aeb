package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
	"github.com/ekaya-inc/ekaya-datadict/pkg/sql"
)

// Artifact formats.
const (
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
)

const artifactTimeLayout = "20060102150405"

// ArtifactService writes documentation files under a single directory.
// File names are {name}_{UTC timestamp}.{ext}.
type ArtifactService struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

// NewArtifactService creates a service writing into dir. The directory is
// created on first write.
func NewArtifactService(dir string, logger *zap.Logger) *ArtifactService {
	if dir == "" {
		dir = "artifacts"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactService{
		dir:    dir,
		now:    time.Now,
		logger: logger.Named("artifacts"),
	}
}

// Dir returns the artifacts directory.
func (s *ArtifactService) Dir() string {
	return s.dir
}

// WriteJSON writes v as indented JSON.
func (s *ArtifactService) WriteJSON(name string, v any) (*models.Artifact, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json artifact: %w", err)
	}
	return s.write(name, FormatJSON, "json", append(data, '\n'))
}

// WriteYAML writes v as YAML.
func (s *ArtifactService) WriteYAML(name string, v any) (*models.Artifact, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode yaml artifact: %w", err)
	}
	return s.write(name, FormatYAML, "yaml", data)
}

// WriteMarkdown writes the data-dictionary page for schema.
func (s *ArtifactService) WriteMarkdown(schema models.TableSchema) (*models.Artifact, error) {
	return s.write(schema.TableName, FormatMarkdown, "md", []byte(RenderMarkdown(schema)))
}

// RenderMarkdown renders schema as a Markdown data-dictionary page.
func RenderMarkdown(schema models.TableSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Table: %s\n\n", schema.TableName)
	fmt.Fprintf(&b, "Each row describes one %s.\n\n", entityNoun(schema.TableName))
	b.WriteString("| Column | Data Type | Nullable |\n")
	b.WriteString("|--------|-----------|----------|\n")
	for _, c := range schema.Columns {
		nullable := "NO"
		if c.IsNullable {
			nullable = "YES"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(c.ColumnName), escapeCell(c.DataType), nullable)
	}
	if len(schema.Columns) == 0 {
		b.WriteString("\n_No columns found._\n")
	}
	return b.String()
}

func (s *ArtifactService) write(name, format, ext string, data []byte) (*models.Artifact, error) {
	if err := sql.ValidateTableName(name); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts dir: %w", err)
	}

	created := s.now().UTC()
	fileName := fmt.Sprintf("%s_%s.%s", name, created.Format(artifactTimeLayout), ext)
	path := filepath.Join(s.dir, fileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write artifact %s: %w", fileName, err)
	}

	s.logger.Info("Wrote artifact",
		zap.String("file", fileName),
		zap.String("format", format),
		zap.Int("bytes", len(data)))

	return &models.Artifact{
		Name:      fileName,
		Path:      path,
		Format:    format,
		Bytes:     len(data),
		CreatedAt: created,
	}, nil
}

// entityNoun turns a table name like "order_items" into "order item".
func entityNoun(table string) string {
	words := strings.FieldsFunc(strings.ToLower(table), func(r rune) bool {
		return r == '_' || r == '-'
	})
	if len(words) == 0 {
		return "record"
	}
	words[len(words)-1] = inflection.Singular(words[len(words)-1])
	return strings.Join(words, " ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
