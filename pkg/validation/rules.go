package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileRule describes the expectations on one logical archive member.
// Role names match dwca.WorksheetRole strings, plus "eml" for the
// metadata document.
type FileRule struct {
	Role            string   `yaml:"role" json:"role"`
	Required        bool     `yaml:"required" json:"required"`
	RequiredColumns []string `yaml:"required_columns" json:"required_columns,omitempty"`
	// Columns that must carry a value on every row when the column is
	// present.
	NonEmptyColumns []string `yaml:"non_empty_columns" json:"non_empty_columns,omitempty"`
}

// SchemaDefinition is the dynamically loaded rule set one style schema
// applies to an archive. Definitions live in the style_schema reference
// table, not in code.
type SchemaDefinition struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description,omitempty"`
	Files       []FileRule `yaml:"files" json:"files"`
}

// LoadDefinitionFile reads a YAML schema definition, used to seed the
// reference table.
func LoadDefinitionFile(path string) (*SchemaDefinition, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var def SchemaDefinition
	if err := yaml.Unmarshal(content, &def); err != nil {
		return nil, fmt.Errorf("parsing schema definition %s: %w", path, err)
	}
	if len(def.Files) == 0 {
		return nil, errors.New("schema definition declares no file rules")
	}
	return &def, nil
}

// DefaultDefinition covers the baseline Darwin Core Archive shape:
// event, occurrence and taxon worksheets plus an EML document.
func DefaultDefinition() *SchemaDefinition {
	return &SchemaDefinition{
		Name:        "dwca-baseline",
		Description: "Baseline structure for Darwin Core Archive submissions",
		Files: []FileRule{
			{
				Role:            "event",
				Required:        true,
				RequiredColumns: []string{"id", "eventDate"},
			},
			{
				Role:            "occurrence",
				Required:        true,
				RequiredColumns: []string{"id"},
				NonEmptyColumns: []string{"id"},
			},
			{
				Role:            "taxon",
				Required:        false,
				RequiredColumns: []string{"id"},
			},
			{
				Role:     "eml",
				Required: true,
			},
		},
	}
}
