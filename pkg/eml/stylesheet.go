package eml

import (
	"encoding/json"
	"fmt"
)

// Field maps one output document field to an XPath selector over the
// EML XML. Multiple collects every match into a list instead of the
// first match only.
type Field struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
	Multiple bool   `json:"multiple,omitempty"`
}

// Stylesheet is a versioned, externally stored transform definition.
// The transformer is generic over stylesheet identity and embeds no
// business rules about EML structure.
type Stylesheet struct {
	Name    string  `json:"name"`
	Version string  `json:"version"`
	Fields  []Field `json:"fields"`
}

// ParseStylesheet decodes a stored stylesheet document.
func ParseStylesheet(data []byte) (*Stylesheet, error) {
	var ss Stylesheet
	if err := json.Unmarshal(data, &ss); err != nil {
		return nil, fmt.Errorf("parsing stylesheet: %w", err)
	}
	if len(ss.Fields) == 0 {
		return nil, fmt.Errorf("stylesheet %s@%s declares no fields", ss.Name, ss.Version)
	}
	return &ss, nil
}

// CompatibilityIndex maps a data schema version to the stylesheet
// version that understands it. It lives alongside the stylesheets in
// object storage.
type CompatibilityIndex struct {
	Stylesheet string            `json:"stylesheet"`
	Default    string            `json:"default"`
	Compat     map[string]string `json:"compat"`
}

// Resolve returns the stylesheet version for a schema version, falling
// back to the index default.
func (c *CompatibilityIndex) Resolve(schemaVersion string) (string, error) {
	if v, ok := c.Compat[schemaVersion]; ok {
		return v, nil
	}
	if c.Default != "" {
		return c.Default, nil
	}
	return "", fmt.Errorf("no stylesheet version compatible with schema version %q", schemaVersion)
}
