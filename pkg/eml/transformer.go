// Package eml converts Ecological Metadata Language XML into JSON
// documents suitable for search indexing, driven by versioned
// stylesheets stored outside the codebase.
package eml

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ErrEmptyTransform is returned when a stylesheet produced no fields
// at all from the given EML document.
var ErrEmptyTransform = errors.New("failed to transform eml with stylesheet")

// Transform applies a stylesheet to raw EML XML and returns the
// resulting JSON-ready document. It fails when the XML cannot be
// parsed or when the transform yields no principal result.
func Transform(emlXML []byte, stylesheet *Stylesheet) (map[string]interface{}, error) {
	if len(emlXML) == 0 {
		return nil, fmt.Errorf("eml source is empty")
	}

	doc, err := xmlquery.Parse(strings.NewReader(string(emlXML)))
	if err != nil {
		return nil, fmt.Errorf("parsing eml xml: %w", err)
	}

	out := make(map[string]interface{})

	for _, field := range stylesheet.Fields {
		nodes, err := xmlquery.QueryAll(doc, field.Selector)
		if err != nil {
			return nil, fmt.Errorf("evaluating selector %q for field %q: %w", field.Selector, field.Name, err)
		}
		if len(nodes) == 0 {
			continue
		}

		if field.Multiple {
			values := make([]string, 0, len(nodes))
			for _, node := range nodes {
				if text := strings.TrimSpace(node.InnerText()); text != "" {
					values = append(values, text)
				}
			}
			if len(values) > 0 {
				out[field.Name] = values
			}
			continue
		}

		if text := strings.TrimSpace(nodes[0].InnerText()); text != "" {
			out[field.Name] = text
		}
	}

	if len(out) == 0 {
		return nil, ErrEmptyTransform
	}
	return out, nil
}

// SchemaVersion reads the schemaVersion attribute off the EML root
// element. An empty result makes the stylesheet compatibility lookup
// fall back to its default version.
func SchemaVersion(emlXML []byte) string {
	doc, err := xmlquery.Parse(strings.NewReader(string(emlXML)))
	if err != nil {
		return ""
	}
	root := xmlquery.FindOne(doc, "//*[local-name()='eml']")
	if root == nil {
		return ""
	}
	for _, attr := range root.Attr {
		if attr.Name.Local == "schemaVersion" {
			return strings.TrimSpace(attr.Value)
		}
	}
	return ""
}
