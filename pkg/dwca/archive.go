// Package dwca models a Darwin Core Archive: a zip of CSV worksheets
// (event, occurrence, taxon, ...) plus an EML metadata document.
package dwca

import (
	"fmt"
	"path"
	"strings"

	"github.com/biohubbc/biohub-platform/pkg/media"
)

// WorksheetRole identifies the logical table a member file fills.
type WorksheetRole int

const (
	RoleEvent WorksheetRole = iota
	RoleOccurrence
	RoleTaxon
	RoleMeasurementOrFact
	RoleResourceRelationship
	RoleLocation
	RoleRecord
)

func (r WorksheetRole) String() string {
	switch r {
	case RoleEvent:
		return "event"
	case RoleOccurrence:
		return "occurrence"
	case RoleTaxon:
		return "taxon"
	case RoleMeasurementOrFact:
		return "measurementorfact"
	case RoleResourceRelationship:
		return "resourcerelationship"
	case RoleLocation:
		return "location"
	case RoleRecord:
		return "record"
	default:
		return "unknown"
	}
}

// Canonical filename stems per role. A member file is classified by
// its lowercased basename without extension; "event.csv" and
// "event.txt" both fill the event slot. Classification is resolved
// once at construction, not probed per access.
var roleStems = map[string]WorksheetRole{
	"event":                RoleEvent,
	"occurrence":           RoleOccurrence,
	"taxon":                RoleTaxon,
	"measurementorfact":    RoleMeasurementOrFact,
	"resourcerelationship": RoleResourceRelationship,
	"location":             RoleLocation,
	"record":               RoleRecord,
}

var emlStems = map[string]bool{
	"eml":      true,
	"metadata": true,
}

// DWCArchive exposes a parsed archive's worksheets by role. Any
// worksheet handle may be nil: archives legitimately omit optional
// tables. EML is nil when the archive carries no metadata document.
type DWCArchive struct {
	Raw *media.Archive

	Event                *Worksheet
	Occurrence           *Worksheet
	Taxon                *Worksheet
	MeasurementOrFact    *Worksheet
	ResourceRelationship *Worksheet
	Location             *Worksheet
	Record               *Worksheet

	EMLName string
	EML     []byte
}

// NewDWCArchive classifies the members of a parsed archive into
// worksheet slots plus the EML side channel. It fails fast when m is
// not actually an archive; downstream code assumes worksheets may be
// absent but never that the archive type itself is malformed.
func NewDWCArchive(m media.Media) (*DWCArchive, error) {
	if m == nil {
		return nil, fmt.Errorf("media is nil, cannot build darwin core archive")
	}
	archive, ok := m.(*media.Archive)
	if !ok {
		return nil, fmt.Errorf("media %q is a single file, expected a multi-file darwin core archive", m.MediaName())
	}

	dwc := &DWCArchive{Raw: archive}

	for _, file := range archive.Files {
		stem, ext := splitName(file.Name)

		if ext == ".xml" && emlStems[stem] {
			if dwc.EML == nil {
				dwc.EMLName = file.Name
				dwc.EML = file.Data
			}
			continue
		}

		role, ok := roleStems[stem]
		if !ok {
			continue
		}
		dwc.setWorksheet(role, file)
	}

	return dwc, nil
}

func (d *DWCArchive) setWorksheet(role WorksheetRole, file *media.MediaFile) {
	ws := newWorksheet(file)
	switch role {
	case RoleEvent:
		if d.Event == nil {
			d.Event = ws
		}
	case RoleOccurrence:
		if d.Occurrence == nil {
			d.Occurrence = ws
		}
	case RoleTaxon:
		if d.Taxon == nil {
			d.Taxon = ws
		}
	case RoleMeasurementOrFact:
		if d.MeasurementOrFact == nil {
			d.MeasurementOrFact = ws
		}
	case RoleResourceRelationship:
		if d.ResourceRelationship == nil {
			d.ResourceRelationship = ws
		}
	case RoleLocation:
		if d.Location == nil {
			d.Location = ws
		}
	case RoleRecord:
		if d.Record == nil {
			d.Record = ws
		}
	}
}

// Worksheet returns the handle for a role, or nil when the archive has
// no file for it.
func (d *DWCArchive) Worksheet(role WorksheetRole) *Worksheet {
	switch role {
	case RoleEvent:
		return d.Event
	case RoleOccurrence:
		return d.Occurrence
	case RoleTaxon:
		return d.Taxon
	case RoleMeasurementOrFact:
		return d.MeasurementOrFact
	case RoleResourceRelationship:
		return d.ResourceRelationship
	case RoleLocation:
		return d.Location
	case RoleRecord:
		return d.Record
	default:
		return nil
	}
}

// Worksheets returns every populated worksheet keyed by role name.
func (d *DWCArchive) Worksheets() map[string]*Worksheet {
	out := make(map[string]*Worksheet)
	for _, role := range []WorksheetRole{
		RoleEvent, RoleOccurrence, RoleTaxon, RoleMeasurementOrFact,
		RoleResourceRelationship, RoleLocation, RoleRecord,
	} {
		if ws := d.Worksheet(role); ws != nil {
			out[role.String()] = ws
		}
	}
	return out
}

func splitName(name string) (stem, ext string) {
	base := strings.ToLower(path.Base(name))
	ext = path.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}
