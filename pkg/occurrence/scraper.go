// Package occurrence scrapes normalized observation records out of the
// loosely typed event/occurrence/taxon worksheets of a Darwin Core
// Archive and persists them row by row.
package occurrence

import (
	"context"
	"fmt"

	"github.com/araddon/dateparse"
	"github.com/biohubbc/biohub-platform/pkg/common/logger"
	"github.com/biohubbc/biohub-platform/pkg/dwca"
)

// ScrapeState summarizes the persistence outcome of one scrape run.
type ScrapeState string

const (
	ScrapeSucceeded ScrapeState = "SUCCEEDED"
	ScrapePartial   ScrapeState = "PARTIALLY_SUCCEEDED"
	ScrapeFailed    ScrapeState = "FAILED"
)

// RowFailure records a row that could not be persisted. Earlier rows
// stay committed: persistence is per-row with no compensating
// transaction, matching biological-data tolerance expectations.
type RowFailure struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// RowWarning records a tolerated irregularity, such as coordinates
// that parsed as neither UTM nor lat/long.
type RowWarning struct {
	Row     int    `json:"row"`
	Warning string `json:"warning"`
}

// ScrapeResult distinguishes fully, partially, and not-at-all
// succeeded runs with per-row detail.
type ScrapeResult struct {
	State         ScrapeState  `json:"state"`
	OccurrenceIDs []uint       `json:"occurrence_ids"`
	Failures      []RowFailure `json:"failures,omitempty"`
	Warnings      []RowWarning `json:"warnings,omitempty"`
}

type Scraper struct {
	repo *Repository
}

func NewScraper(repo *Repository) *Scraper {
	return &Scraper{repo: repo}
}

// eventFields is what the scraper reads off a matched event row.
type eventFields struct {
	eventDate           string
	verbatimCoordinates string
}

// Scrape joins the occurrence worksheet against the event and taxon
// worksheets by their id columns and persists one Occurrence per
// occurrence row. Event and taxon rows are pre-indexed by join key, so
// a run is linear in the total row count.
func (s *Scraper) Scrape(ctx context.Context, archive *dwca.DWCArchive, submissionID uint) (*ScrapeResult, error) {
	result := &ScrapeResult{State: ScrapeSucceeded}

	if archive.Occurrence == nil {
		// a DwCA without an occurrence table has nothing to scrape
		return result, nil
	}

	occRows, err := archive.Occurrence.Rows()
	if err != nil {
		return nil, fmt.Errorf("reading occurrence worksheet: %w", err)
	}

	events, err := indexEvents(archive.Event)
	if err != nil {
		return nil, err
	}
	vernaculars, err := indexTaxa(archive.Taxon)
	if err != nil {
		return nil, err
	}

	idIdx := archive.Occurrence.ColumnIndex("id")
	taxonIDIdx := archive.Occurrence.ColumnIndex("taxonID")
	associatedTaxaIdx := archive.Occurrence.ColumnIndex("associatedTaxa")
	lifeStageIdx := archive.Occurrence.ColumnIndex("lifeStage")
	sexIdx := archive.Occurrence.ColumnIndex("sex")
	individualCountIdx := archive.Occurrence.ColumnIndex("individualCount")
	organismQuantityIdx := archive.Occurrence.ColumnIndex("organismQuantity")
	organismQuantityTypeIdx := archive.Occurrence.ColumnIndex("organismQuantityType")

	for i, row := range occRows {
		joinKey := dwca.Cell(row, idIdx)

		occ := &Occurrence{
			SubmissionID:         submissionID,
			TaxonID:              dwca.Cell(row, taxonIDIdx),
			LifeStage:            dwca.Cell(row, lifeStageIdx),
			Sex:                  dwca.Cell(row, sexIdx),
			IndividualCount:      dwca.Cell(row, individualCountIdx),
			OrganismQuantity:     dwca.Cell(row, organismQuantityIdx),
			OrganismQuantityType: dwca.Cell(row, organismQuantityTypeIdx),
		}
		if occ.TaxonID == "" {
			occ.TaxonID = dwca.Cell(row, associatedTaxaIdx)
		}

		if ev, ok := events[joinKey]; ok {
			occ.EventDate = normalizeEventDate(ev.eventDate)

			if ev.verbatimCoordinates != "" {
				if point, parsed := ParseVerbatimCoordinates(ev.verbatimCoordinates); parsed {
					lat, lon := point.Latitude, point.Longitude
					occ.Latitude = &lat
					occ.Longitude = &lon
				} else {
					result.Warnings = append(result.Warnings, RowWarning{
						Row:     i,
						Warning: fmt.Sprintf("verbatimCoordinates %q parsed as neither UTM nor lat/long; occurrence stored without geography", ev.verbatimCoordinates),
					})
				}
			}
		}

		if name, ok := vernaculars[joinKey]; ok {
			occ.VernacularName = name
		}

		if err := s.repo.InsertOccurrence(ctx, occ); err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"submission_id": submissionID,
				"row":           i,
			}).Error("failed to persist occurrence row")
			result.Failures = append(result.Failures, RowFailure{Row: i, Error: err.Error()})
			continue
		}
		result.OccurrenceIDs = append(result.OccurrenceIDs, occ.ID)
	}

	switch {
	case len(result.Failures) == 0:
		result.State = ScrapeSucceeded
	case len(result.OccurrenceIDs) == 0:
		result.State = ScrapeFailed
	default:
		result.State = ScrapePartial
	}

	return result, nil
}

// indexEvents maps event ids to the fields of interest. The first row
// per id wins, matching the original first-match join semantics.
func indexEvents(ws *dwca.Worksheet) (map[string]eventFields, error) {
	out := make(map[string]eventFields)
	if ws == nil {
		return out, nil
	}
	rows, err := ws.Rows()
	if err != nil {
		return nil, fmt.Errorf("reading event worksheet: %w", err)
	}

	idIdx := ws.ColumnIndex("id")
	eventDateIdx := ws.ColumnIndex("eventDate")
	coordsIdx := ws.ColumnIndex("verbatimCoordinates")

	for _, row := range rows {
		id := dwca.Cell(row, idIdx)
		if id == "" {
			continue
		}
		if _, exists := out[id]; exists {
			continue
		}
		out[id] = eventFields{
			eventDate:           dwca.Cell(row, eventDateIdx),
			verbatimCoordinates: dwca.Cell(row, coordsIdx),
		}
	}
	return out, nil
}

func indexTaxa(ws *dwca.Worksheet) (map[string]string, error) {
	out := make(map[string]string)
	if ws == nil {
		return out, nil
	}
	rows, err := ws.Rows()
	if err != nil {
		return nil, fmt.Errorf("reading taxon worksheet: %w", err)
	}

	idIdx := ws.ColumnIndex("id")
	vernacularIdx := ws.ColumnIndex("vernacularName")

	for _, row := range rows {
		id := dwca.Cell(row, idIdx)
		if id == "" {
			continue
		}
		if _, exists := out[id]; exists {
			continue
		}
		out[id] = dwca.Cell(row, vernacularIdx)
	}
	return out, nil
}

// normalizeEventDate reformats parseable dates as YYYY-MM-DD and keeps
// the verbatim text otherwise. DwC date fields in the wild mix ISO
// dates, slashes, and prose.
func normalizeEventDate(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := dateparse.ParseAny(raw)
	if err != nil {
		return raw
	}
	return parsed.Format("2006-01-02")
}
