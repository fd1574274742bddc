package dwca

import (
	"testing"

	"github.com/biohubbc/biohub-platform/pkg/media"
)

func testArchive() *media.Archive {
	return &media.Archive{
		MediaFile: media.MediaFile{Name: "submission.zip", MimeType: "application/zip"},
		Files: []*media.MediaFile{
			{Name: "event.csv", MimeType: "text/csv", Data: []byte("id,eventDate,verbatimCoordinates\nE1,2020-01-01,9N 573674 6114170\nE2,2020-02-02,\n")},
			{Name: "occurrence.csv", MimeType: "text/csv", Data: []byte("id,sex,lifeStage\nE1,male,adult\n")},
			{Name: "taxon.csv", MimeType: "text/csv", Data: []byte("id,vernacularName\nE1,Moose\n")},
			{Name: "eml.xml", MimeType: "application/xml", Data: []byte("<eml:eml></eml:eml>")},
			{Name: "readme.md", MimeType: "text/markdown", Data: []byte("ignore me")},
		},
	}
}

func TestNewDWCArchiveClassifiesWorksheets(t *testing.T) {
	dwc, err := NewDWCArchive(testArchive())
	if err != nil {
		t.Fatalf("failed to build archive: %v", err)
	}

	if dwc.Event == nil || dwc.Occurrence == nil || dwc.Taxon == nil {
		t.Fatal("expected event, occurrence and taxon worksheets")
	}
	if dwc.EML == nil {
		t.Fatal("expected eml side channel")
	}
	if dwc.EMLName != "eml.xml" {
		t.Fatalf("unexpected eml name %s", dwc.EMLName)
	}
	if dwc.MeasurementOrFact != nil {
		t.Fatal("absent optional worksheet must be nil")
	}
	if len(dwc.Worksheets()) != 3 {
		t.Fatalf("expected 3 populated worksheets, got %d", len(dwc.Worksheets()))
	}
}

func TestNewDWCArchiveRejectsSingleFile(t *testing.T) {
	file := &media.MediaFile{Name: "occurrence.csv", Data: []byte("id\nE1\n")}
	if _, err := NewDWCArchive(file); err == nil {
		t.Fatal("expected error for non-archive media")
	}
	if _, err := NewDWCArchive(nil); err == nil {
		t.Fatal("expected error for nil media")
	}
}

func TestWorksheetHeadersAndRows(t *testing.T) {
	dwc, err := NewDWCArchive(testArchive())
	if err != nil {
		t.Fatalf("failed to build archive: %v", err)
	}

	headers, err := dwc.Event.Headers()
	if err != nil {
		t.Fatalf("failed to read headers: %v", err)
	}
	if len(headers) != 3 || headers[0] != "id" || headers[2] != "verbatimCoordinates" {
		t.Fatalf("unexpected headers %v", headers)
	}

	rows, err := dwc.Event.Rows()
	if err != nil {
		t.Fatalf("failed to read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 data rows, got %d", len(rows))
	}
	if rows[0][1] != "2020-01-01" {
		t.Fatalf("unexpected cell %q", rows[0][1])
	}
}

func TestColumnIndexIsCaseInsensitive(t *testing.T) {
	dwc, _ := NewDWCArchive(testArchive())

	if idx := dwc.Event.ColumnIndex("EVENTDATE"); idx != 1 {
		t.Fatalf("expected index 1, got %d", idx)
	}
	if idx := dwc.Event.ColumnIndex("missing"); idx != -1 {
		t.Fatalf("expected -1 for unknown column, got %d", idx)
	}
}

func TestTabSeparatedWorksheet(t *testing.T) {
	archive := &media.Archive{
		MediaFile: media.MediaFile{Name: "submission.zip"},
		Files: []*media.MediaFile{
			{Name: "event.txt", Data: []byte("id\teventDate\nE1\t2020-01-01\n")},
		},
	}
	dwc, err := NewDWCArchive(archive)
	if err != nil {
		t.Fatalf("failed to build archive: %v", err)
	}

	headers, err := dwc.Event.Headers()
	if err != nil {
		t.Fatalf("failed to read headers: %v", err)
	}
	if len(headers) != 2 || headers[1] != "eventDate" {
		t.Fatalf("unexpected headers %v", headers)
	}
}

func TestCellToleratesShortRows(t *testing.T) {
	if got := Cell([]string{"a"}, 5); got != "" {
		t.Fatalf("expected empty cell, got %q", got)
	}
	if got := Cell([]string{" padded "}, 0); got != "padded" {
		t.Fatalf("expected trimmed cell, got %q", got)
	}
}
