package dwca

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/biohubbc/biohub-platform/pkg/media"
)

// Worksheet is one logical CSV table inside a Darwin Core Archive.
// Headers and rows are derived from the underlying file bytes on first
// access and cached for the lifetime of the worksheet.
type Worksheet struct {
	file    *media.MediaFile
	headers []string
	rows    [][]string
	parsed  bool
	loadErr error
}

func newWorksheet(file *media.MediaFile) *Worksheet {
	return &Worksheet{file: file}
}

// Name returns the source filename of the worksheet.
func (w *Worksheet) Name() string {
	return w.file.Name
}

// Headers returns the ordered field names from the first row.
func (w *Worksheet) Headers() ([]string, error) {
	if err := w.load(); err != nil {
		return nil, err
	}
	return w.headers, nil
}

// Rows returns every data row, in file order, excluding the header row.
func (w *Worksheet) Rows() ([][]string, error) {
	if err := w.load(); err != nil {
		return nil, err
	}
	return w.rows, nil
}

// ColumnIndex returns the position of the named header, or -1 when the
// worksheet does not carry that column. Lookup is case-insensitive:
// archives in the wild disagree on Darwin Core term capitalization.
func (w *Worksheet) ColumnIndex(name string) int {
	headers, err := w.Headers()
	if err != nil {
		return -1
	}
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// Cell returns the trimmed value of the given column in row, or ""
// when the index is out of range for that row. Short rows are common
// in hand-edited archives and are not an error here.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (w *Worksheet) load() error {
	if w.parsed {
		return w.loadErr
	}
	w.parsed = true

	reader := csv.NewReader(bytes.NewReader(w.file.Data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if strings.HasSuffix(strings.ToLower(w.file.Name), ".txt") {
		reader.Comma = '\t'
	}

	records, err := reader.ReadAll()
	if err != nil {
		w.loadErr = fmt.Errorf("parsing worksheet %s: %w", w.file.Name, err)
		return w.loadErr
	}
	if len(records) == 0 {
		w.loadErr = fmt.Errorf("worksheet %s is empty", w.file.Name)
		return w.loadErr
	}

	w.headers = make([]string, len(records[0]))
	for i, h := range records[0] {
		w.headers[i] = strings.TrimSpace(h)
	}
	w.rows = records[1:]
	return nil
}
