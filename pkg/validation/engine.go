// Package validation checks a submission's Darwin Core Archive against
// dynamically loaded schema rules and records the outcome on the
// submission status log.
package validation

import (
	"context"
	"fmt"

	apperrors "github.com/biohubbc/biohub-platform/pkg/common/errors"
	"github.com/biohubbc/biohub-platform/pkg/common/logger"
	"github.com/biohubbc/biohub-platform/pkg/dwca"
	"github.com/biohubbc/biohub-platform/pkg/media"
	"github.com/biohubbc/biohub-platform/pkg/storage"
	"github.com/biohubbc/biohub-platform/pkg/submission"
)

type Engine struct {
	schemas     *Repository
	submissions *submission.Repository
	states      *submission.StateMachine
	objects     storage.ObjectStore
}

func NewEngine(schemas *Repository, submissions *submission.Repository, states *submission.StateMachine, objects storage.ObjectStore) *Engine {
	return &Engine{
		schemas:     schemas,
		submissions: submissions,
		states:      states,
		objects:     objects,
	}
}

// Validate loads the submission's stored archive, checks it against
// the style schema, and drives the state machine exactly once after
// the full pass: DARWIN_CORE_VALIDATED on success, REJECTED with an
// explanatory message on failure. A failing report is a normal result,
// not an error.
func (e *Engine) Validate(ctx context.Context, submissionID, styleID uint) (*Report, error) {
	def, err := e.schemas.GetDefinition(ctx, styleID)
	if err != nil {
		return nil, err
	}

	sub, err := e.submissions.GetSubmissionRecordBySubmissionID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.InputKey == nil {
		return nil, fmt.Errorf("submission %d has no stored input to validate", submissionID)
	}

	data, _, err := e.objects.GetObject(ctx, *sub.InputKey)
	if err != nil {
		return nil, fmt.Errorf("fetching submission input %q: %w", *sub.InputKey, err)
	}

	fileName := ""
	if sub.InputFileName != nil {
		fileName = *sub.InputFileName
	}

	parsed := media.Parse(fileName, data)
	if parsed == nil {
		return nil, apperrors.ErrMalformedMedia
	}

	archive, err := dwca.NewDWCArchive(parsed)
	if err != nil {
		return nil, err
	}

	report := ValidateArchive(archive, def)

	if report.Valid {
		if _, err := e.states.Transition(ctx, submissionID, submission.StatusDarwinCoreValidated); err != nil {
			return nil, err
		}
	} else {
		messages := rejectionMessages(report)
		if _, err := e.states.Transition(ctx, submissionID, submission.StatusRejected, messages...); err != nil {
			return nil, err
		}
	}

	logger.Log.WithFields(map[string]interface{}{
		"submission_id": submissionID,
		"style_id":      styleID,
		"valid":         report.Valid,
	}).Info("validation pass completed")

	return report, nil
}

// ValidateArchive applies a schema definition to a parsed archive. It
// never persists anything; status transitions are the caller's job.
func ValidateArchive(archive *dwca.DWCArchive, def *SchemaDefinition) *Report {
	report := &Report{Valid: true}
	report.MediaState.FileName = archive.Raw.Name
	report.MediaState.Valid = true

	csv := &CSVState{}

	for _, rule := range def.Files {
		if rule.Role == "eml" {
			validateEML(archive, rule, report)
			continue
		}
		validateWorksheet(archive, rule, report, csv)
	}

	if len(csv.RowErrors) > 0 {
		report.CSVState = csv
		report.Valid = false
	}
	if !report.MediaState.Valid {
		report.Valid = false
	}
	return report
}

func validateEML(archive *dwca.DWCArchive, rule FileRule, report *Report) {
	if archive.EML != nil {
		report.MediaState.FileStates = append(report.MediaState.FileStates, FileState{
			FileName: archive.EMLName,
			Valid:    true,
		})
		return
	}
	if rule.Required {
		report.MediaState.Valid = false
		report.MediaState.FileErrors = append(report.MediaState.FileErrors,
			"archive is missing required metadata file eml.xml")
	}
}

func validateWorksheet(archive *dwca.DWCArchive, rule FileRule, report *Report, csv *CSVState) {
	ws := worksheetForRole(archive, rule.Role)
	if ws == nil {
		if rule.Required {
			report.MediaState.Valid = false
			report.MediaState.FileErrors = append(report.MediaState.FileErrors,
				fmt.Sprintf("archive is missing required file %s", rule.Role))
		}
		return
	}

	state := FileState{FileName: ws.Name(), Valid: true}

	if _, err := ws.Headers(); err != nil {
		state.Valid = false
		state.Errors = append(state.Errors, err.Error())
		report.MediaState.Valid = false
		report.MediaState.FileStates = append(report.MediaState.FileStates, state)
		return
	}

	for _, col := range rule.RequiredColumns {
		if ws.ColumnIndex(col) < 0 {
			state.Valid = false
			state.Errors = append(state.Errors, fmt.Sprintf("missing required column %s", col))
		}
	}

	if state.Valid {
		validateRows(ws, rule, csv)
	}

	if !state.Valid {
		report.MediaState.Valid = false
	}
	report.MediaState.FileStates = append(report.MediaState.FileStates, state)
}

func validateRows(ws *dwca.Worksheet, rule FileRule, csv *CSVState) {
	rows, err := ws.Rows()
	if err != nil {
		return
	}

	for _, col := range rule.NonEmptyColumns {
		idx := ws.ColumnIndex(col)
		if idx < 0 {
			continue
		}
		for i, row := range rows {
			if dwca.Cell(row, idx) == "" {
				csv.RowErrors = append(csv.RowErrors, RowError{
					FileName: ws.Name(),
					Row:      i,
					Column:   col,
					Error:    fmt.Sprintf("column %s must not be empty", col),
				})
			}
		}
	}
}

func worksheetForRole(archive *dwca.DWCArchive, role string) *dwca.Worksheet {
	for name, ws := range archive.Worksheets() {
		if name == role {
			return ws
		}
	}
	return nil
}

func rejectionMessages(report *Report) []submission.Message {
	var messages []submission.Message
	for _, fileErr := range report.MediaState.FileErrors {
		messages = append(messages, submission.Message{Type: submission.MessageError, Text: fileErr})
	}
	for _, state := range report.MediaState.FileStates {
		for _, fileErr := range state.Errors {
			messages = append(messages, submission.Message{
				Type: submission.MessageInvalidValue,
				Text: fmt.Sprintf("%s: %s", state.FileName, fileErr),
			})
		}
	}
	if report.CSVState != nil {
		for _, rowErr := range report.CSVState.RowErrors {
			messages = append(messages, submission.Message{
				Type: submission.MessageInvalidValue,
				Text: fmt.Sprintf("%s row %d column %s: %s", rowErr.FileName, rowErr.Row, rowErr.Column, rowErr.Error),
			})
		}
	}
	if len(messages) == 0 {
		messages = append(messages, submission.Message{
			Type: submission.MessageMiscellaneous,
			Text: "archive failed validation",
		})
	}
	return messages
}
