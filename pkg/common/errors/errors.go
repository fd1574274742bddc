// Package apperrors defines the error kinds the submission pipeline
// distinguishes at the request boundary. Repository writes that affect
// zero rows where at least one was expected always surface as an
// ExecuteSQLError so the HTTP layer can report a stable error kind.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSubmissionNotFound is returned when no current submission row
	// exists for the requested id.
	ErrSubmissionNotFound = errors.New("submission record not found")

	// ErrMalformedMedia is returned when an upload cannot be parsed
	// into a file or archive at all.
	ErrMalformedMedia = errors.New("failed to parse submission")
)

// ExecuteSQLError marks a statement that executed but did not do what
// the caller required, typically an insert or update reporting zero
// affected rows. Breadcrumb is "<Component>-><operation>".
type ExecuteSQLError struct {
	Breadcrumb string
	Message    string
	Details    []string
}

func (e *ExecuteSQLError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Breadcrumb, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Breadcrumb, e.Message, strings.Join(e.Details, "; "))
}

func NewExecuteSQLError(breadcrumb, message string, details ...string) *ExecuteSQLError {
	return &ExecuteSQLError{Breadcrumb: breadcrumb, Message: message, Details: details}
}

// IsExecuteSQLError reports whether err is, or wraps, an ExecuteSQLError.
func IsExecuteSQLError(err error) bool {
	var target *ExecuteSQLError
	return errors.As(err, &target)
}
