package submission

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// IllegalTransitionError is returned when a requested status does not
// follow from the submission's latest one.
type IllegalTransitionError struct {
	SubmissionID uint
	From         StatusType
	To           StatusType
}

func (e *IllegalTransitionError) Error() string {
	from := string(e.From)
	if from == "" {
		from = "(none)"
	}
	return fmt.Sprintf("illegal status transition for submission %d: %s -> %s", e.SubmissionID, from, e.To)
}

// transitions is the allowed-successor table. The empty StatusType key
// covers a submission with no status rows yet. REJECTED is reachable
// from every validation-capable state and terminal: a corrected
// resubmission creates a new submission row rather than un-rejecting
// the old one.
var transitions = map[StatusType][]StatusType{
	"":                           {StatusSubmitted},
	StatusSubmitted:              {StatusDarwinCoreValidated, StatusRejected},
	StatusDarwinCoreValidated:    {StatusSecured, StatusRejected},
	StatusSecured:                {StatusSubmissionDataIngested, StatusRejected},
	StatusSubmissionDataIngested: {StatusPublished},
	StatusRejected:               {},
	StatusPublished:              {},
}

// CanTransition reports whether next is a legal successor of current.
func CanTransition(current, next StatusType) bool {
	for _, allowed := range transitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// StateMachine owns every status/message append. Pipeline stages never
// insert status rows directly; they request a transition here, which
// re-reads the latest status inside the transaction so concurrent
// invocations against the same submission surface as a structured
// transition error instead of interleaved status rows.
type StateMachine struct {
	repo *Repository
}

func NewStateMachine(repo *Repository) *StateMachine {
	return &StateMachine{repo: repo}
}

// Transition validates legality against the submission's latest status
// and appends the new status plus any messages in one transaction. It
// returns the id of the inserted status row.
func (m *StateMachine) Transition(ctx context.Context, submissionID uint, next StatusType, messages ...Message) (uint, error) {
	var statusID uint

	err := m.repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := m.repo.WithTx(tx)

		var current StatusType
		latest, err := txRepo.GetLatestStatus(ctx, submissionID)
		if err != nil {
			return err
		}
		if latest != nil {
			current = latest.StatusType
		}

		if !CanTransition(current, next) {
			return &IllegalTransitionError{SubmissionID: submissionID, From: current, To: next}
		}

		statusID, err = txRepo.InsertSubmissionStatus(ctx, submissionID, next)
		if err != nil {
			return err
		}

		for _, msg := range messages {
			if err := txRepo.InsertSubmissionMessage(ctx, statusID, msg.Type, msg.Text); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return statusID, nil
}
