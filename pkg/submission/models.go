package submission

import (
	"time"

	"gorm.io/datatypes"
)

// StatusType enumerates the submission lifecycle states. Progression
// is SUBMITTED -> {DARWIN_CORE_VALIDATED | REJECTED} -> {SECURED |
// REJECTED} -> SUBMISSION_DATA_INGESTED -> PUBLISHED.
type StatusType string

const (
	StatusSubmitted               StatusType = "SUBMITTED"
	StatusDarwinCoreValidated     StatusType = "DARWIN_CORE_VALIDATED"
	StatusRejected                StatusType = "REJECTED"
	StatusSecured                 StatusType = "SECURED"
	StatusSubmissionDataIngested  StatusType = "SUBMISSION_DATA_INGESTED"
	StatusPublished               StatusType = "PUBLISHED"
)

// MessageType classifies the free-text detail attached to a status event.
type MessageType string

const (
	MessageInvalidValue  MessageType = "INVALID_VALUE"
	MessageMiscellaneous MessageType = "MISCELLANEOUS"
	MessageNotice        MessageType = "NOTICE"
	MessageError         MessageType = "ERROR"
)

// Submission is one version of a logical data package. The UUID is
// stable across resubmissions; at most one row per UUID has a null
// EndTimestamp and that row is the current version. Superseded rows
// are retired by setting EndTimestamp, never mutated or deleted.
type Submission struct {
	ID               uint           `json:"submission_id" gorm:"primaryKey;column:submission_id"`
	UUID             string         `json:"uuid" gorm:"column:uuid;index"`
	Source           string         `json:"source" gorm:"column:source"`
	InputFileName    *string        `json:"input_file_name,omitempty" gorm:"column:input_file_name"`
	InputKey         *string        `json:"input_key,omitempty" gorm:"column:input_key"`
	EMLSource        *string        `json:"eml_source,omitempty" gorm:"column:eml_source"`
	NormalizedSource datatypes.JSON `json:"normalized_source,omitempty" gorm:"column:normalized_source"`
	EventTimestamp   time.Time      `json:"event_timestamp" gorm:"column:event_timestamp"`
	EndTimestamp     *time.Time     `json:"end_timestamp,omitempty" gorm:"column:end_timestamp"`
	CreatedAt        time.Time      `json:"created_at" gorm:"column:created_at"`
}

func (Submission) TableName() string {
	return "submission"
}

// SubmissionStatus is one row of the append-only status log. The
// current state of a submission is its most recent row.
type SubmissionStatus struct {
	ID           uint       `json:"submission_status_id" gorm:"primaryKey;column:submission_status_id"`
	SubmissionID uint       `json:"submission_id" gorm:"column:submission_id;index"`
	StatusType   StatusType `json:"status_type" gorm:"column:status_type"`
	CreatedAt    time.Time  `json:"created_at" gorm:"column:created_at"`
}

func (SubmissionStatus) TableName() string {
	return "submission_status"
}

// SubmissionMessage attaches explanatory detail to a specific status
// event, preserving causality between a transition and why it happened.
type SubmissionMessage struct {
	ID                 uint        `json:"submission_message_id" gorm:"primaryKey;column:submission_message_id"`
	SubmissionStatusID uint        `json:"submission_status_id" gorm:"column:submission_status_id;index"`
	MessageType        MessageType `json:"message_type" gorm:"column:message_type"`
	Message            string      `json:"message" gorm:"column:message"`
	CreatedAt          time.Time   `json:"created_at" gorm:"column:created_at"`
}

func (SubmissionMessage) TableName() string {
	return "submission_message"
}

// Artifact is a stored file (report, media) tied to a submission with
// its own durable UUID and storage key. Its lifecycle is independent
// of the DwCA ingestion flow but it participates in the same
// submission-scoped security classification.
type Artifact struct {
	ID           uint      `json:"artifact_id" gorm:"primaryKey;column:artifact_id"`
	SubmissionID uint      `json:"submission_id" gorm:"column:submission_id;index"`
	UUID         string    `json:"uuid" gorm:"column:uuid"`
	Key          string    `json:"key" gorm:"column:key"`
	FileName     string    `json:"file_name" gorm:"column:file_name"`
	FileType     string    `json:"file_type" gorm:"column:file_type"`
	Secure       *bool     `json:"secure,omitempty" gorm:"column:secure"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Artifact) TableName() string {
	return "artifact"
}

// Message is the input form of a SubmissionMessage, attached during a
// state transition.
type Message struct {
	Type MessageType
	Text string
}
