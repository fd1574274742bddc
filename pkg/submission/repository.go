package submission

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/biohubbc/biohub-platform/pkg/common/errors"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Submission{}, &SubmissionStatus{}, &SubmissionMessage{}, &Artifact{})
}

// DB exposes the underlying handle so callers can scope repository
// work inside a request transaction.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// WithTx returns a repository bound to the given transaction handle.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// InsertSubmissionRecord creates a new submission row.
func (r *Repository) InsertSubmissionRecord(ctx context.Context, sub *Submission) error {
	now := time.Now().UTC()
	sub.CreatedAt = now
	if sub.EventTimestamp.IsZero() {
		sub.EventTimestamp = now
	}

	result := r.db.WithContext(ctx).Create(sub)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NewExecuteSQLError("SubmissionRepository->insertSubmissionRecord",
			"Failed to insert submission record", "rows affected was 0, expected 1")
	}
	return nil
}

// InsertSubmissionRecordWithPotentialConflict creates a new submission
// row for a UUID that may already have a current version. Any existing
// current row for the UUID is retired (end timestamp set) in the same
// transaction, preserving the single-current-version invariant.
func (r *Repository) InsertSubmissionRecordWithPotentialConflict(ctx context.Context, sub *Submission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		retire := tx.Model(&Submission{}).
			Where("uuid = ? AND end_timestamp IS NULL", sub.UUID).
			Update("end_timestamp", now)
		if retire.Error != nil {
			return retire.Error
		}

		sub.CreatedAt = now
		if sub.EventTimestamp.IsZero() {
			sub.EventTimestamp = now
		}

		result := tx.Create(sub)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.NewExecuteSQLError("SubmissionRepository->insertSubmissionRecordWithPotentialConflict",
				"Failed to insert submission record", "rows affected was 0, expected 1")
		}
		return nil
	})
}

// UpdateSubmissionRecordInputKey attaches the object storage key once
// the binary payload has been persisted. The row is created before the
// bytes are necessarily durable; the key is attached only after the
// upload succeeds.
func (r *Repository) UpdateSubmissionRecordInputKey(ctx context.Context, submissionID uint, key string) error {
	result := r.db.WithContext(ctx).Model(&Submission{}).
		Where("submission_id = ?", submissionID).
		Update("input_key", key)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NewExecuteSQLError("SubmissionRepository->updateSubmissionRecordInputKey",
			"Failed to update submission record key", "rows affected was 0, expected 1")
	}
	return nil
}

// UpdateSubmissionRecordEMLSource stores the raw EML text scraped from
// the archive.
func (r *Repository) UpdateSubmissionRecordEMLSource(ctx context.Context, submissionID uint, emlSource string) error {
	result := r.db.WithContext(ctx).Model(&Submission{}).
		Where("submission_id = ?", submissionID).
		Update("eml_source", emlSource)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NewExecuteSQLError("SubmissionRepository->updateSubmissionRecordEMLSource",
			"Failed to update submission record eml source", "rows affected was 0, expected 1")
	}
	return nil
}

// UpdateSubmissionRecordNormalizedSource stores the normalized JSON
// representation of the submission.
func (r *Repository) UpdateSubmissionRecordNormalizedSource(ctx context.Context, submissionID uint, normalized []byte) error {
	result := r.db.WithContext(ctx).Model(&Submission{}).
		Where("submission_id = ?", submissionID).
		Update("normalized_source", normalized)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NewExecuteSQLError("SubmissionRepository->updateSubmissionRecordNormalizedSource",
			"Failed to update submission record normalized source", "rows affected was 0, expected 1")
	}
	return nil
}

// GetSubmissionRecordBySubmissionID fetches a submission row by its
// internal id.
func (r *Repository) GetSubmissionRecordBySubmissionID(ctx context.Context, submissionID uint) (*Submission, error) {
	var sub Submission
	result := r.db.WithContext(ctx).First(&sub, "submission_id = ?", submissionID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrSubmissionNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &sub, nil
}

// GetCurrentSubmissionByUUID fetches the single non-retired row for a
// package UUID.
func (r *Repository) GetCurrentSubmissionByUUID(ctx context.Context, uuid string) (*Submission, error) {
	var sub Submission
	result := r.db.WithContext(ctx).
		Where("uuid = ? AND end_timestamp IS NULL", uuid).
		First(&sub)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrSubmissionNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &sub, nil
}

// ListSubmissionsByUUID returns every version of a package, newest last.
func (r *Repository) ListSubmissionsByUUID(ctx context.Context, uuid string) ([]Submission, error) {
	var subs []Submission
	err := r.db.WithContext(ctx).
		Where("uuid = ?", uuid).
		Order("submission_id ASC").
		Find(&subs).Error
	return subs, err
}

// InsertSubmissionStatus appends one status row and returns its id.
func (r *Repository) InsertSubmissionStatus(ctx context.Context, submissionID uint, statusType StatusType) (uint, error) {
	status := SubmissionStatus{
		SubmissionID: submissionID,
		StatusType:   statusType,
		CreatedAt:    time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).Create(&status)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, apperrors.NewExecuteSQLError("SubmissionRepository->insertSubmissionStatus",
			"Failed to insert submission status", "rows affected was 0, expected 1")
	}
	return status.ID, nil
}

// InsertSubmissionMessage appends one message row tied to a status event.
func (r *Repository) InsertSubmissionMessage(ctx context.Context, statusID uint, messageType MessageType, message string) error {
	msg := SubmissionMessage{
		SubmissionStatusID: statusID,
		MessageType:        messageType,
		Message:            message,
		CreatedAt:          time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).Create(&msg)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NewExecuteSQLError("SubmissionRepository->insertSubmissionMessage",
			"Failed to insert submission message", "rows affected was 0, expected 1")
	}
	return nil
}

// GetLatestStatus returns the most recent status row for a submission,
// or nil when none has been recorded yet.
func (r *Repository) GetLatestStatus(ctx context.Context, submissionID uint) (*SubmissionStatus, error) {
	var status SubmissionStatus
	result := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("submission_status_id DESC").
		First(&status)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &status, nil
}

// ListStatusHistory returns every status row for a submission in
// insertion order.
func (r *Repository) ListStatusHistory(ctx context.Context, submissionID uint) ([]SubmissionStatus, error) {
	var statuses []SubmissionStatus
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("submission_status_id ASC").
		Find(&statuses).Error
	return statuses, err
}

// ListMessages returns the messages attached to a status event.
func (r *Repository) ListMessages(ctx context.Context, statusID uint) ([]SubmissionMessage, error) {
	var msgs []SubmissionMessage
	err := r.db.WithContext(ctx).
		Where("submission_status_id = ?", statusID).
		Order("submission_message_id ASC").
		Find(&msgs).Error
	return msgs, err
}

// GetSubmissionJobQueue returns current submissions whose most recent
// status still has an ingestion step pending. Downstream endpoints
// poll this instead of a push-based scheduler.
func (r *Repository) GetSubmissionJobQueue(ctx context.Context) ([]Submission, error) {
	var subs []Submission
	err := r.db.WithContext(ctx).Raw(`
		SELECT s.* FROM submission s
		JOIN submission_status ss ON ss.submission_id = s.submission_id
		WHERE s.end_timestamp IS NULL
		  AND ss.submission_status_id = (
			SELECT MAX(inner_ss.submission_status_id)
			FROM submission_status inner_ss
			WHERE inner_ss.submission_id = s.submission_id
		  )
		  AND ss.status_type IN (?, ?, ?)
		ORDER BY s.submission_id ASC`,
		StatusSubmitted, StatusDarwinCoreValidated, StatusSecured,
	).Scan(&subs).Error
	return subs, err
}

// InsertArtifactRecord creates an artifact row tied to a submission.
func (r *Repository) InsertArtifactRecord(ctx context.Context, artifact *Artifact) error {
	artifact.CreatedAt = time.Now().UTC()
	result := r.db.WithContext(ctx).Create(artifact)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NewExecuteSQLError("SubmissionRepository->insertArtifactRecord",
			"Failed to insert artifact record", "rows affected was 0, expected 1")
	}
	return nil
}

// UpdateArtifactSecureFlag records the security classification outcome
// for an artifact.
func (r *Repository) UpdateArtifactSecureFlag(ctx context.Context, artifactID uint, secure bool) error {
	result := r.db.WithContext(ctx).Model(&Artifact{}).
		Where("artifact_id = ?", artifactID).
		Update("secure", secure)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NewExecuteSQLError("SubmissionRepository->updateArtifactSecureFlag",
			"Failed to update artifact secure flag", "rows affected was 0, expected 1")
	}
	return nil
}

// ListArtifactsBySubmissionID returns the artifacts tied to a submission.
func (r *Repository) ListArtifactsBySubmissionID(ctx context.Context, submissionID uint) ([]Artifact, error) {
	var artifacts []Artifact
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("artifact_id ASC").
		Find(&artifacts).Error
	return artifacts, err
}
