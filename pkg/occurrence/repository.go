package occurrence

import (
	"context"
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
	return r.db.AutoMigrate(&Occurrence{})
}

// InsertOccurrence persists one scraped row. An insert affecting zero
// rows is a hard failure for that occurrence.
func (r *Repository) InsertOccurrence(ctx context.Context, occ *Occurrence) error {
	occ.CreatedAt = time.Now().UTC()
	result := r.db.WithContext(ctx).Create(occ)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NewExecuteSQLError("OccurrenceRepository->insertOccurrence",
			"Failed to insert occurrence record", "rows affected was 0, expected 1")
	}
	return nil
}

// ListOccurrencesBySubmissionID returns every occurrence scraped for a
// submission, in insertion order.
func (r *Repository) ListOccurrencesBySubmissionID(ctx context.Context, submissionID uint) ([]Occurrence, error) {
	var occurrences []Occurrence
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("occurrence_id ASC").
		Find(&occurrences).Error
	return occurrences, err
}
