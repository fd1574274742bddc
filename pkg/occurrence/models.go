package occurrence

import "time"

// Occurrence is one scraped observation row. Rows are created only by
// the scraper and never updated in place; a resubmission produces new
// rows tied to the new submission id.
type Occurrence struct {
	ID                   uint     `json:"occurrence_id" gorm:"primaryKey;column:occurrence_id"`
	SubmissionID         uint     `json:"submission_id" gorm:"column:submission_id;index"`
	TaxonID              string   `json:"taxon_id" gorm:"column:taxon_id"`
	LifeStage            string   `json:"life_stage" gorm:"column:life_stage"`
	Sex                  string   `json:"sex" gorm:"column:sex"`
	EventDate            string   `json:"event_date" gorm:"column:event_date"`
	VernacularName       string   `json:"vernacular_name" gorm:"column:vernacular_name"`
	IndividualCount      string   `json:"individual_count" gorm:"column:individual_count"`
	OrganismQuantity     string   `json:"organism_quantity" gorm:"column:organism_quantity"`
	OrganismQuantityType string   `json:"organism_quantity_type" gorm:"column:organism_quantity_type"`
	Latitude             *float64 `json:"latitude,omitempty" gorm:"column:latitude"`
	Longitude            *float64 `json:"longitude,omitempty" gorm:"column:longitude"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Occurrence) TableName() string {
	return "occurrence"
}
