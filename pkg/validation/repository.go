package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrStyleSchemaNotFound = errors.New("style schema not found")

// StyleSchema is the reference-table row holding one schema
// definition. Validation rules are fetched from here at runtime, never
// hardcoded.
type StyleSchema struct {
	ID         uint           `json:"style_schema_id" gorm:"primaryKey;column:style_schema_id"`
	Name       string         `json:"name" gorm:"column:name"`
	Version    string         `json:"version" gorm:"column:version"`
	Definition datatypes.JSON `json:"definition" gorm:"column:definition"`
	CreatedAt  time.Time      `json:"created_at" gorm:"column:created_at"`
}

func (StyleSchema) TableName() string {
	return "style_schema"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&StyleSchema{})
}

// GetDefinition fetches and decodes the schema definition for a style id.
func (r *Repository) GetDefinition(ctx context.Context, styleID uint) (*SchemaDefinition, error) {
	var row StyleSchema
	result := r.db.WithContext(ctx).First(&row, "style_schema_id = ?", styleID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrStyleSchemaNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	var def SchemaDefinition
	if err := json.Unmarshal(row.Definition, &def); err != nil {
		return nil, fmt.Errorf("decoding style schema %d: %w", styleID, err)
	}
	return &def, nil
}

// EnsureSeedDefinition inserts the definition only when the reference
// table is empty, so deployments start with a usable schema without
// clobbering operator-managed rows.
func (r *Repository) EnsureSeedDefinition(ctx context.Context, version string, def *SchemaDefinition) (uint, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&StyleSchema{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		var row StyleSchema
		if err := r.db.WithContext(ctx).Order("style_schema_id").First(&row).Error; err != nil {
			return 0, err
		}
		return row.ID, nil
	}
	return r.SaveDefinition(ctx, version, def)
}

// SaveDefinition stores a definition as a new reference row and
// returns its id. Used by seeding and by schema management tooling.
func (r *Repository) SaveDefinition(ctx context.Context, version string, def *SchemaDefinition) (uint, error) {
	encoded, err := json.Marshal(def)
	if err != nil {
		return 0, fmt.Errorf("encoding schema definition: %w", err)
	}

	row := StyleSchema{
		Name:       def.Name,
		Version:    version,
		Definition: encoded,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}
