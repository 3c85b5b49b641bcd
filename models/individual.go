package models

// Individual represents a person extracted from a descendancy chart using GORM.
// It corresponds to the 'individuals' table.
type Individual struct {
	ID  uint `gorm:"primaryKey;autoIncrement" json:"id"`
	Gen int  `gorm:"not null;index" json:"gen"` // generation depth, 1 = root ancestor

	Name    string  `gorm:"not null" json:"name"`
	Given   *string `gorm:"" json:"given,omitempty"`   // Nullable
	Surname *string `gorm:"" json:"surname,omitempty"` // Nullable
	Title   *string `gorm:"" json:"title,omitempty"`   // Nullable, e.g. "Capt.", "Rev."

	Birth       *string `gorm:"" json:"birth,omitempty"` // Nullable, raw year text
	BirthApprox bool    `gorm:"not null;default:false" json:"birth_approx"`
	Death       *string `gorm:"" json:"death,omitempty"` // Nullable
	DeathApprox bool    `gorm:"not null;default:false" json:"death_approx"`

	Sex   *string `gorm:"" json:"sex,omitempty"`   // Nullable, "M" or "F"
	Notes *string `gorm:"" json:"notes,omitempty"` // Nullable, holds chart ID suffixes and inline notes

	SourceID  uint `gorm:"not null;uniqueIndex:idx_source_content_key" json:"source_id"`
	PageIndex int  `gorm:"not null" json:"page_index"`
	LineIndex int  `gorm:"not null" json:"line_index"`

	// ContentKey is a sha1 over (source id, page index, line index, raw line
	// text); re-ingesting an unchanged line resolves to the same row.
	ContentKey string `gorm:"not null;uniqueIndex:idx_source_content_key" json:"content_key"`

	// ManuallyEdited guards downstream edits: a re-parse refreshes parsed
	// fields only while this is false, unless explicitly forced.
	ManuallyEdited bool `gorm:"not null;default:false" json:"manually_edited"`

	CreatedAt int64 `gorm:"not null" json:"created_at"` // Unix timestamp
	UpdatedAt int64 `gorm:"not null" json:"updated_at"` // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (Individual) TableName() string {
	return "individuals"
}

// PopulatedFieldCount counts the optional fields that carry data. The entity
// resolver uses it to pick a merge survivor.
func (i *Individual) PopulatedFieldCount() int {
	count := 0
	for _, p := range []*string{i.Given, i.Surname, i.Title, i.Birth, i.Death, i.Sex, i.Notes} {
		if p != nil && *p != "" {
			count++
		}
	}
	return count
}
