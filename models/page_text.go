package models

// PageText holds the OCR text of a single chart page. Pages are unique per
// (source, page_index) so a partial re-parse of newly added pages can leave
// earlier pages untouched.
type PageText struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceID  uint   `gorm:"not null;uniqueIndex:idx_source_page" json:"source_id"`
	PageIndex int    `gorm:"not null;uniqueIndex:idx_source_page" json:"page_index"`
	Text      string `gorm:"not null" json:"text"`

	// Confidences is an optional JSON array of per-line OCR confidence scores
	// (0..1), parallel to the lines of Text.
	Confidences *string `gorm:"" json:"confidences,omitempty"` // Nullable

	CreatedAt int64 `gorm:"not null" json:"created_at"` // Unix timestamp
	UpdatedAt int64 `gorm:"not null" json:"updated_at"` // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (PageText) TableName() string {
	return "page_texts"
}
