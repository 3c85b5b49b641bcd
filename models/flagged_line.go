package models

// FlaggedLine records a chart line no pattern recognized. Flagged lines are
// surfaced verbatim to the caller and may later be re-offered to the fallback
// resolver. It corresponds to the 'flagged_lines' table.
type FlaggedLine struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceID  uint   `gorm:"not null;index" json:"source_id"`
	PageIndex int    `gorm:"not null" json:"page_index"`
	LineIndex int    `gorm:"not null" json:"line_index"`
	Text      string `gorm:"not null" json:"text"`
	Reason    string `gorm:"not null;default:'unrecognized'" json:"reason"`
	Resolved  bool   `gorm:"not null;default:false" json:"resolved"`

	CreatedAt int64 `gorm:"not null" json:"created_at"` // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (FlaggedLine) TableName() string {
	return "flagged_lines"
}
