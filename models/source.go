package models

// Source represents one uploaded descendancy chart in the database using GORM.
// It corresponds to the 'sources' table.
type Source struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string  `gorm:"not null;unique" json:"name"`
	Path      *string `gorm:"" json:"path,omitempty"` // Nullable, original upload location if known
	Pages     int     `gorm:"not null;default:0" json:"pages"`
	CreatedAt int64   `gorm:"not null" json:"created_at"` // Stored as INTEGER in SQLite, Unix timestamp
	UpdatedAt int64   `gorm:"not null" json:"updated_at"` // Stored as INTEGER in SQLite, Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (Source) TableName() string {
	return "sources"
}
