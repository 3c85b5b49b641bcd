package models

// Union represents a marital/parental grouping of up to two Individuals using
// GORM. Either side may be absent, denoting a single-parent unit. It
// corresponds to the 'unions' table.
type Union struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceID  uint    `gorm:"not null;index" json:"source_id"`
	HusbandID *uint   `gorm:"index" json:"husband_id,omitempty"` // Nullable foreign key to individuals
	WifeID    *uint   `gorm:"index" json:"wife_id,omitempty"`    // Nullable foreign key to individuals
	Notes     *string `gorm:"" json:"notes,omitempty"`           // Nullable

	CreatedAt int64 `gorm:"not null" json:"created_at"` // Unix timestamp
	UpdatedAt int64 `gorm:"not null" json:"updated_at"` // Unix timestamp

	Husband *Individual `gorm:"foreignKey:HusbandID" json:"husband,omitempty"`
	Wife    *Individual `gorm:"foreignKey:WifeID" json:"wife,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Union) TableName() string {
	return "unions"
}

// HasBothParents reports whether both parent slots are filled.
func (u *Union) HasBothParents() bool {
	return u.HusbandID != nil && u.WifeID != nil
}

// References reports whether the union points at the given individual on
// either side.
func (u *Union) References(personID uint) bool {
	if u.HusbandID != nil && *u.HusbandID == personID {
		return true
	}
	return u.WifeID != nil && *u.WifeID == personID
}
