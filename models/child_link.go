package models

// ChildLink ties one Individual to one Union as a descendant. A given
// (union_id, person_id) pair appears at most once; OrderIndex preserves
// document order among siblings. It corresponds to the 'child_links' table.
type ChildLink struct {
	ID         uint `gorm:"primaryKey;autoIncrement" json:"id"`
	UnionID    uint `gorm:"not null;uniqueIndex:idx_union_person" json:"union_id"`
	PersonID   uint `gorm:"not null;uniqueIndex:idx_union_person" json:"person_id"`
	OrderIndex int  `gorm:"not null;default:0" json:"order_index"`
}

// TableName explicitly sets the table name for GORM.
func (ChildLink) TableName() string {
	return "child_links"
}
