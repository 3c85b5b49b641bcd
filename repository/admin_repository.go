package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/averyholt/descentbackend/models"
)

// AdminRepository handles destructive maintenance operations
type AdminRepository struct {
	DB *gorm.DB
}

// NewAdminRepository creates a new instance of AdminRepository
func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{DB: db}
}

// PurgeAllData empties every table. There is no undo; the handler gates this
// behind the admin key.
func (r *AdminRepository) PurgeAllData() error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.ChildLink{},
			&models.Union{},
			&models.Individual{},
			&models.FlaggedLine{},
			&models.PageText{},
			&models.Source{},
		} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return fmt.Errorf("failed to purge table: %w", err)
			}
		}
		return nil
	})
}
