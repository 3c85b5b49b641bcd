package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/averyholt/descentbackend/models"
)

// UnionRepository handles database operations for Union and ChildLink entities
type UnionRepository struct {
	DB *gorm.DB
}

// NewUnionRepository creates a new instance of UnionRepository
func NewUnionRepository(db *gorm.DB) *UnionRepository {
	return &UnionRepository{DB: db}
}

// GetByID retrieves a union by its ID, preloading both parents
func (r *UnionRepository) GetByID(id uint) (*models.Union, error) {
	var union models.Union
	err := r.DB.Preload("Husband").Preload("Wife").First(&union, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get union by ID %d: %w", id, err)
	}
	return &union, nil
}

// ListBySource retrieves all unions of a source with parents preloaded
func (r *UnionRepository) ListBySource(sourceID uint) ([]models.Union, error) {
	var unions []models.Union
	err := r.DB.Preload("Husband").Preload("Wife").
		Where("source_id = ?", sourceID).Order("id ASC").Find(&unions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unions for source %d: %w", sourceID, err)
	}
	return unions, nil
}

// ListChildren retrieves a union's children in sibling order
func (r *UnionRepository) ListChildren(unionID uint) ([]models.Individual, error) {
	var children []models.Individual
	err := r.DB.
		Joins("JOIN child_links ON child_links.person_id = individuals.id").
		Where("child_links.union_id = ?", unionID).
		Order("child_links.order_index ASC").
		Find(&children).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list children of union %d: %w", unionID, err)
	}
	return children, nil
}

// UpdateParents edits a union's parent slots. A non-nil ID sets the slot; the
// clear flags empty it; anything else is left alone.
func (r *UnionRepository) UpdateParents(unionID uint, husbandID, wifeID *uint, clearHusband, clearWife bool) (*models.Union, error) {
	var union models.Union
	if err := r.DB.First(&union, unionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load union %d for update: %w", unionID, err)
	}

	if clearHusband {
		union.HusbandID = nil
	} else if husbandID != nil {
		union.HusbandID = husbandID
	}
	if clearWife {
		union.WifeID = nil
	} else if wifeID != nil {
		union.WifeID = wifeID
	}
	union.UpdatedAt = time.Now().Unix()

	if err := r.DB.Save(&union).Error; err != nil {
		return nil, fmt.Errorf("failed to update union %d: %w", unionID, err)
	}
	return &union, nil
}

// Reparent moves a child from one union to another, taking the next sibling
// ordinal in the destination. Moving to the union it is already in is a no-op.
func (r *UnionRepository) Reparent(personID, fromUnionID, toUnionID uint) error {
	if fromUnionID == toUnionID {
		return nil
	}
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var link models.ChildLink
		err := tx.Where("union_id = ? AND person_id = ?", fromUnionID, personID).First(&link).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			return fmt.Errorf("failed to find child link for person %d in union %d: %w", personID, fromUnionID, err)
		}

		var count int64
		if err := tx.Model(&models.Union{}).Where("id = ?", toUnionID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check destination union %d: %w", toUnionID, err)
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Model(&models.ChildLink{}).
			Where("union_id = ? AND person_id = ?", toUnionID, personID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check destination membership: %w", err)
		}
		if count > 0 {
			// already a child there; just drop the old link
			return tx.Delete(&models.ChildLink{}, link.ID).Error
		}

		var maxOrder *int
		if err := tx.Model(&models.ChildLink{}).Where("union_id = ?", toUnionID).
			Select("MAX(order_index)").Scan(&maxOrder).Error; err != nil {
			return fmt.Errorf("failed to read sibling order for union %d: %w", toUnionID, err)
		}
		order := 0
		if maxOrder != nil {
			order = *maxOrder + 1
		}

		if err := tx.Model(&models.ChildLink{}).Where("id = ?", link.ID).Updates(map[string]interface{}{
			"union_id":    toUnionID,
			"order_index": order,
		}).Error; err != nil {
			return fmt.Errorf("failed to reparent person %d: %w", personID, err)
		}
		return nil
	})
}
