package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/averyholt/descentbackend/models"
)

// SourceRepository handles database operations for Source and PageText entities
type SourceRepository struct {
	DB *gorm.DB
}

// NewSourceRepository creates a new instance of SourceRepository
func NewSourceRepository(db *gorm.DB) *SourceRepository {
	return &SourceRepository{DB: db}
}

// Create creates a new source record in the database
func (r *SourceRepository) Create(source *models.Source) error {
	now := time.Now().Unix()
	if source.CreatedAt == 0 {
		source.CreatedAt = now
	}
	if source.UpdatedAt == 0 {
		source.UpdatedAt = now
	}

	err := r.DB.Create(source).Error
	if err != nil {
		return fmt.Errorf("failed to create source %s: %w", source.Name, err)
	}
	return nil
}

// GetByID retrieves a source by its ID
func (r *SourceRepository) GetByID(id uint) (*models.Source, error) {
	var source models.Source
	err := r.DB.First(&source, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get source by ID %d: %w", id, err)
	}
	return &source, nil
}

// GetByName retrieves a source by its unique name
func (r *SourceRepository) GetByName(name string) (*models.Source, error) {
	var source models.Source
	err := r.DB.Where("name = ?", name).First(&source).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get source by name %s: %w", name, err)
	}
	return &source, nil
}

// ListAll retrieves all sources, ordered by name
func (r *SourceRepository) ListAll() ([]models.Source, error) {
	var sources []models.Source
	err := r.DB.Order("name ASC").Find(&sources).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}

// Delete removes a source and everything parsed from it
func (r *SourceRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var unionIDs []uint
		if err := tx.Model(&models.Union{}).Where("source_id = ?", id).Pluck("id", &unionIDs).Error; err != nil {
			return fmt.Errorf("failed to collect unions for source %d: %w", id, err)
		}
		if len(unionIDs) > 0 {
			if err := tx.Where("union_id IN ?", unionIDs).Delete(&models.ChildLink{}).Error; err != nil {
				return fmt.Errorf("failed to delete child links for source %d: %w", id, err)
			}
		}
		for _, model := range []interface{}{&models.Union{}, &models.Individual{}, &models.FlaggedLine{}, &models.PageText{}} {
			if err := tx.Where("source_id = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to delete records for source %d: %w", id, err)
			}
		}

		result := tx.Delete(&models.Source{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete source ID %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ReplacePages swaps the stored OCR text of a source for the given pages and
// refreshes the source's page count
func (r *SourceRepository) ReplacePages(sourceID uint, pages []models.PageText) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_id = ?", sourceID).Delete(&models.PageText{}).Error; err != nil {
			return fmt.Errorf("failed to clear pages for source %d: %w", sourceID, err)
		}

		now := time.Now().Unix()
		for i := range pages {
			pages[i].ID = 0
			pages[i].SourceID = sourceID
			pages[i].CreatedAt = now
			pages[i].UpdatedAt = now
		}
		if len(pages) > 0 {
			if err := tx.Create(&pages).Error; err != nil {
				return fmt.Errorf("failed to store pages for source %d: %w", sourceID, err)
			}
		}

		result := tx.Model(&models.Source{}).Where("id = ?", sourceID).Updates(map[string]interface{}{
			"pages":      len(pages),
			"updated_at": now,
		})
		if result.Error != nil {
			return fmt.Errorf("failed to update page count for source %d: %w", sourceID, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ListPages retrieves the stored OCR pages of a source in page order
func (r *SourceRepository) ListPages(sourceID uint) ([]models.PageText, error) {
	var pages []models.PageText
	err := r.DB.Where("source_id = ?", sourceID).Order("page_index ASC").Find(&pages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pages for source %d: %w", sourceID, err)
	}
	return pages, nil
}
