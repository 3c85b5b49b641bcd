package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/averyholt/descentbackend/models"
)

// FlaggedLineRepository handles database operations for FlaggedLine entities
type FlaggedLineRepository struct {
	DB *gorm.DB
}

// NewFlaggedLineRepository creates a new instance of FlaggedLineRepository
func NewFlaggedLineRepository(db *gorm.DB) *FlaggedLineRepository {
	return &FlaggedLineRepository{DB: db}
}

// GetByID retrieves a flagged line by its ID
func (r *FlaggedLineRepository) GetByID(id uint) (*models.FlaggedLine, error) {
	var line models.FlaggedLine
	err := r.DB.First(&line, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get flagged line by ID %d: %w", id, err)
	}
	return &line, nil
}

// ListBySource retrieves a source's flagged lines in document order
func (r *FlaggedLineRepository) ListBySource(sourceID uint, includeResolved bool) ([]models.FlaggedLine, error) {
	query := r.DB.Where("source_id = ?", sourceID)
	if !includeResolved {
		query = query.Where("resolved = ?", false)
	}

	var lines []models.FlaggedLine
	err := query.Order("page_index ASC, line_index ASC").Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list flagged lines for source %d: %w", sourceID, err)
	}
	return lines, nil
}

// MarkResolved marks a flagged line as handled
func (r *FlaggedLineRepository) MarkResolved(id uint) error {
	result := r.DB.Model(&models.FlaggedLine{}).Where("id = ?", id).Update("resolved", true)
	if result.Error != nil {
		return fmt.Errorf("failed to resolve flagged line %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteBySource removes all flagged lines of a source, ahead of a re-parse
func (r *FlaggedLineRepository) DeleteBySource(sourceID uint) error {
	err := r.DB.Where("source_id = ?", sourceID).Delete(&models.FlaggedLine{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete flagged lines for source %d: %w", sourceID, err)
	}
	return nil
}
