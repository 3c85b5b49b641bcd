package repository

import (
	"github.com/averyholt/descentbackend/models"
	"github.com/averyholt/descentbackend/resolver"
)

// SourceRepositoryInterface defines the methods for source data operations
type SourceRepositoryInterface interface {
	Create(source *models.Source) error
	GetByID(id uint) (*models.Source, error)
	GetByName(name string) (*models.Source, error)
	ListAll() ([]models.Source, error)
	Delete(id uint) error
	ReplacePages(sourceID uint, pages []models.PageText) error
	ListPages(sourceID uint) ([]models.PageText, error)
}

// IndividualRepositoryInterface defines the methods for individual data operations
type IndividualRepositoryInterface interface {
	GetByID(id uint) (*models.Individual, error)
	ListBySource(sourceID uint) ([]models.Individual, error)
	Search(filter IndividualFilter) ([]models.Individual, error)
	Update(id uint, updates IndividualUpdate) (*models.Individual, error)
	Delete(id uint) error
	FindDuplicates(sourceID uint) ([]resolver.DuplicateGroup, error)
	Merge(sourceID, survivorID uint, duplicateIDs []uint) (*models.Individual, error)
}

// UnionRepositoryInterface defines the methods for union data operations
type UnionRepositoryInterface interface {
	GetByID(id uint) (*models.Union, error)
	ListBySource(sourceID uint) ([]models.Union, error)
	ListChildren(unionID uint) ([]models.Individual, error)
	UpdateParents(unionID uint, husbandID, wifeID *uint, clearHusband, clearWife bool) (*models.Union, error)
	Reparent(personID, fromUnionID, toUnionID uint) error
}

// FlaggedLineRepositoryInterface defines the methods for flagged line operations
type FlaggedLineRepositoryInterface interface {
	GetByID(id uint) (*models.FlaggedLine, error)
	ListBySource(sourceID uint, includeResolved bool) ([]models.FlaggedLine, error)
	MarkResolved(id uint) error
	DeleteBySource(sourceID uint) error
}

// AdminRepositoryInterface defines destructive maintenance operations
type AdminRepositoryInterface interface {
	PurgeAllData() error
}
