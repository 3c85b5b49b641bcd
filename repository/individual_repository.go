package repository

import (
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"github.com/averyholt/descentbackend/models"
	"github.com/averyholt/descentbackend/resolver"
)

// IndividualFilter narrows an individual search. Zero values mean "no filter".
type IndividualFilter struct {
	SourceID uint
	Gen      *int
	Query    string // matches name, given, or surname, case-insensitive
	Limit    uint64
	Offset   uint64
}

// IndividualUpdate carries a partial edit. Nil fields are left untouched; an
// empty string on a nullable field clears it.
type IndividualUpdate struct {
	Name        *string `json:"name,omitempty"`
	Given       *string `json:"given,omitempty"`
	Surname     *string `json:"surname,omitempty"`
	Title       *string `json:"title,omitempty"`
	Birth       *string `json:"birth,omitempty"`
	BirthApprox *bool   `json:"birth_approx,omitempty"`
	Death       *string `json:"death,omitempty"`
	DeathApprox *bool   `json:"death_approx,omitempty"`
	Sex         *string `json:"sex,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Gen         *int    `json:"gen,omitempty"`
}

// IndividualRepository handles database operations for Individual entities
type IndividualRepository struct {
	DB *gorm.DB
}

// NewIndividualRepository creates a new instance of IndividualRepository
func NewIndividualRepository(db *gorm.DB) *IndividualRepository {
	return &IndividualRepository{DB: db}
}

// GetByID retrieves an individual by its ID
func (r *IndividualRepository) GetByID(id uint) (*models.Individual, error) {
	var ind models.Individual
	err := r.DB.First(&ind, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get individual by ID %d: %w", id, err)
	}
	return &ind, nil
}

// ListBySource retrieves all individuals of a source in document order
func (r *IndividualRepository) ListBySource(sourceID uint) ([]models.Individual, error) {
	var inds []models.Individual
	err := r.DB.Where("source_id = ?", sourceID).
		Order("page_index ASC, line_index ASC, id ASC").Find(&inds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list individuals for source %d: %w", sourceID, err)
	}
	return inds, nil
}

// Search runs a dynamic filter over individuals. The statement is assembled
// with squirrel so optional predicates compose without string surgery.
func (r *IndividualRepository) Search(filter IndividualFilter) ([]models.Individual, error) {
	builder := sq.Select("*").From("individuals").
		OrderBy("page_index ASC", "line_index ASC", "id ASC")

	if filter.SourceID != 0 {
		builder = builder.Where(sq.Eq{"source_id": filter.SourceID})
	}
	if filter.Gen != nil {
		builder = builder.Where(sq.Eq{"gen": *filter.Gen})
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		builder = builder.Where(sq.Or{
			sq.Like{"name": like},
			sq.Like{"given": like},
			sq.Like{"surname": like},
		})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		builder = builder.Offset(filter.Offset)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build individual search: %w", err)
	}

	var inds []models.Individual
	if err := r.DB.Raw(query, args...).Scan(&inds).Error; err != nil {
		return nil, fmt.Errorf("failed to search individuals: %w", err)
	}
	return inds, nil
}

// Update applies a partial edit and marks the row manually edited so the next
// re-parse leaves the edit alone
func (r *IndividualRepository) Update(id uint, updates IndividualUpdate) (*models.Individual, error) {
	var ind models.Individual
	if err := r.DB.First(&ind, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load individual %d for update: %w", id, err)
	}

	if updates.Name != nil && *updates.Name != "" {
		ind.Name = *updates.Name
	}
	applyNullable(&ind.Given, updates.Given)
	applyNullable(&ind.Surname, updates.Surname)
	applyNullable(&ind.Title, updates.Title)
	applyNullable(&ind.Birth, updates.Birth)
	applyNullable(&ind.Death, updates.Death)
	applyNullable(&ind.Sex, updates.Sex)
	applyNullable(&ind.Notes, updates.Notes)
	if updates.BirthApprox != nil {
		ind.BirthApprox = *updates.BirthApprox
	}
	if updates.DeathApprox != nil {
		ind.DeathApprox = *updates.DeathApprox
	}
	if updates.Gen != nil && *updates.Gen > 0 {
		ind.Gen = *updates.Gen
	}
	ind.ManuallyEdited = true
	ind.UpdatedAt = time.Now().Unix()

	if err := r.DB.Save(&ind).Error; err != nil {
		return nil, fmt.Errorf("failed to update individual %d: %w", id, err)
	}
	return &ind, nil
}

func applyNullable(dst **string, src *string) {
	if src == nil {
		return
	}
	if *src == "" {
		*dst = nil
		return
	}
	v := *src
	*dst = &v
}

// Delete removes an individual and unlinks every reference to it: child links
// where it appears as a child, and union parent slots pointing at it. Unions
// left with no parents and no children are removed too.
func (r *IndividualRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("person_id = ?", id).Delete(&models.ChildLink{}).Error; err != nil {
			return fmt.Errorf("failed to unlink individual %d as child: %w", id, err)
		}

		var unions []models.Union
		if err := tx.Where("husband_id = ? OR wife_id = ?", id, id).Find(&unions).Error; err != nil {
			return fmt.Errorf("failed to find unions referencing individual %d: %w", id, err)
		}
		for i := range unions {
			u := &unions[i]
			if u.HusbandID != nil && *u.HusbandID == id {
				u.HusbandID = nil
			}
			if u.WifeID != nil && *u.WifeID == id {
				u.WifeID = nil
			}
			if u.HusbandID == nil && u.WifeID == nil {
				var children int64
				if err := tx.Model(&models.ChildLink{}).Where("union_id = ?", u.ID).Count(&children).Error; err != nil {
					return fmt.Errorf("failed to count children of union %d: %w", u.ID, err)
				}
				if children == 0 {
					if err := tx.Delete(&models.Union{}, u.ID).Error; err != nil {
						return fmt.Errorf("failed to delete empty union %d: %w", u.ID, err)
					}
					continue
				}
			}
			u.UpdatedAt = time.Now().Unix()
			if err := tx.Save(u).Error; err != nil {
				return fmt.Errorf("failed to detach individual %d from union %d: %w", id, u.ID, err)
			}
		}

		result := tx.Delete(&models.Individual{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete individual ID %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// FindDuplicates groups probable duplicate individuals within one source
func (r *IndividualRepository) FindDuplicates(sourceID uint) ([]resolver.DuplicateGroup, error) {
	inds, err := r.ListBySource(sourceID)
	if err != nil {
		return nil, err
	}
	refs := make([]*models.Individual, len(inds))
	for i := range inds {
		refs[i] = &inds[i]
	}
	return resolver.GroupDuplicates(refs), nil
}

// Merge folds the duplicate individuals into the survivor in one transaction:
// child links and union parent slots are rewritten to the survivor, unions
// that become identical pairings are collapsed, empty survivor fields are
// backfilled from the duplicates, and the duplicates are deleted.
func (r *IndividualRepository) Merge(sourceID, survivorID uint, duplicateIDs []uint) (*models.Individual, error) {
	var survivor models.Individual

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND source_id = ?", survivorID, sourceID).First(&survivor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			return fmt.Errorf("failed to load survivor %d: %w", survivorID, err)
		}

		for _, dupID := range duplicateIDs {
			if dupID == survivorID {
				continue
			}
			var dup models.Individual
			if err := tx.Where("id = ? AND source_id = ?", dupID, sourceID).First(&dup).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("duplicate %d: %w", dupID, err)
				}
				return fmt.Errorf("failed to load duplicate %d: %w", dupID, err)
			}

			if err := reassignChildLinks(tx, dupID, survivorID); err != nil {
				return err
			}
			if err := rewriteUnionParents(tx, dupID, survivorID); err != nil {
				return err
			}
			backfill(&survivor, &dup)

			if err := tx.Delete(&models.Individual{}, dupID).Error; err != nil {
				return fmt.Errorf("failed to delete merged duplicate %d: %w", dupID, err)
			}
		}

		if err := collapseIdenticalUnions(tx, sourceID); err != nil {
			return err
		}

		survivor.UpdatedAt = time.Now().Unix()
		if err := tx.Save(&survivor).Error; err != nil {
			return fmt.Errorf("failed to save merge survivor %d: %w", survivorID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &survivor, nil
}

// reassignChildLinks moves the duplicate's child memberships to the survivor,
// dropping links that would duplicate an existing (union, person) pair.
func reassignChildLinks(tx *gorm.DB, dupID, survivorID uint) error {
	var links []models.ChildLink
	if err := tx.Where("person_id = ?", dupID).Find(&links).Error; err != nil {
		return fmt.Errorf("failed to list child links of duplicate %d: %w", dupID, err)
	}
	for _, link := range links {
		var count int64
		if err := tx.Model(&models.ChildLink{}).
			Where("union_id = ? AND person_id = ?", link.UnionID, survivorID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check child link collision: %w", err)
		}
		if count > 0 {
			if err := tx.Delete(&models.ChildLink{}, link.ID).Error; err != nil {
				return fmt.Errorf("failed to drop redundant child link %d: %w", link.ID, err)
			}
			continue
		}
		if err := tx.Model(&models.ChildLink{}).Where("id = ?", link.ID).
			Update("person_id", survivorID).Error; err != nil {
			return fmt.Errorf("failed to reassign child link %d: %w", link.ID, err)
		}
	}
	return nil
}

func rewriteUnionParents(tx *gorm.DB, dupID, survivorID uint) error {
	if err := tx.Model(&models.Union{}).Where("husband_id = ?", dupID).
		Update("husband_id", survivorID).Error; err != nil {
		return fmt.Errorf("failed to rewrite husband refs of %d: %w", dupID, err)
	}
	if err := tx.Model(&models.Union{}).Where("wife_id = ?", dupID).
		Update("wife_id", survivorID).Error; err != nil {
		return fmt.Errorf("failed to rewrite wife refs of %d: %w", dupID, err)
	}
	return nil
}

// collapseIdenticalUnions folds unions that hold the same (husband, wife)
// pairing after a merge, keeping the lowest ID and moving its children over.
func collapseIdenticalUnions(tx *gorm.DB, sourceID uint) error {
	var unions []models.Union
	if err := tx.Where("source_id = ?", sourceID).Order("id ASC").Find(&unions).Error; err != nil {
		return fmt.Errorf("failed to list unions for collapse: %w", err)
	}

	type pair struct{ h, w uint }
	seen := make(map[pair]uint)
	for _, u := range unions {
		if u.HusbandID == nil || u.WifeID == nil {
			continue
		}
		key := pair{*u.HusbandID, *u.WifeID}
		keeperID, ok := seen[key]
		if !ok {
			seen[key] = u.ID
			continue
		}

		var links []models.ChildLink
		if err := tx.Where("union_id = ?", u.ID).Find(&links).Error; err != nil {
			return fmt.Errorf("failed to list children of union %d: %w", u.ID, err)
		}
		for _, link := range links {
			var count int64
			if err := tx.Model(&models.ChildLink{}).
				Where("union_id = ? AND person_id = ?", keeperID, link.PersonID).
				Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check child link collision: %w", err)
			}
			if count > 0 {
				if err := tx.Delete(&models.ChildLink{}, link.ID).Error; err != nil {
					return fmt.Errorf("failed to drop redundant child link %d: %w", link.ID, err)
				}
				continue
			}
			if err := tx.Model(&models.ChildLink{}).Where("id = ?", link.ID).
				Update("union_id", keeperID).Error; err != nil {
				return fmt.Errorf("failed to move child link %d: %w", link.ID, err)
			}
		}
		if err := tx.Delete(&models.Union{}, u.ID).Error; err != nil {
			return fmt.Errorf("failed to delete collapsed union %d: %w", u.ID, err)
		}
	}
	return nil
}

// backfill copies fields the survivor is missing from a merged duplicate.
func backfill(survivor, dup *models.Individual) {
	fill := func(dst **string, src *string) {
		if *dst == nil && src != nil && *src != "" {
			v := *src
			*dst = &v
		}
	}
	fill(&survivor.Given, dup.Given)
	fill(&survivor.Surname, dup.Surname)
	fill(&survivor.Title, dup.Title)
	fill(&survivor.Sex, dup.Sex)
	fill(&survivor.Notes, dup.Notes)
	if survivor.Birth == nil && dup.Birth != nil {
		v := *dup.Birth
		survivor.Birth = &v
		survivor.BirthApprox = dup.BirthApprox
	}
	if survivor.Death == nil && dup.Death != nil {
		v := *dup.Death
		survivor.Death = &v
		survivor.DeathApprox = dup.DeathApprox
	}
}
