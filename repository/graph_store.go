package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/averyholt/descentbackend/models"
	"github.com/averyholt/descentbackend/parser"
)

// GraphStore implements parser.GraphStore against the sqlite database. Every
// method is a single small transaction; the parse worker serializes parses
// per source, so no two builders write the same source concurrently.
type GraphStore struct {
	DB *gorm.DB
}

// NewGraphStore creates a new instance of GraphStore
func NewGraphStore(db *gorm.DB) *GraphStore {
	return &GraphStore{DB: db}
}

// UpsertIndividual resolves the draft's content key to an existing row or
// creates a new one. Manually edited rows keep their fields unless force is set.
func (s *GraphStore) UpsertIndividual(ctx context.Context, draft parser.IndividualDraft, force bool) (*models.Individual, bool, error) {
	db := s.DB.WithContext(ctx)
	now := time.Now().Unix()

	var existing models.Individual
	err := db.Where("source_id = ? AND content_key = ?", draft.SourceID, draft.ContentKey).First(&existing).Error
	if err == nil {
		if existing.ManuallyEdited && !force {
			return &existing, false, nil
		}
		applyDraft(&existing, draft, now)
		if force {
			existing.ManuallyEdited = false
		}
		if err := db.Save(&existing).Error; err != nil {
			return nil, false, fmt.Errorf("failed to refresh individual %q: %w", draft.Name, err)
		}
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up content key: %w", err)
	}

	ind := models.Individual{
		SourceID:   draft.SourceID,
		ContentKey: draft.ContentKey,
		CreatedAt:  now,
	}
	applyDraft(&ind, draft, now)
	if err := db.Create(&ind).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create individual %q: %w", draft.Name, err)
	}
	return &ind, true, nil
}

func applyDraft(ind *models.Individual, draft parser.IndividualDraft, now int64) {
	ind.Gen = draft.Gen
	ind.Name = draft.Name
	ind.Given = draft.Given
	ind.Surname = draft.Surname
	ind.Title = draft.Title
	ind.Birth = draft.Birth
	ind.BirthApprox = draft.BirthApprox
	ind.Death = draft.Death
	ind.DeathApprox = draft.DeathApprox
	ind.Notes = draft.Notes
	ind.PageIndex = draft.PageIndex
	ind.LineIndex = draft.LineIndex
	ind.UpdatedAt = now
}

// EnsureSingleParentUnion finds or creates the union holding exactly this
// parent on the given slot with the other side absent.
func (s *GraphStore) EnsureSingleParentUnion(ctx context.Context, sourceID, parentID uint, slot parser.ParentSlot) (*models.Union, bool, error) {
	db := s.DB.WithContext(ctx)

	query := db.Where("source_id = ?", sourceID)
	if slot == parser.SlotWife {
		query = query.Where("wife_id = ? AND husband_id IS NULL", parentID)
	} else {
		query = query.Where("husband_id = ? AND wife_id IS NULL", parentID)
	}

	var union models.Union
	err := query.First(&union).Error
	if err == nil {
		return &union, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up union for parent %d: %w", parentID, err)
	}

	now := time.Now().Unix()
	pid := parentID
	union = models.Union{SourceID: sourceID, CreatedAt: now, UpdatedAt: now}
	if slot == parser.SlotWife {
		union.WifeID = &pid
	} else {
		union.HusbandID = &pid
	}
	if err := db.Create(&union).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create union for parent %d: %w", parentID, err)
	}
	return &union, true, nil
}

// UpsertCoupleUnion finds the exact (principal, spouse) pairing, upgrades a
// single-parent union of the principal in place, or creates a new union for
// a remarriage.
func (s *GraphStore) UpsertCoupleUnion(ctx context.Context, sourceID, principalID uint, principalSlot parser.ParentSlot, spouseID uint) (*models.Union, bool, error) {
	db := s.DB.WithContext(ctx)

	husbandID, wifeID := principalID, spouseID
	if principalSlot == parser.SlotWife {
		husbandID, wifeID = spouseID, principalID
	}

	var union models.Union
	err := db.Where("source_id = ? AND husband_id = ? AND wife_id = ?", sourceID, husbandID, wifeID).First(&union).Error
	if err == nil {
		return &union, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up couple union: %w", err)
	}

	// upgrade the principal's single-parent union in place
	query := db.Where("source_id = ?", sourceID)
	if principalSlot == parser.SlotWife {
		query = query.Where("wife_id = ? AND husband_id IS NULL", principalID)
	} else {
		query = query.Where("husband_id = ? AND wife_id IS NULL", principalID)
	}
	err = query.First(&union).Error
	if err == nil {
		union.HusbandID = &husbandID
		union.WifeID = &wifeID
		union.UpdatedAt = time.Now().Unix()
		if err := db.Save(&union).Error; err != nil {
			return nil, false, fmt.Errorf("failed to upgrade union %d: %w", union.ID, err)
		}
		return &union, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up single-parent union: %w", err)
	}

	now := time.Now().Unix()
	h, w := husbandID, wifeID
	union = models.Union{SourceID: sourceID, HusbandID: &h, WifeID: &w, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(&union).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create couple union: %w", err)
	}
	return &union, true, nil
}

// EnsureChildLink attaches the person to the union once, assigning the next
// sibling ordinal on creation.
func (s *GraphStore) EnsureChildLink(ctx context.Context, unionID, personID uint) (bool, error) {
	db := s.DB.WithContext(ctx)

	var count int64
	if err := db.Model(&models.ChildLink{}).Where("union_id = ? AND person_id = ?", unionID, personID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up child link: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	var maxOrder *int
	if err := db.Model(&models.ChildLink{}).Where("union_id = ?", unionID).Select("MAX(order_index)").Scan(&maxOrder).Error; err != nil {
		return false, fmt.Errorf("failed to read sibling order for union %d: %w", unionID, err)
	}
	order := 0
	if maxOrder != nil {
		order = *maxOrder + 1
	}

	link := models.ChildLink{UnionID: unionID, PersonID: personID, OrderIndex: order}
	if err := db.Create(&link).Error; err != nil {
		return false, fmt.Errorf("failed to link child %d to union %d: %w", personID, unionID, err)
	}
	return true, nil
}

// RecordFlaggedLine preserves an unrecognized line for review. Re-parsing the
// same unchanged line does not accumulate duplicates.
func (s *GraphStore) RecordFlaggedLine(ctx context.Context, line *models.FlaggedLine) error {
	db := s.DB.WithContext(ctx)

	var existing models.FlaggedLine
	err := db.Where("source_id = ? AND page_index = ? AND line_index = ? AND text = ?",
		line.SourceID, line.PageIndex, line.LineIndex, line.Text).First(&existing).Error
	if err == nil {
		*line = existing
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up flagged line: %w", err)
	}

	line.CreatedAt = time.Now().Unix()
	if err := db.Create(line).Error; err != nil {
		return fmt.Errorf("failed to record flagged line: %w", err)
	}
	return nil
}
