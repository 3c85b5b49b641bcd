package parser

import (
	"context"
	"time"

	"github.com/averyholt/descentbackend/models"
)

// MemoryStore is a GraphStore holding everything in memory. Dry-run parses use
// it to show the caller the full entity sets before anything is committed, and
// the stack builder tests run against it.
type MemoryStore struct {
	nextID      uint
	individuals []*models.Individual
	byKey       map[string]*models.Individual
	unions      []*models.Union
	childLinks  []*models.ChildLink
	flagged     []models.FlaggedLine
}

// NewMemoryStore returns an empty in-memory graph.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, byKey: make(map[string]*models.Individual)}
}

func (m *MemoryStore) id() uint {
	id := m.nextID
	m.nextID++
	return id
}

// UpsertIndividual implements GraphStore.
func (m *MemoryStore) UpsertIndividual(_ context.Context, draft IndividualDraft, force bool) (*models.Individual, bool, error) {
	if existing, ok := m.byKey[draft.ContentKey]; ok {
		if !existing.ManuallyEdited || force {
			applyDraft(existing, draft)
			if force {
				existing.ManuallyEdited = false
			}
		}
		return existing, false, nil
	}
	ind := &models.Individual{
		ID:         m.id(),
		SourceID:   draft.SourceID,
		ContentKey: draft.ContentKey,
		CreatedAt:  time.Now().Unix(),
	}
	applyDraft(ind, draft)
	m.byKey[draft.ContentKey] = ind
	m.individuals = append(m.individuals, ind)
	return ind, true, nil
}

func applyDraft(ind *models.Individual, draft IndividualDraft) {
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
	ind.UpdatedAt = time.Now().Unix()
}

// EnsureSingleParentUnion implements GraphStore.
func (m *MemoryStore) EnsureSingleParentUnion(_ context.Context, sourceID, parentID uint, slot ParentSlot) (*models.Union, bool, error) {
	for _, u := range m.unions {
		if u.SourceID != sourceID {
			continue
		}
		if slot == SlotHusband && u.HusbandID != nil && *u.HusbandID == parentID && u.WifeID == nil {
			return u, false, nil
		}
		if slot == SlotWife && u.WifeID != nil && *u.WifeID == parentID && u.HusbandID == nil {
			return u, false, nil
		}
	}
	u := &models.Union{ID: m.id(), SourceID: sourceID, CreatedAt: time.Now().Unix(), UpdatedAt: time.Now().Unix()}
	pid := parentID
	if slot == SlotWife {
		u.WifeID = &pid
	} else {
		u.HusbandID = &pid
	}
	m.unions = append(m.unions, u)
	return u, true, nil
}

// UpsertCoupleUnion implements GraphStore.
func (m *MemoryStore) UpsertCoupleUnion(_ context.Context, sourceID, principalID uint, principalSlot ParentSlot, spouseID uint) (*models.Union, bool, error) {
	var hID, wID uint
	if principalSlot == SlotWife {
		hID, wID = spouseID, principalID
	} else {
		hID, wID = principalID, spouseID
	}

	for _, u := range m.unions {
		if u.SourceID != sourceID {
			continue
		}
		if u.HusbandID != nil && *u.HusbandID == hID && u.WifeID != nil && *u.WifeID == wID {
			return u, false, nil
		}
	}
	// upgrade a single-parent union of the principal in place
	for _, u := range m.unions {
		if u.SourceID != sourceID {
			continue
		}
		if principalSlot == SlotHusband && u.HusbandID != nil && *u.HusbandID == principalID && u.WifeID == nil {
			w := wID
			u.WifeID = &w
			u.UpdatedAt = time.Now().Unix()
			return u, false, nil
		}
		if principalSlot == SlotWife && u.WifeID != nil && *u.WifeID == principalID && u.HusbandID == nil {
			h := hID
			u.HusbandID = &h
			u.UpdatedAt = time.Now().Unix()
			return u, false, nil
		}
	}
	h, w := hID, wID
	u := &models.Union{ID: m.id(), SourceID: sourceID, HusbandID: &h, WifeID: &w, CreatedAt: time.Now().Unix(), UpdatedAt: time.Now().Unix()}
	m.unions = append(m.unions, u)
	return u, true, nil
}

// EnsureChildLink implements GraphStore.
func (m *MemoryStore) EnsureChildLink(_ context.Context, unionID, personID uint) (bool, error) {
	maxOrder := -1
	for _, cl := range m.childLinks {
		if cl.UnionID != unionID {
			continue
		}
		if cl.PersonID == personID {
			return false, nil
		}
		if cl.OrderIndex > maxOrder {
			maxOrder = cl.OrderIndex
		}
	}
	m.childLinks = append(m.childLinks, &models.ChildLink{
		ID:         m.id(),
		UnionID:    unionID,
		PersonID:   personID,
		OrderIndex: maxOrder + 1,
	})
	return true, nil
}

// RecordFlaggedLine implements GraphStore.
func (m *MemoryStore) RecordFlaggedLine(_ context.Context, line *models.FlaggedLine) error {
	line.ID = m.id()
	line.CreatedAt = time.Now().Unix()
	m.flagged = append(m.flagged, *line)
	return nil
}

// Individuals returns the stored individuals in insertion order.
func (m *MemoryStore) Individuals() []*models.Individual { return m.individuals }

// Unions returns the stored unions in insertion order.
func (m *MemoryStore) Unions() []*models.Union { return m.unions }

// ChildLinks returns the stored child links in insertion order.
func (m *MemoryStore) ChildLinks() []*models.ChildLink { return m.childLinks }

// Flagged returns the recorded flagged lines.
func (m *MemoryStore) Flagged() []models.FlaggedLine { return m.flagged }
