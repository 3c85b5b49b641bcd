package parser

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/averyholt/descentbackend/models"
)

// ParentSlot names the side of a Union an individual occupies.
type ParentSlot string

const (
	SlotHusband ParentSlot = "husband"
	SlotWife    ParentSlot = "wife"
)

// slotFor maps an individual's sex to a union slot. Unknown sex takes the
// husband slot; this is the chart convention, not a domain fact.
func slotFor(sex *string) ParentSlot {
	if sex != nil && *sex == "F" {
		return SlotWife
	}
	return SlotHusband
}

// IndividualDraft carries the parsed fields of one record into the store.
type IndividualDraft struct {
	SourceID    uint
	Gen         int
	Name        string
	Given       *string
	Surname     *string
	Title       *string
	Birth       *string
	BirthApprox bool
	Death       *string
	DeathApprox bool
	Notes       *string
	PageIndex   int
	LineIndex   int
	ContentKey  string
}

// GraphStore is the persistence surface the stack builder writes through. The
// repository package implements it against sqlite; MemoryStore implements it
// for dry runs and tests. Implementations own the upsert invariants: content
// keys resolve to existing Individuals, and at most one Union exists per
// (source, husband, wife) triple including absent sides.
type GraphStore interface {
	// UpsertIndividual resolves the draft's content key to an existing row or
	// creates one. Parsed fields on a manually edited row are left alone
	// unless force is set.
	UpsertIndividual(ctx context.Context, draft IndividualDraft, force bool) (ind *models.Individual, created bool, err error)

	// EnsureSingleParentUnion finds or creates the union holding exactly this
	// parent on the given slot with the other side absent.
	EnsureSingleParentUnion(ctx context.Context, sourceID, parentID uint, slot ParentSlot) (*models.Union, bool, error)

	// UpsertCoupleUnion finds the exact (principal, spouse) pairing, upgrades
	// a single-parent union of the principal in place, or creates a new union.
	UpsertCoupleUnion(ctx context.Context, sourceID, principalID uint, principalSlot ParentSlot, spouseID uint) (*models.Union, bool, error)

	// EnsureChildLink attaches the person to the union once, assigning the
	// next sibling ordinal on creation.
	EnsureChildLink(ctx context.Context, unionID, personID uint) (created bool, err error)

	// RecordFlaggedLine preserves an unrecognized line for review.
	RecordFlaggedLine(ctx context.Context, line *models.FlaggedLine) error
}

// ContentKey derives the stable upsert key for one fragment. The fragment's
// own text (not the whole physical line) is hashed so that two records
// OCR-merged onto one line keep distinct identities.
func ContentKey(sourceID uint, page, line int, text string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%d|%d|%d|%s", sourceID, page, line, text)))
	return hex.EncodeToString(sum[:])
}

// contextNode is one entry of the ancestor stack: the most recently seen
// individual at its depth plus the union currently collecting that
// individual's children.
type contextNode struct {
	gen         int
	person      *models.Individual
	surnameHint string
	union       *models.Union
}

// Summary reports what one parse pass produced, for caller-side confirmation.
type Summary struct {
	PeopleCreated  int                  `json:"people_created"`
	PeopleSeen     int                  `json:"people_seen"`
	UnionsCreated  int                  `json:"unions_created"`
	ChildrenLinked int                  `json:"children_linked"`
	LinesFlagged   int                  `json:"lines_flagged"`
	LinesProcessed int                  `json:"lines_processed"`
	Flagged        []models.FlaggedLine `json:"flagged"`
}

// StackBuilder resolves parent-child and spousal relationships from the
// classified fragment stream. State is owned by the builder and threaded
// through one parse call, never shared between sources.
type StackBuilder struct {
	store    GraphStore
	sourceID uint
	force    bool

	stack []*contextNode

	// curUnion is the union most recently created or touched; spouse lines
	// attach to it. curPrincipal is the stack node the union belongs to.
	curUnion     *models.Union
	curPrincipal *contextNode

	summary Summary
}

// NewStackBuilder returns a builder writing through store for one source.
// force propagates to upserts, overwriting manually edited rows.
func NewStackBuilder(store GraphStore, sourceID uint, force bool) *StackBuilder {
	return &StackBuilder{store: store, sourceID: sourceID, force: force}
}

// Summary returns the counts accumulated so far.
func (b *StackBuilder) Summary() Summary {
	return b.summary
}

// Depth returns the generation of the current subject, or zero when the stack
// is empty. The fallback resolver uses it as context.
func (b *StackBuilder) Depth() int {
	if len(b.stack) == 0 {
		return 0
	}
	return b.stack[len(b.stack)-1].gen
}

// SubjectName returns the current subject's display name, for fallback context.
func (b *StackBuilder) SubjectName() string {
	if len(b.stack) == 0 {
		return ""
	}
	return b.stack[len(b.stack)-1].person.Name
}

// AddPerson handles a Person fragment at the fragment's stated depth: the
// stack is popped to the nearest shallower ancestor, which becomes the implied
// parent. Depth jumps of more than one level are accepted (a chart branch with
// an unrecorded intermediate link); the nearest ancestor simply serves as the
// parent.
func (b *StackBuilder) AddPerson(ctx context.Context, frag Fragment) error {
	return b.addPerson(ctx, frag.Generation, func(surnameHint string) IndividualDraft {
		return b.buildDraft(frag, frag.Generation, surnameHint)
	})
}

// addPerson runs the person transition with the draft supplied by build, which
// receives the inherited surname hint once the implied parent is known.
func (b *StackBuilder) addPerson(ctx context.Context, gen int, build func(surnameHint string) IndividualDraft) error {
	for len(b.stack) > 0 && b.stack[len(b.stack)-1].gen >= gen {
		popped := b.stack[len(b.stack)-1]
		if b.curPrincipal == popped {
			b.curUnion = nil
			b.curPrincipal = nil
		}
		b.stack = b.stack[:len(b.stack)-1]
	}

	var parent *contextNode
	if len(b.stack) > 0 {
		parent = b.stack[len(b.stack)-1]
	}

	surnameHint := ""
	if parent != nil {
		surnameHint = parent.surnameHint
	}
	draft := build(surnameHint)

	person, created, err := b.store.UpsertIndividual(ctx, draft, b.force)
	if err != nil {
		return fmt.Errorf("upsert person %q: %w", draft.Name, err)
	}
	b.countPerson(created)

	if parent != nil {
		if parent.union == nil {
			union, unionCreated, err := b.store.EnsureSingleParentUnion(ctx, b.sourceID, parent.person.ID, slotFor(parent.person.Sex))
			if err != nil {
				return fmt.Errorf("ensure union under %q: %w", parent.person.Name, err)
			}
			parent.union = union
			if unionCreated {
				b.summary.UnionsCreated++
			}
		}
		linked, err := b.store.EnsureChildLink(ctx, parent.union.ID, person.ID)
		if err != nil {
			return fmt.Errorf("link child %q: %w", person.Name, err)
		}
		if linked {
			b.summary.ChildrenLinked++
		}
		b.curUnion = parent.union
		b.curPrincipal = parent
	} else {
		b.curUnion = nil
		b.curPrincipal = nil
	}

	hint := surnameHint
	if person.Surname != nil && *person.Surname != "" {
		hint = *person.Surname
	}
	b.stack = append(b.stack, &contextNode{gen: gen, person: person, surnameHint: hint})
	return nil
}

// AddSpouse handles a Spouse fragment. Spouses carry no generation of their
// own; they inherit the principal's. The spouse attaches to the union most
// recently in play: an absent or half-filled union is upgraded in place, a
// fully occupied one (remarriage) yields a fresh union reusing the same
// principal.
func (b *StackBuilder) AddSpouse(ctx context.Context, frag Fragment) error {
	return b.addSpouse(ctx, frag, func(gen int) IndividualDraft {
		return b.buildDraft(frag, gen, "")
	})
}

// addSpouse runs the spouse transition with the draft supplied by build, which
// receives the generation inherited from the principal.
func (b *StackBuilder) addSpouse(ctx context.Context, frag Fragment, build func(gen int) IndividualDraft) error {
	principal := b.curPrincipal
	if principal == nil {
		if len(b.stack) == 0 {
			return b.Flag(ctx, frag, "spouse line with no preceding person")
		}
		principal = b.stack[len(b.stack)-1]
	}

	draft := build(principal.gen)
	spouse, created, err := b.store.UpsertIndividual(ctx, draft, b.force)
	if err != nil {
		return fmt.Errorf("upsert spouse %q: %w", draft.Name, err)
	}
	b.countPerson(created)

	union, unionCreated, err := b.store.UpsertCoupleUnion(ctx, b.sourceID, principal.person.ID, slotFor(principal.person.Sex), spouse.ID)
	if err != nil {
		return fmt.Errorf("upsert union for %q: %w", principal.person.Name, err)
	}
	if unionCreated {
		b.summary.UnionsCreated++
	}

	principal.union = union
	b.curUnion = union
	b.curPrincipal = principal
	return nil
}

// Flag records an unrecognized fragment without disturbing the stack. The
// stored text is the line as scanned, so a reviewer sees exactly what the OCR
// produced rather than the cleaned form.
func (b *StackBuilder) Flag(ctx context.Context, frag Fragment, reason string) error {
	text := frag.Raw
	if text == "" {
		text = frag.Text
	}
	line := models.FlaggedLine{
		SourceID:  b.sourceID,
		PageIndex: frag.Page,
		LineIndex: frag.Line,
		Text:      text,
		Reason:    reason,
	}
	if err := b.store.RecordFlaggedLine(ctx, &line); err != nil {
		return fmt.Errorf("record flagged line: %w", err)
	}
	b.summary.LinesFlagged++
	b.summary.Flagged = append(b.summary.Flagged, line)
	return nil
}

func (b *StackBuilder) countPerson(created bool) {
	b.summary.PeopleSeen++
	if created {
		b.summary.PeopleCreated++
	}
}

// buildDraft runs the vital-data interpreter over a fragment body and
// assembles the store draft.
func (b *StackBuilder) buildDraft(frag Fragment, gen int, surnameHint string) IndividualDraft {
	nameField, vitalField := SplitVitalField(frag.Body)
	vitals := ParseVitalField(vitalField)

	withoutTitles, title := ExtractTitles(nameField)
	withoutID, chartID := ExtractIDSuffix(withoutTitles)
	display, inlineNote := SplitDisplayAndNotes(withoutID)

	var noteParts []string
	if chartID != "" {
		noteParts = append(noteParts, "ID "+chartID)
	}
	if inlineNote != "" {
		noteParts = append(noteParts, inlineNote)
	}

	if display == "" {
		display = NormalizeText(frag.Body)
	}
	given, surname := ParseName(display, surnameHint)

	draft := IndividualDraft{
		SourceID:    b.sourceID,
		Gen:         gen,
		Name:        display,
		BirthApprox: vitals.BirthApprox,
		DeathApprox: vitals.DeathApprox,
		PageIndex:   frag.Page,
		LineIndex:   frag.Line,
		ContentKey:  ContentKey(b.sourceID, frag.Page, frag.Line, frag.Text),
	}
	if given != "" {
		draft.Given = &given
	}
	if surname != "" {
		draft.Surname = &surname
	}
	if title != "" {
		draft.Title = &title
	}
	if vitals.BirthRaw != "" {
		birth := vitals.BirthRaw
		draft.Birth = &birth
	}
	if vitals.DeathRaw != "" {
		death := vitals.DeathRaw
		draft.Death = &death
	}
	if len(noteParts) > 0 {
		notes := joinNotes(noteParts)
		draft.Notes = &notes
	}
	return draft
}

func joinNotes(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "; " + p
	}
	return out
}
