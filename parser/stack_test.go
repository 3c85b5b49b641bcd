package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/averyholt/descentbackend/fallback"
	"github.com/averyholt/descentbackend/models"
)

const testSourceID uint = 7

func parsePages(t *testing.T, store *MemoryStore, resolver fallback.LineResolver, text string) Summary {
	t.Helper()
	p := New(store, resolver, zap.NewNop().Sugar())
	summary, err := p.Parse(context.Background(), testSourceID, []PageInput{{Index: 0, Text: text}}, Options{})
	require.NoError(t, err)
	return summary
}

func findByName(t *testing.T, store *MemoryStore, name string) *models.Individual {
	t.Helper()
	for _, ind := range store.Individuals() {
		if ind.Name == name {
			return ind
		}
	}
	t.Fatalf("individual %q not found", name)
	return nil
}

func childIDs(store *MemoryStore, unionID uint) []uint {
	var ids []uint
	for _, cl := range store.ChildLinks() {
		if cl.UnionID == unionID {
			ids = append(ids, cl.PersonID)
		}
	}
	return ids
}

// TestParse_StackCorrectness walks a small chart and checks every
// parent-child edge lands under the right ancestor.
func TestParse_StackCorrectness(t *testing.T) {
	store := NewMemoryStore()
	summary := parsePages(t, store, nil, `1-- Adam Smith
2-- Ben Smith
2-- Carl Smith
3-- Dan Smith`)

	assert.Equal(t, 4, summary.PeopleCreated)
	assert.Equal(t, 2, summary.UnionsCreated)
	assert.Equal(t, 3, summary.ChildrenLinked)
	assert.Zero(t, summary.LinesFlagged)

	adam := findByName(t, store, "Adam Smith")
	ben := findByName(t, store, "Ben Smith")
	carl := findByName(t, store, "Carl Smith")
	dan := findByName(t, store, "Dan Smith")

	unions := store.Unions()
	require.Len(t, unions, 2)

	adamUnion := unions[0]
	require.NotNil(t, adamUnion.HusbandID)
	assert.Equal(t, adam.ID, *adamUnion.HusbandID)
	assert.Equal(t, []uint{ben.ID, carl.ID}, childIDs(store, adamUnion.ID), "siblings keep document order")

	carlUnion := unions[1]
	require.NotNil(t, carlUnion.HusbandID)
	assert.Equal(t, carl.ID, *carlUnion.HusbandID)
	assert.Equal(t, []uint{dan.ID}, childIDs(store, carlUnion.ID))
}

// TestParse_SpouseUpgradesUnion verifies a spouse joins the principal's union
// in place, and later children land under the couple.
func TestParse_SpouseUpgradesUnion(t *testing.T) {
	store := NewMemoryStore()
	summary := parsePages(t, store, nil, `1-- Adam Smith
sp- Eve Jones
2-- Ben Smith`)

	assert.Equal(t, 1, summary.UnionsCreated)

	adam := findByName(t, store, "Adam Smith")
	eve := findByName(t, store, "Eve Jones")
	ben := findByName(t, store, "Ben Smith")

	unions := store.Unions()
	require.Len(t, unions, 1)
	require.NotNil(t, unions[0].HusbandID)
	require.NotNil(t, unions[0].WifeID)
	assert.Equal(t, adam.ID, *unions[0].HusbandID)
	assert.Equal(t, eve.ID, *unions[0].WifeID)
	assert.Equal(t, []uint{ben.ID}, childIDs(store, unions[0].ID))
}

// TestParse_RemarriageCreatesSecondUnion verifies a second spouse for the same
// principal gets a fresh union rather than overwriting the first marriage, and
// subsequent children follow the newest union.
func TestParse_RemarriageCreatesSecondUnion(t *testing.T) {
	store := NewMemoryStore()
	parsePages(t, store, nil, `1-- Adam Smith
sp- Eve Jones
2-- Ben Smith
sp- Fay Brown
2-- Carl Smith`)

	adam := findByName(t, store, "Adam Smith")
	eve := findByName(t, store, "Eve Jones")
	fay := findByName(t, store, "Fay Brown")
	ben := findByName(t, store, "Ben Smith")
	carl := findByName(t, store, "Carl Smith")

	unions := store.Unions()
	require.Len(t, unions, 2)

	first, second := unions[0], unions[1]
	assert.Equal(t, adam.ID, *first.HusbandID)
	assert.Equal(t, eve.ID, *first.WifeID)
	assert.Equal(t, []uint{ben.ID}, childIDs(store, first.ID))

	assert.Equal(t, adam.ID, *second.HusbandID)
	assert.Equal(t, fay.ID, *second.WifeID)
	assert.Equal(t, []uint{carl.ID}, childIDs(store, second.ID))
}

// TestParse_Idempotence verifies re-parsing unchanged text creates nothing new.
func TestParse_Idempotence(t *testing.T) {
	text := `1-- Adam Smith
sp- Eve Jones
2-- Ben Smith (1850-1920)
3-- Carl Smith`

	store := NewMemoryStore()
	first := parsePages(t, store, nil, text)
	assert.Equal(t, 4, first.PeopleCreated)

	second := parsePages(t, store, nil, text)
	assert.Zero(t, second.PeopleCreated)
	assert.Zero(t, second.UnionsCreated)
	assert.Zero(t, second.ChildrenLinked)
	assert.Equal(t, 4, second.PeopleSeen)

	assert.Len(t, store.Individuals(), 4)
	assert.Len(t, store.Unions(), 2)
	assert.Len(t, store.ChildLinks(), 2)
}

// TestParse_DepthJump accepts a generation gap and attaches the record to the
// nearest shallower ancestor.
func TestParse_DepthJump(t *testing.T) {
	store := NewMemoryStore()
	summary := parsePages(t, store, nil, `1-- Adam Smith
3-- Zed Smith`)

	assert.Zero(t, summary.LinesFlagged)
	zed := findByName(t, store, "Zed Smith")
	assert.Equal(t, 3, zed.Gen)

	adam := findByName(t, store, "Adam Smith")
	unions := store.Unions()
	require.Len(t, unions, 1)
	assert.Equal(t, adam.ID, *unions[0].HusbandID)
	assert.Equal(t, []uint{zed.ID}, childIDs(store, unions[0].ID))
}

func TestParse_SpouseWithNoPrecedingPersonFlagged(t *testing.T) {
	store := NewMemoryStore()
	summary := parsePages(t, store, nil, "sp- Orphan Spouse")

	assert.Equal(t, 1, summary.LinesFlagged)
	require.Len(t, store.Flagged(), 1)
	assert.Equal(t, "spouse line with no preceding person", store.Flagged()[0].Reason)
	assert.Empty(t, store.Individuals())
}

func TestParse_UnrecognizedLineFlagged(t *testing.T) {
	store := NewMemoryStore()
	summary := parsePages(t, store, nil, `1-- Adam Smith
totally illegible scrawl`)

	assert.Equal(t, 1, summary.LinesFlagged)
	require.Len(t, store.Flagged(), 1)
	flagged := store.Flagged()[0]
	assert.Equal(t, "unrecognized", flagged.Reason)
	assert.Equal(t, "totally illegible scrawl", flagged.Text)
	assert.Equal(t, 1, flagged.LineIndex)
}

// TestParse_FlaggedLineKeepsScannedText verifies the flagged text is the line
// as scanned, not the cleaned form the classifier saw.
func TestParse_FlaggedLineKeepsScannedText(t *testing.T) {
	store := NewMemoryStore()
	summary := parsePages(t, store, nil, "1-- Adam Smith\ntotally  illegible ~ scrawl")

	assert.Equal(t, 1, summary.LinesFlagged)
	require.Len(t, store.Flagged(), 1)
	assert.Equal(t, "totally  illegible ~ scrawl", store.Flagged()[0].Text)
}

// TestParse_FieldExtraction checks titles, chart IDs, vitals, and inherited
// surnames all land on the stored record.
func TestParse_FieldExtraction(t *testing.T) {
	store := NewMemoryStore()
	parsePages(t, store, nil, `1-- Capt. John Smith -12 (abt 1850-1920)
2-- Mary`)

	john := findByName(t, store, "John Smith")
	require.NotNil(t, john.Title)
	assert.Equal(t, "Capt.", *john.Title)
	require.NotNil(t, john.Given)
	assert.Equal(t, "John", *john.Given)
	require.NotNil(t, john.Surname)
	assert.Equal(t, "Smith", *john.Surname)
	require.NotNil(t, john.Birth)
	assert.Equal(t, "abt 1850", *john.Birth)
	assert.True(t, john.BirthApprox)
	require.NotNil(t, john.Death)
	assert.Equal(t, "1920", *john.Death)
	require.NotNil(t, john.Notes)
	assert.Equal(t, "ID 12", *john.Notes)

	mary := findByName(t, store, "Mary")
	require.NotNil(t, mary.Surname)
	assert.Equal(t, "Smith", *mary.Surname, "bare given name inherits the chart surname")
}

// TestParse_ManualEditGuard verifies a manually edited row survives a re-parse
// untouched, and force overrides the guard.
func TestParse_ManualEditGuard(t *testing.T) {
	text := "1-- Adam Smith (1800-1870)"
	store := NewMemoryStore()
	parsePages(t, store, nil, text)

	adam := store.Individuals()[0]
	adam.Name = "Adam Q. Smith"
	adam.ManuallyEdited = true

	parsePages(t, store, nil, text)
	assert.Equal(t, "Adam Q. Smith", store.Individuals()[0].Name)

	p := New(store, nil, zap.NewNop().Sugar())
	_, err := p.Parse(context.Background(), testSourceID, []PageInput{{Index: 0, Text: text}}, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, "Adam Smith", store.Individuals()[0].Name)
}

// TestParse_MergedLineDistinctKeys verifies two records OCR-merged onto one
// physical line keep distinct identities across re-parses.
func TestParse_MergedLineDistinctKeys(t *testing.T) {
	text := "1-- Adam Smith sp- Eve Jones"
	store := NewMemoryStore()
	parsePages(t, store, nil, text)
	parsePages(t, store, nil, text)

	assert.Len(t, store.Individuals(), 2)
	assert.Len(t, store.Unions(), 1)
}

// TestParse_FallbackInjection verifies candidates from the line resolver enter
// the graph through the same transitions as recognized lines.
func TestParse_FallbackInjection(t *testing.T) {
	gen2 := 2
	year := 1850
	stub := fallback.ResolverFunc(func(_ context.Context, raw string, lineCtx fallback.LineContext) ([]fallback.Candidate, error) {
		if raw != "2== Ben Smith" {
			return nil, nil
		}
		assert.Equal(t, 1, lineCtx.PreviousGeneration)
		assert.Equal(t, "Adam Smith", lineCtx.PreviousName)
		return []fallback.Candidate{{
			Generation: &gen2,
			Name:       "Ben Smith",
			BirthYear:  &year,
			Confidence: 0.9,
		}}, nil
	})

	store := NewMemoryStore()
	summary := parsePages(t, store, stub, `1-- Adam Smith
2== Ben Smith`)

	assert.Zero(t, summary.LinesFlagged, "resolved lines are not flagged")
	ben := findByName(t, store, "Ben Smith")
	assert.Equal(t, 2, ben.Gen)
	require.NotNil(t, ben.Birth)
	assert.Equal(t, "1850", *ben.Birth)

	adam := findByName(t, store, "Adam Smith")
	unions := store.Unions()
	require.Len(t, unions, 1)
	assert.Equal(t, adam.ID, *unions[0].HusbandID)
	assert.Equal(t, []uint{ben.ID}, childIDs(store, unions[0].ID))
}

// TestParse_FallbackFailureLeavesLineFlagged verifies resolver errors degrade
// to the flagged-line path instead of failing the parse.
func TestParse_FallbackFailureLeavesLineFlagged(t *testing.T) {
	stub := fallback.ResolverFunc(func(context.Context, string, fallback.LineContext) ([]fallback.Candidate, error) {
		return nil, context.DeadlineExceeded
	})

	store := NewMemoryStore()
	summary := parsePages(t, store, stub, `1-- Adam Smith
2== Ben Smith`)

	assert.Equal(t, 1, summary.LinesFlagged)
	assert.Len(t, store.Individuals(), 1)
}

// TestParse_Cancellation verifies a cancelled context stops the parse before
// the next line and reports the lines already committed.
func TestParse_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore()
	p := New(store, nil, zap.NewNop().Sugar())
	summary, err := p.Parse(ctx, testSourceID, []PageInput{{Index: 0, Text: "1-- Adam Smith"}}, Options{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.LinesProcessed)
	assert.Empty(t, store.Individuals())
}

func TestParse_ProgressCallback(t *testing.T) {
	var calls []int
	store := NewMemoryStore()
	p := New(store, nil, zap.NewNop().Sugar())
	_, err := p.Parse(context.Background(), testSourceID,
		[]PageInput{{Index: 0, Text: "1-- Adam Smith\n2-- Ben Smith"}},
		Options{Progress: func(done, total int) {
			assert.Equal(t, 2, total)
			calls = append(calls, done)
		}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, calls)
}
