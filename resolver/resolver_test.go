package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averyholt/descentbackend/models"
)

func strPtr(s string) *string { return &s }

func person(id uint, name string, birth *string, extra func(*models.Individual)) *models.Individual {
	ind := &models.Individual{ID: id, SourceID: 1, Gen: 2, Name: name, Birth: birth}
	if extra != nil {
		extra(ind)
	}
	return ind
}

func TestNamesSimilar(t *testing.T) {
	// comma order is irrelevant
	assert.True(t, NamesSimilar("Smith, William", "William Smith"))
	// small OCR typo
	assert.True(t, NamesSimilar("William Smth", "William Smith"))
	// phonetic spelling drift
	assert.True(t, NamesSimilar("John Smyth", "John Smith"))
	// case and punctuation are ignored
	assert.True(t, NamesSimilar("JOHN SMITH", "john smith"))

	assert.False(t, NamesSimilar("John Smith", "Peter Jones"))
	assert.False(t, NamesSimilar("", "John Smith"))
}

// TestNamesSimilar_ScribalAbbreviations verifies the contracted given names
// printed charts favor expand before comparison.
func TestNamesSimilar_ScribalAbbreviations(t *testing.T) {
	assert.True(t, NamesSimilar("Wm. Smith", "William Smith"))
	assert.True(t, NamesSimilar("Jno. Brown", "John Brown"))
	assert.True(t, NamesSimilar("Smith, Thos.", "Thomas Smith"))

	assert.False(t, NamesSimilar("Wm. Smith", "John Smith"))
}

func TestYearsCompatible(t *testing.T) {
	y := func(v int) *int { return &v }
	assert.True(t, YearsCompatible(y(1850), y(1851)))
	assert.True(t, YearsCompatible(y(1850), y(1852)))
	assert.False(t, YearsCompatible(y(1850), y(1860)))
	// an absent year is a wildcard
	assert.True(t, YearsCompatible(nil, y(1850)))
	assert.True(t, YearsCompatible(y(1850), nil))
	assert.True(t, YearsCompatible(nil, nil))
}

func TestExtractYear(t *testing.T) {
	got := ExtractYear(strPtr("abt 1850"))
	require.NotNil(t, got)
	assert.Equal(t, 1850, *got)

	assert.Nil(t, ExtractYear(nil))
	assert.Nil(t, ExtractYear(strPtr("185")))
}

// TestGroupDuplicates verifies close name/year pairs cluster while a distant
// birth year keeps an otherwise identical name apart.
func TestGroupDuplicates(t *testing.T) {
	inds := []*models.Individual{
		person(1, "William Smith", strPtr("1850"), nil),
		person(2, "William Smyth", strPtr("1851"), nil),
		person(3, "William Smith", strPtr("1860"), nil),
		person(4, "Peter Jones", strPtr("1850"), nil),
	}

	groups := GroupDuplicates(inds)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Members, 2)
	assert.Equal(t, uint(1), groups[0].Members[0].ID)
	assert.Equal(t, uint(2), groups[0].Members[1].ID)
	assert.Empty(t, groups[0].Warnings)
}

func TestGroupDuplicates_AbbreviatedGivenName(t *testing.T) {
	inds := []*models.Individual{
		person(1, "William Smith", strPtr("1850"), nil),
		person(2, "Wm. Smith", strPtr("1851"), nil),
	}
	groups := GroupDuplicates(inds)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Members, 2)
}

func TestGroupDuplicates_AbsentYearIsWildcard(t *testing.T) {
	inds := []*models.Individual{
		person(1, "Mary Brown", strPtr("1880"), nil),
		person(2, "Mary Brown", nil, nil),
	}
	groups := GroupDuplicates(inds)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Members, 2)
}

func TestGroupDuplicates_SexConflictWarning(t *testing.T) {
	inds := []*models.Individual{
		person(1, "Lee Davis", strPtr("1870"), func(i *models.Individual) { i.Sex = strPtr("M") }),
		person(2, "Lee Davis", strPtr("1870"), func(i *models.Individual) { i.Sex = strPtr("F") }),
	}
	groups := GroupDuplicates(inds)
	require.Len(t, groups, 1)
	assert.Contains(t, groups[0].Warnings, "members disagree on sex")
}

func TestChooseSurvivor(t *testing.T) {
	sparse := person(1, "William Smith", nil, nil)
	rich := person(2, "William Smith", strPtr("1850"), func(i *models.Individual) {
		i.Given = strPtr("William")
		i.Surname = strPtr("Smith")
	})

	assert.Equal(t, rich, ChooseSurvivor([]*models.Individual{sparse, rich}))

	// equal field counts fall back to the lowest ID for determinism
	twinA := person(5, "Ann Hill", strPtr("1850"), nil)
	twinB := person(3, "Ann Hill", strPtr("1850"), nil)
	assert.Equal(t, twinB, ChooseSurvivor([]*models.Individual{twinA, twinB}))
}
