package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitVitalField(t *testing.T) {
	name, vital := SplitVitalField("John Smith (1850-1920)")
	assert.Equal(t, "John Smith", name)
	assert.Equal(t, "1850-1920", vital)

	// parenthesized text that is not a vital stays on the name
	name, vital = SplitVitalField("John Smith (the younger)")
	assert.Equal(t, "John Smith (the younger)", name)
	assert.Equal(t, "", vital)

	name, vital = SplitVitalField("John Smith")
	assert.Equal(t, "John Smith", name)
	assert.Equal(t, "", vital)
}

func TestParseVitalField_FullRange(t *testing.T) {
	v := ParseVitalField("1850-1920")
	require.NotNil(t, v.BirthYear)
	require.NotNil(t, v.DeathYear)
	assert.Equal(t, 1850, *v.BirthYear)
	assert.Equal(t, 1920, *v.DeathYear)
	assert.Equal(t, "1850", v.BirthRaw)
	assert.Equal(t, "1920", v.DeathRaw)
	assert.False(t, v.BirthApprox)
	assert.False(t, v.DeathApprox)
}

// TestParseVitalField_OpenEnded verifies a dangling dash marks the birth as
// approximate and leaves death empty.
func TestParseVitalField_OpenEnded(t *testing.T) {
	v := ParseVitalField("abt 1850-")
	require.NotNil(t, v.BirthYear)
	assert.Equal(t, 1850, *v.BirthYear)
	assert.True(t, v.BirthApprox)
	assert.Nil(t, v.DeathYear)
	assert.Empty(t, v.DeathRaw)
}

func TestParseVitalField_DeathOnlyRange(t *testing.T) {
	v := ParseVitalField("-1920")
	assert.Nil(t, v.BirthYear)
	assert.Empty(t, v.BirthRaw)
	require.NotNil(t, v.DeathYear)
	assert.Equal(t, 1920, *v.DeathYear)
	assert.True(t, v.DeathApprox, "an open left side leaves the death uncertain")
}

// TestParseVitalField_Living verifies "living" never becomes a death year.
func TestParseVitalField_Living(t *testing.T) {
	v := ParseVitalField("1850-living")
	require.NotNil(t, v.BirthYear)
	assert.Equal(t, 1850, *v.BirthYear)
	assert.Nil(t, v.DeathYear)
	assert.Empty(t, v.DeathRaw)
}

func TestParseVitalField_PrefixedSingles(t *testing.T) {
	v := ParseVitalField("b. 1850")
	require.NotNil(t, v.BirthYear)
	assert.Equal(t, 1850, *v.BirthYear)
	assert.Nil(t, v.DeathYear)

	v = ParseVitalField("d 1920")
	require.NotNil(t, v.DeathYear)
	assert.Equal(t, 1920, *v.DeathYear)
	assert.Nil(t, v.BirthYear)
}

// TestParseVitalField_BefIsNotBirthPrefix guards the "b" prefix against words
// that merely start with b: "bef 1850" is an approximate year, not "b. ef...".
func TestParseVitalField_BefIsNotBirthPrefix(t *testing.T) {
	v := ParseVitalField("bef 1850")
	require.NotNil(t, v.BirthYear)
	assert.Equal(t, 1850, *v.BirthYear)
	assert.Equal(t, "bef 1850", v.BirthRaw)
	assert.True(t, v.BirthApprox)
}

func TestParseVitalField_ThreeDigitYearKeepsRaw(t *testing.T) {
	v := ParseVitalField("185-1920")
	assert.Nil(t, v.BirthYear, "a three-digit year is not a year")
	assert.Equal(t, "185", v.BirthRaw, "raw text survives for review")
	require.NotNil(t, v.DeathYear)
	assert.Equal(t, 1920, *v.DeathYear)
}

func TestExtractIDSuffix(t *testing.T) {
	cleaned, id := ExtractIDSuffix("John Smith -12")
	assert.Equal(t, "John Smith", cleaned)
	assert.Equal(t, "12", id)

	cleaned, id = ExtractIDSuffix("John Smith")
	assert.Equal(t, "John Smith", cleaned)
	assert.Empty(t, id)
}

func TestExtractTitles(t *testing.T) {
	cleaned, title := ExtractTitles("Capt. John Smith")
	assert.Equal(t, "John Smith", cleaned)
	assert.Equal(t, "Capt.", title)

	cleaned, title = ExtractTitles("Rev. Dr. John Smith")
	assert.Equal(t, "John Smith", cleaned)
	assert.Equal(t, "Rev. Dr.", title)

	cleaned, title = ExtractTitles("John Smith")
	assert.Equal(t, "John Smith", cleaned)
	assert.Empty(t, title)
}

func TestSplitDisplayAndNotes(t *testing.T) {
	display, note := SplitDisplayAndNotes("John Smith, of Boston")
	assert.Equal(t, "John Smith", display)
	assert.Equal(t, "of Boston", note)

	// "Surname, Given" must not be mistaken for a note
	display, note = SplitDisplayAndNotes("Smith, John")
	assert.Equal(t, "Smith, John", display)
	assert.Empty(t, note)
}

func TestParseName(t *testing.T) {
	given, surname := ParseName("John Smith", "")
	assert.Equal(t, "John", given)
	assert.Equal(t, "Smith", surname)

	given, surname = ParseName("Smith, John", "")
	assert.Equal(t, "John", given)
	assert.Equal(t, "Smith", surname)

	given, surname = ParseName("John Henry Smith", "")
	assert.Equal(t, "John Henry", given)
	assert.Equal(t, "Smith", surname)

	// a bare given name inherits the chart's established surname
	given, surname = ParseName("Mary", "Smith")
	assert.Equal(t, "Mary", given)
	assert.Equal(t, "Smith", surname)
}
