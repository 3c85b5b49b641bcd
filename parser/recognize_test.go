package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classifyText(text string) []Fragment {
	return Classify(Line{Page: 0, Index: 0, Text: text})
}

func TestClassify_PersonLine(t *testing.T) {
	frags := classifyText("3-- John Smith (1850-1920)")
	require.Len(t, frags, 1)
	assert.Equal(t, KindPerson, frags[0].Kind)
	assert.Equal(t, 3, frags[0].Generation)
	assert.Equal(t, "John Smith (1850-1920)", frags[0].Body)
}

func TestClassify_RomanNumeralGeneration(t *testing.T) {
	frags := classifyText("iv-- Mary Smith")
	require.Len(t, frags, 1)
	assert.Equal(t, KindPerson, frags[0].Kind)
	assert.Equal(t, 4, frags[0].Generation)

	frags = classifyText("XII-- Peter Smith")
	require.Len(t, frags, 1)
	assert.Equal(t, 12, frags[0].Generation)
}

func TestClassify_SpouseLine(t *testing.T) {
	frags := classifyText("sp- Jane Doe (abt 1855-)")
	require.Len(t, frags, 1)
	assert.Equal(t, KindSpouse, frags[0].Kind)
	assert.Equal(t, "Jane Doe (abt 1855-)", frags[0].Body)

	// marker case and spacing vary with OCR
	frags = classifyText("SP - Jane Doe")
	require.Len(t, frags, 1)
	assert.Equal(t, KindSpouse, frags[0].Kind)
}

// TestClassify_MergedLine verifies a person and their spouse OCR-merged onto
// one physical line come back as two fragments in document order.
func TestClassify_MergedLine(t *testing.T) {
	frags := classifyText("2-- Anna Smith (1880-1950) sp- Peter Jones")
	require.Len(t, frags, 2)
	assert.Equal(t, KindPerson, frags[0].Kind)
	assert.Equal(t, 2, frags[0].Generation)
	assert.Equal(t, "Anna Smith (1880-1950)", frags[0].Body)
	assert.Equal(t, KindSpouse, frags[1].Kind)
	assert.Equal(t, "Peter Jones", frags[1].Body)
}

func TestClassify_TwoMergedPersons(t *testing.T) {
	frags := classifyText("2-- Anna Smith 2-- Bella Smith")
	require.Len(t, frags, 2)
	assert.Equal(t, KindPerson, frags[0].Kind)
	assert.Equal(t, "Anna Smith", frags[0].Body)
	assert.Equal(t, KindPerson, frags[1].Kind)
	assert.Equal(t, "Bella Smith", frags[1].Body)
}

// TestClassify_GarbledMarkers verifies corrupted generation markers are never
// guessed at: the line is surfaced as unrecognized instead.
func TestClassify_GarbledMarkers(t *testing.T) {
	cases := []string{
		"2b-- John Smith", // digit glued to a letter
		"2- John Smith",   // single dash where the chart uses two
		"-- John Smith",   // marker with no generation at all
	}
	for _, text := range cases {
		frags := classifyText(text)
		require.NotEmpty(t, frags, text)
		for _, frag := range frags {
			assert.Equal(t, KindUnrecognized, frag.Kind, text)
		}
	}
}

func TestClassify_GenerationOutOfRange(t *testing.T) {
	frags := classifyText("99-- John Smith")
	require.Len(t, frags, 1)
	assert.Equal(t, KindUnrecognized, frags[0].Kind)
}

// TestClassify_LeadingResidue verifies noise before the first marker is kept
// as an unrecognized fragment rather than silently dropped.
func TestClassify_LeadingResidue(t *testing.T) {
	frags := classifyText("x7q 2-- John Smith")
	require.Len(t, frags, 2)
	assert.Equal(t, KindUnrecognized, frags[0].Kind)
	assert.Equal(t, "x7q", frags[0].Text)
	assert.Equal(t, KindPerson, frags[1].Kind)
}

func TestClassify_WholeLineUnrecognized(t *testing.T) {
	frags := classifyText("illegible scrawl")
	require.Len(t, frags, 1)
	assert.Equal(t, KindUnrecognized, frags[0].Kind)
	assert.Equal(t, "illegible scrawl", frags[0].Text)
}

func TestClassify_BlankLineYieldsNothing(t *testing.T) {
	assert.Empty(t, classifyText("   "))
}
