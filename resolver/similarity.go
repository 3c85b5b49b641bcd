package resolver

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
)

// maxNameDistance is the Levenshtein budget for calling two normalized names
// the same person. OCR typically corrupts one or two glyphs per word.
const maxNameDistance = 2

// maxYearDrift tolerates transcription slips in birth years ("1850" vs
// "1856" read from worn type).
const maxYearDrift = 2

var nonLetterRe = regexp.MustCompile(`[^a-z ]+`)
var spaceRe = regexp.MustCompile(`\s+`)
var yearRe = regexp.MustCompile(`\d{4}`)

// givenAbbreviations maps the scribal given-name contractions that appear in
// printed charts to their full forms, so "Wm. Smith" and "William Smith"
// normalize to the same tokens.
var givenAbbreviations = map[string]string{
	"wm":    "william",
	"jno":   "john",
	"jos":   "joseph",
	"jas":   "james",
	"thos":  "thomas",
	"chas":  "charles",
	"geo":   "george",
	"robt":  "robert",
	"saml":  "samuel",
	"benj":  "benjamin",
	"danl":  "daniel",
	"edw":   "edward",
	"richd": "richard",
	"eliz":  "elizabeth",
	"margt": "margaret",
	"cath":  "catherine",
}

// normalizeName lowercases, strips punctuation, expands scribal given-name
// contractions, and sorts the tokens so that "Smith, Wm." and "william smith"
// compare as the same name.
func normalizeName(name string) string {
	s := strings.ToLower(name)
	s = nonLetterRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	tokens := strings.Fields(s)
	for i, t := range tokens {
		if full, ok := givenAbbreviations[t]; ok {
			tokens[i] = full
		}
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// NamesSimilar reports whether two display names plausibly denote the same
// person: within a small edit distance after normalization (which also expands
// contractions like "Wm." to "William"), or phonetically identical under
// Soundex (catching spelling drift like "Smith" / "Smyth").
func NamesSimilar(a, b string) bool {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if matchr.Levenshtein(na, nb) <= maxNameDistance {
		return true
	}
	return soundexKey(na) == soundexKey(nb)
}

// soundexKey concatenates the Soundex code of each token so multi-word names
// must agree word by word.
func soundexKey(normalized string) string {
	tokens := strings.Fields(normalized)
	codes := make([]string, 0, len(tokens))
	for _, t := range tokens {
		codes = append(codes, matchr.Soundex(t))
	}
	return strings.Join(codes, "|")
}

// ExtractYear pulls the first four-digit year out of a raw vital string such
// as "abt 1850". Returns nil when none is present.
func ExtractYear(raw *string) *int {
	if raw == nil {
		return nil
	}
	m := yearRe.FindString(*raw)
	if m == "" {
		return nil
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &y
}

// YearsCompatible treats an absent year as a wildcard; two present years must
// sit within maxYearDrift of each other.
func YearsCompatible(a, b *int) bool {
	if a == nil || b == nil {
		return true
	}
	d := *a - *b
	if d < 0 {
		d = -d
	}
	return d <= maxYearDrift
}
