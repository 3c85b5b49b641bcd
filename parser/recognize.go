package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// FragmentKind tags the classification of one logical record on a line.
type FragmentKind string

const (
	KindPerson       FragmentKind = "person"
	KindSpouse       FragmentKind = "spouse"
	KindUnrecognized FragmentKind = "unrecognized"
)

// Fragment is one classified logical record. A physical line may yield several
// fragments (a child followed by its spouse, or two OCR-merged people); each
// keeps the originating page and line index for citation.
type Fragment struct {
	Kind       FragmentKind
	Generation int    // persons only, 1 = root ancestor
	Body       string // record text with the marker stripped
	Text       string // the fragment's slice of the physical line, normalized
	Raw        string // the whole physical line as scanned; flagged lines surface this
	Page       int
	Line       int
	Confidence *float64
}

const maxGeneration = 40

var (
	personLineRe = regexp.MustCompile(`^\s*([0-9]{1,2}|[IVXLivxl]{1,7})\s*--+\s*(.+)$`)
	spouseLineRe = regexp.MustCompile(`(?i)^\s*sp\s*-+\s*(.+)$`)

	// embedded markers signalling a second logical record on the same line;
	// anchored variants above re-classify each split segment
	markerRe = regexp.MustCompile(`(?i)(?:\b[0-9]{1,2}\s*--+|\b[IVXLivxl]{1,7}\s*--+|\bsp\s*-+)\s*`)

	// numeric-but-garbled generation markers (digit glued to a letter, or a
	// lone dash separator) are never guessed at
	garbledMarkerRe = regexp.MustCompile(`^\s*[0-9]+[A-Za-z]+\s*--|^\s*[0-9]{1,2}\s*-\s+`)

	romanValues = map[byte]int{'i': 1, 'v': 5, 'x': 10, 'l': 50}
)

// Classify splits one normalized line on every embedded generation or spouse
// marker and classifies each segment independently. It is pure: no state, no
// side effects. Unrecognized residue is returned as fragments of
// KindUnrecognized rather than dropped.
func Classify(line Line) []Fragment {
	text := line.Text
	if strings.TrimSpace(text) == "" {
		return nil
	}

	spans := markerRe.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return []Fragment{unrecognized(line, text)}
	}

	var frags []Fragment
	if lead := strings.TrimSpace(text[:spans[0][0]]); lead != "" {
		frags = append(frags, unrecognized(line, lead))
	}
	for i, span := range spans {
		end := len(text)
		if i+1 < len(spans) {
			end = spans[i+1][0]
		}
		segment := strings.TrimSpace(text[span[0]:end])
		frags = append(frags, classifySegment(line, segment))
	}
	return frags
}

func classifySegment(line Line, segment string) Fragment {
	if m := spouseLineRe.FindStringSubmatch(segment); m != nil {
		return Fragment{
			Kind:       KindSpouse,
			Body:       strings.TrimSpace(m[1]),
			Text:       segment,
			Raw:        line.Raw,
			Page:       line.Page,
			Line:       line.Index,
			Confidence: line.Confidence,
		}
	}
	if garbledMarkerRe.MatchString(segment) {
		return unrecognized(line, segment)
	}
	if m := personLineRe.FindStringSubmatch(segment); m != nil {
		gen, ok := parseGeneration(m[1])
		if !ok {
			return unrecognized(line, segment)
		}
		return Fragment{
			Kind:       KindPerson,
			Generation: gen,
			Body:       strings.TrimSpace(m[2]),
			Text:       segment,
			Raw:        line.Raw,
			Page:       line.Page,
			Line:       line.Index,
			Confidence: line.Confidence,
		}
	}
	return unrecognized(line, segment)
}

func unrecognized(line Line, text string) Fragment {
	return Fragment{
		Kind:       KindUnrecognized,
		Body:       text,
		Text:       text,
		Raw:        line.Raw,
		Page:       line.Page,
		Line:       line.Index,
		Confidence: line.Confidence,
	}
}

// parseGeneration accepts decimal or roman-numeral generation markers and
// rejects anything outside 1..maxGeneration.
func parseGeneration(token string) (int, bool) {
	if n, err := strconv.Atoi(token); err == nil {
		if n < 1 || n > maxGeneration {
			return 0, false
		}
		return n, true
	}
	n, ok := parseRoman(strings.ToLower(token))
	if !ok || n < 1 || n > maxGeneration {
		return 0, false
	}
	return n, true
}

func parseRoman(token string) (int, bool) {
	total := 0
	prev := 0
	for i := len(token) - 1; i >= 0; i-- {
		v, ok := romanValues[token[i]]
		if !ok {
			return 0, false
		}
		if v < prev {
			total -= v
		} else {
			total += v
			prev = v
		}
	}
	return total, total > 0
}
