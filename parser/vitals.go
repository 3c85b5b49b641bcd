package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// Vitals holds the interpreted birth/death years of one record. Years keep
// their raw text alongside the parsed value so under-cleaned OCR (three-digit
// years, stray letters) is never silently discarded.
type Vitals struct {
	BirthYear   *int
	BirthRaw    string
	BirthApprox bool
	DeathYear   *int
	DeathRaw    string
	DeathApprox bool
}

var (
	parenVitalRe  = regexp.MustCompile(`\(([^()]*)\)$`)
	yearTokenRe   = regexp.MustCompile(`\b(\d{4})\b`)
	approxTokenRe = regexp.MustCompile(`(?i)(?:\b(?:abt|about|around|ca\.?|circa|before|after|bef\.?|aft\.?|c\.)\b|~|\?)`)
	birthOnlyRe   = regexp.MustCompile(`(?i)^b(?:\.\s*|\s+)(.+)$`)
	deathOnlyRe   = regexp.MustCompile(`(?i)^d(?:\.\s*|\s+)(.+)$`)
	livingRe      = regexp.MustCompile(`(?i)^liv(?:ing)?\.?$`)
	dashRunRe     = regexp.MustCompile(`-+`)

	idSuffixRe = regexp.MustCompile(`-\s*(\d+)$`)
	titleRe    = regexp.MustCompile(`(?i)(^|\s)((?:Lt\.?|Capt\.?|Col\.?|Maj\.?|Rev\.?|Dr\.?|Deacon|Sgt\.?|Gen\.?|General|Prof\.?|Judge|Hon\.?|Elder|Sir|Lady))(\s|$)`)

	noteSeparators = []string{",", ";", " - ", ": "}
)

// SplitVitalField peels a trailing parenthesized vital-date group off a record
// body, returning the remaining name text and the raw vital substring.
// Parenthesized text that does not look like a vital (no year, approx marker,
// or dash range) is left attached to the name.
func SplitVitalField(body string) (name, vitalField string) {
	working := strings.TrimSpace(body)
	m := parenVitalRe.FindStringSubmatchIndex(working)
	if m == nil {
		return working, ""
	}
	content := strings.TrimSpace(working[m[2]:m[3]])
	if !looksLikeVital(content) {
		return working, ""
	}
	return strings.TrimSpace(working[:m[0]]), content
}

func looksLikeVital(content string) bool {
	if content == "" {
		return false
	}
	if yearTokenRe.MatchString(content) || approxTokenRe.MatchString(content) {
		return true
	}
	if strings.Contains(content, "-") {
		parts := dashRunRe.Split(content, 2)
		return strings.TrimSpace(parts[0]) != "" || strings.TrimSpace(parts[1]) != ""
	}
	return false
}

// ParseVitalField interprets the raw vital substring captured by the pattern
// recognizer. Recognized shapes: YYYY-YYYY, YYYY- (open ended), YYYY-living,
// b[.] YYYY, d[.] YYYY. The approximate flag is set by uncertainty markers
// (abt, circa, ?, ~) or by a dangling dash with no closing year.
func ParseVitalField(field string) Vitals {
	var v Vitals
	working := strings.TrimSpace(field)
	if working == "" {
		return v
	}

	if m := birthOnlyRe.FindStringSubmatch(working); m != nil && !strings.Contains(working, "-") {
		v.BirthRaw = strings.TrimSpace(m[1])
		v.BirthYear = extractYear(v.BirthRaw)
		v.BirthApprox = hasApproxMarker(v.BirthRaw)
		return v
	}
	if m := deathOnlyRe.FindStringSubmatch(working); m != nil && !strings.Contains(working, "-") {
		v.DeathRaw = strings.TrimSpace(m[1])
		v.DeathYear = extractYear(v.DeathRaw)
		v.DeathApprox = hasApproxMarker(v.DeathRaw)
		return v
	}

	if !strings.Contains(working, "-") {
		v.BirthRaw = working
		v.BirthYear = extractYear(working)
		v.BirthApprox = hasApproxMarker(working)
		return v
	}

	parts := dashRunRe.Split(working, 2)
	left := strings.TrimSpace(parts[0])
	right := ""
	if len(parts) > 1 {
		right = strings.TrimSpace(parts[1])
	}

	if left != "" {
		v.BirthRaw = left
		v.BirthYear = extractYear(left)
		// a dangling dash with no closing year marks the whole range uncertain
		v.BirthApprox = hasApproxMarker(left) || right == ""
	}
	if right != "" && !livingRe.MatchString(right) {
		v.DeathRaw = right
		v.DeathYear = extractYear(right)
		v.DeathApprox = hasApproxMarker(right) || left == ""
	}
	return v
}

func extractYear(text string) *int {
	m := yearTokenRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &year
}

func hasApproxMarker(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if approxTokenRe.MatchString(trimmed) {
		return true
	}
	return strings.HasPrefix(trimmed, "-") || strings.HasSuffix(trimmed, "-")
}

// ExtractIDSuffix strips a chart-assigned numeric identifier (a dash followed
// by digits at the end of the name field) and returns it separately. The
// identifier is the only externally visible key back into the chart's own
// numbering scheme, so callers append it to notes rather than discard it.
func ExtractIDSuffix(text string) (cleaned string, id string) {
	m := idSuffixRe.FindStringSubmatch(text)
	if m == nil {
		return text, ""
	}
	cleaned = strings.Trim(idSuffixRe.ReplaceAllString(text, ""), " ,;:-")
	return cleaned, m[1]
}

// ExtractTitles pulls honorific titles (Capt., Rev., Dr., ...) out of the name
// text, preserving their order and deduplicating repeats.
func ExtractTitles(text string) (cleaned string, title string) {
	var titles []string
	seen := make(map[string]bool)
	working := text
	for {
		m := titleRe.FindStringSubmatchIndex(working)
		if m == nil {
			break
		}
		found := working[m[4]:m[5]]
		if !seen[found] {
			titles = append(titles, found)
			seen[found] = true
		}
		working = working[:m[2]] + " " + working[m[5]:]
	}
	cleaned = NormalizeText(working)
	return cleaned, strings.Join(titles, " ")
}

// SplitDisplayAndNotes separates a trailing free-form note from the display
// name. A tail is only treated as a note when it starts lowercase, which keeps
// "Smith, John" style names intact.
func SplitDisplayAndNotes(text string) (display string, note string) {
	working := strings.TrimSpace(text)
	for _, sep := range noteSeparators {
		if !strings.Contains(working, sep) {
			continue
		}
		head, tail, _ := strings.Cut(working, sep)
		head = strings.TrimSpace(head)
		tail = strings.TrimSpace(tail)
		if tail != "" && tail[0] >= 'a' && tail[0] <= 'z' {
			return head, tail
		}
	}
	return working, ""
}

// ParseName splits a display name into given and surname parts. "Surname,
// Given" ordering is honored when the head is a single token; otherwise the
// last token is the surname. A single bare token falls back to the inherited
// surname hint (children usually omit the family name the chart already
// established).
func ParseName(text, surnameHint string) (given, surname string) {
	work := NormalizeText(text)
	work = strings.TrimSpace(regexp.MustCompile(`\([^)]*\)$`).ReplaceAllString(work, ""))

	if strings.Contains(work, ",") {
		head, tail, _ := strings.Cut(work, ",")
		head = strings.TrimSpace(head)
		if head != "" && len(strings.Fields(head)) == 1 {
			return strings.TrimSpace(strings.Trim(tail, " ,?")), head
		}
	}

	var tokens []string
	for _, tok := range strings.Fields(strings.ReplaceAll(work, ",", " ")) {
		if tok != "?" {
			tokens = append(tokens, tok)
		}
	}

	switch {
	case len(tokens) >= 2:
		return strings.Join(tokens[:len(tokens)-1], " "), tokens[len(tokens)-1]
	case len(tokens) == 1:
		return tokens[0], surnameHint
	default:
		return "", surnameHint
	}
}
