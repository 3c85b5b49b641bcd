package parser

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Line is a single cleaned chart line tagged with its provenance. Index is the
// line's position within the original page text, kept stable through cleaning
// so flagged lines and parsed records can cite the source exactly.
type Line struct {
	Page       int
	Index      int
	Text       string
	Raw        string   // the line as scanned, before any cleaning; flagged lines surface this
	Confidence *float64 // per-line OCR confidence, when the producer supplies one
}

// PageInput is one page of OCR output as delivered by the OCR collaborator.
type PageInput struct {
	Index       int
	Text        string
	Confidences []float64 // optional, parallel to the lines of Text
}

var (
	// dashes the OCR renders for the chart's single dash token
	singleDashRe = regexp.MustCompile("[‐‑‒–−~*]")
	// wide dashes that stand in for the chart's double-dash separator
	doubleDashRe = regexp.MustCompile("[—―]")

	whitespaceRe = regexp.MustCompile(`[ \t]+`)
	pageNumberRe = regexp.MustCompile(`(?i)^\s*(?:page\s+)?\d{1,4}\s*$`)

	// a word split across an OCR line wrap: letter + hyphen at end of line
	hyphenBreakRe = regexp.MustCompile(`[A-Za-z]-$`)
	lowerStartRe  = regexp.MustCompile(`^[a-z]`)
)

// NormalizeText canonicalizes a single line: NFKC fold, soft hyphens removed,
// dash variants collapsed to "-" (em-dash and horizontal bar to "--"), and
// internal whitespace runs collapsed.
func NormalizeText(value string) string {
	text := norm.NFKC.String(value)
	text = strings.ReplaceAll(text, "­", "")
	text = doubleDashRe.ReplaceAllString(text, "--")
	text = singleDashRe.ReplaceAllString(text, "-")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// NormalizePages cleans raw per-page OCR text into an ordered line stream.
// It strips repeated page-header/footer boilerplate, rejoins hyphen-broken
// words across line wraps, and normalizes each surviving line. This step has
// no failure mode; at worst a line is under-cleaned and the recognizer flags
// it downstream.
func NormalizePages(pages []PageInput) []Line {
	boilerplate := detectBoilerplate(pages)

	var out []Line
	for _, page := range pages {
		rawLines := strings.Split(page.Text, "\n")

		var lines []Line
		for idx, raw := range rawLines {
			raw = strings.TrimRight(raw, "\r")
			text := NormalizeText(raw)
			if text == "" {
				continue
			}
			if boilerplate[text] || pageNumberRe.MatchString(text) {
				continue
			}
			line := Line{Page: page.Index, Index: idx, Text: text, Raw: raw}
			if idx < len(page.Confidences) {
				c := page.Confidences[idx]
				line.Confidence = &c
			}
			lines = append(lines, line)
		}

		out = append(out, rejoinHyphenBreaks(lines)...)
	}
	return out
}

// detectBoilerplate finds header/footer lines repeated across pages. Only the
// outermost lines of each page are considered, and only when there are enough
// pages for repetition to be meaningful.
func detectBoilerplate(pages []PageInput) map[string]bool {
	boilerplate := make(map[string]bool)
	if len(pages) < 3 {
		return boilerplate
	}

	counts := make(map[string]int)
	for _, page := range pages {
		var cleaned []string
		for _, raw := range strings.Split(page.Text, "\n") {
			text := NormalizeText(raw)
			if text != "" {
				cleaned = append(cleaned, text)
			}
		}
		edges := make(map[string]bool)
		for i, text := range cleaned {
			if i < 2 || i >= len(cleaned)-2 {
				edges[text] = true
			}
		}
		for text := range edges {
			counts[text]++
		}
	}

	threshold := (len(pages) + 1) / 2
	for text, n := range counts {
		if n > threshold {
			boilerplate[text] = true
		}
	}
	return boilerplate
}

// rejoinHyphenBreaks merges a line ending in a mid-word hyphen with the next
// line when that line starts lowercase. The merged line keeps the first
// fragment's index for citation purposes.
func rejoinHyphenBreaks(lines []Line) []Line {
	var out []Line
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		for i+1 < len(lines) &&
			hyphenBreakRe.MatchString(line.Text) &&
			lowerStartRe.MatchString(lines[i+1].Text) {
			line.Text = strings.TrimSuffix(line.Text, "-") + lines[i+1].Text
			line.Raw = line.Raw + " " + lines[i+1].Raw
			i++
		}
		out = append(out, line)
	}
	return out
}
