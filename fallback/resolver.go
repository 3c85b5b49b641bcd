// Package fallback defines the pluggable line-resolver capability consulted
// for chart lines the pattern recognizer cannot classify. The stack-builder
// core has zero dependency on network or availability concerns; it sees only
// this interface, and every failure degrades to leaving the line flagged.
package fallback

import "context"

// LineContext is what the parser knows at the point the line failed: the
// depth and name of the previous subject, which the resolver may use to
// anchor an ambiguous record.
type LineContext struct {
	PreviousGeneration int    `json:"previous_generation"`
	PreviousName       string `json:"previous_name"`
}

// Candidate is one structured record the resolver extracted from a raw line.
// A nil Generation means "same depth as the previous sibling".
type Candidate struct {
	Generation  *int    `json:"generation"`
	Name        string  `json:"name"`
	BirthYear   *int    `json:"birth_year"`
	DeathYear   *int    `json:"death_year"`
	BirthApprox bool    `json:"birth_approx"`
	DeathApprox bool    `json:"death_approx"`
	IsSpouse    bool    `json:"is_spouse"`
	Confidence  float64 `json:"confidence"`
}

// LineResolver turns an ambiguous raw line plus context into zero or more
// candidate records. An empty slice or an error both mean the line stays
// flagged; implementations must bound their own latency.
type LineResolver interface {
	ResolveLine(ctx context.Context, raw string, lineCtx LineContext) ([]Candidate, error)
}

// ResolverFunc adapts a function to the LineResolver interface.
type ResolverFunc func(ctx context.Context, raw string, lineCtx LineContext) ([]Candidate, error)

// ResolveLine implements LineResolver.
func (f ResolverFunc) ResolveLine(ctx context.Context, raw string, lineCtx LineContext) ([]Candidate, error) {
	return f(ctx, raw, lineCtx)
}
