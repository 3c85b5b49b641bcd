package parser

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/averyholt/descentbackend/fallback"
)

// Options tunes one parse invocation.
type Options struct {
	// Force overwrites manually edited individuals with re-parsed fields.
	Force bool

	// ConfidenceThreshold escalates recognized lines whose OCR confidence
	// falls below it to the fallback resolver, allowing correction. Zero
	// disables confidence-based escalation.
	ConfidenceThreshold float64

	// Progress, when set, is invoked after every line with (done, total).
	Progress func(done, total int)
}

// Parser is the top-level ingestion routine: it feeds normalized, classified
// lines through the generation stack builder, escalating what the recognizer
// could not handle to the optional fallback resolver.
type Parser struct {
	store    GraphStore
	resolver fallback.LineResolver // nil when no fallback is configured
	log      *zap.SugaredLogger
}

// New builds a Parser. resolver may be nil.
func New(store GraphStore, resolver fallback.LineResolver, log *zap.SugaredLogger) *Parser {
	return &Parser{store: store, resolver: resolver, log: log}
}

// Parse ingests the given pages of one source. It always completes with a
// summary, even if every line fails; the only early return is context
// cancellation, which stops before the next line is committed and leaves
// already-committed records intact. Re-running over unchanged text is
// idempotent: content keys resolve to the existing rows.
func (p *Parser) Parse(ctx context.Context, sourceID uint, pages []PageInput, opts Options) (Summary, error) {
	lines := NormalizePages(pages)
	builder := NewStackBuilder(p.store, sourceID, opts.Force)
	total := len(lines)

	for done, line := range lines {
		if err := ctx.Err(); err != nil {
			summary := builder.Summary()
			summary.LinesProcessed = done
			return summary, err
		}

		p.parseLine(ctx, builder, line, opts)

		if opts.Progress != nil {
			opts.Progress(done+1, total)
		}
	}

	summary := builder.Summary()
	summary.LinesProcessed = total
	return summary, nil
}

func (p *Parser) parseLine(ctx context.Context, builder *StackBuilder, line Line, opts Options) {
	frags := Classify(line)
	if len(frags) == 0 {
		return
	}

	// a recognized line with low OCR confidence is re-offered to the
	// fallback; its answer, if any, replaces the regex reading
	if p.resolver != nil && opts.ConfidenceThreshold > 0 &&
		line.Confidence != nil && *line.Confidence < opts.ConfidenceThreshold {
		if p.resolveInto(ctx, builder, wholeLineFragment(line)) {
			return
		}
	}

	for _, frag := range frags {
		var err error
		switch frag.Kind {
		case KindPerson:
			err = builder.AddPerson(ctx, frag)
		case KindSpouse:
			err = builder.AddSpouse(ctx, frag)
		case KindUnrecognized:
			if p.resolver != nil && p.resolveInto(ctx, builder, frag) {
				continue
			}
			err = builder.Flag(ctx, frag, "unrecognized")
		}
		if err != nil {
			// fatal to this record only; the parse always completes
			p.log.Errorw("record failed", "page", frag.Page, "line", frag.Line, "error", err)
		}
	}
}

// resolveInto consults the fallback resolver for one fragment and injects any
// returned candidates as if they had been recognized directly. It reports
// whether candidates were injected; a timeout, error, or empty answer leaves
// the caller to flag the line.
func (p *Parser) resolveInto(ctx context.Context, builder *StackBuilder, frag Fragment) bool {
	lineCtx := fallback.LineContext{
		PreviousGeneration: builder.Depth(),
		PreviousName:       builder.SubjectName(),
	}
	candidates, err := p.resolver.ResolveLine(ctx, frag.Text, lineCtx)
	if err != nil {
		p.log.Warnw("fallback failed, line stays flagged", "page", frag.Page, "line", frag.Line, "error", err)
		return false
	}
	if len(candidates) == 0 {
		return false
	}

	injected := false
	for i, cand := range candidates {
		if err := p.injectCandidate(ctx, builder, frag, cand, i); err != nil {
			p.log.Errorw("candidate injection failed", "page", frag.Page, "line", frag.Line, "error", err)
			continue
		}
		injected = true
	}
	return injected
}

// injectCandidate re-enters the stack builder with a structured record from
// the fallback. Generation fidelity is trusted to the resolver's stated
// generation; when omitted it defaults to the previous sibling's depth.
func (p *Parser) injectCandidate(ctx context.Context, builder *StackBuilder, frag Fragment, cand fallback.Candidate, ordinal int) error {
	keyText := frag.Text
	if ordinal > 0 {
		keyText = fmt.Sprintf("%s#%d", frag.Text, ordinal)
	}

	build := func(gen int, surnameHint string) IndividualDraft {
		return draftFromCandidate(builder.sourceID, gen, surnameHint, frag, cand, keyText)
	}

	if cand.IsSpouse {
		return builder.addSpouse(ctx, frag, func(gen int) IndividualDraft {
			return build(gen, "")
		})
	}

	gen := builder.Depth()
	if cand.Generation != nil {
		gen = *cand.Generation
	}
	if gen < 1 {
		gen = 1
	}
	return builder.addPerson(ctx, gen, func(surnameHint string) IndividualDraft {
		return build(gen, surnameHint)
	})
}

func draftFromCandidate(sourceID uint, gen int, surnameHint string, frag Fragment, cand fallback.Candidate, keyText string) IndividualDraft {
	name := NormalizeText(cand.Name)
	given, surname := ParseName(name, surnameHint)

	draft := IndividualDraft{
		SourceID:    sourceID,
		Gen:         gen,
		Name:        name,
		BirthApprox: cand.BirthApprox,
		DeathApprox: cand.DeathApprox,
		PageIndex:   frag.Page,
		LineIndex:   frag.Line,
		ContentKey:  ContentKey(sourceID, frag.Page, frag.Line, keyText),
	}
	if given != "" {
		draft.Given = &given
	}
	if surname != "" {
		draft.Surname = &surname
	}
	if cand.BirthYear != nil {
		birth := strconv.Itoa(*cand.BirthYear)
		draft.Birth = &birth
	}
	if cand.DeathYear != nil {
		death := strconv.Itoa(*cand.DeathYear)
		draft.Death = &death
	}
	return draft
}

// wholeLineFragment wraps a full physical line for fallback escalation.
func wholeLineFragment(line Line) Fragment {
	return Fragment{
		Kind:       KindUnrecognized,
		Body:       line.Text,
		Text:       line.Text,
		Raw:        line.Raw,
		Page:       line.Page,
		Line:       line.Index,
		Confidence: line.Confidence,
	}
}
