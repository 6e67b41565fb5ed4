package verify

import (
	"fmt"
	"strings"

	"github.com/ppiankov/ttpmap/internal/model"
	"github.com/ppiankov/ttpmap/internal/util"
)

// ExcerptLength caps the canonical text quoted in a mismatch rationale
const ExcerptLength = 160

// Corpus is the read-only lookup the engine needs
type Corpus interface {
	Lookup(fw model.Framework, code string) (model.FrameworkRecord, bool)
}

// Engine grounds claimed mappings against the corpus. It holds no mutable
// state; identical inputs always produce identical results.
type Engine struct {
	corpus    Corpus
	threshold float64
}

type Option func(*Engine)

// WithThreshold overrides τ. Values outside (0, 1] are ignored.
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 && t <= 1 {
			e.threshold = t
		}
	}
}

// New creates an engine over corpus
func New(corpus Corpus, opts ...Option) *Engine {
	e := &Engine{
		corpus:    corpus,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold returns the acceptance threshold in use
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Verify returns one result per claim, in input order
func (e *Engine) Verify(claims []model.ClaimedMapping) []model.VerificationResult {
	results := make([]model.VerificationResult, len(claims))
	for i, claim := range claims {
		results[i] = e.VerifyClaim(claim)
	}
	return results
}

// VerifyClaim classifies a single claim
func (e *Engine) VerifyClaim(claim model.ClaimedMapping) model.VerificationResult {
	rec, ok := e.corpus.Lookup(claim.Framework, claim.Code)
	if !ok {
		return model.VerificationResult{
			Claim:     claim,
			Status:    model.StatusUnknownCode,
			Rationale: fmt.Sprintf("no %s record with code %q in corpus", claim.Framework, claim.Code),
		}
	}

	matched := rec
	overlap := Compare(claim.ClaimedDescription, rec.FullText())
	result := model.VerificationResult{
		Claim:         claim,
		MatchedRecord: &matched,
		Similarity:    overlap.Score(),
	}

	switch {
	case overlap.ClaimTerms == 0:
		result.Status = model.StatusMismatch
		result.Rationale = fmt.Sprintf("claimed description has no significant terms; canonical text: %q",
			Excerpt(rec.FullText()))
	case overlap.Passes(e.threshold):
		result.Status = model.StatusVerified
		result.Rationale = fmt.Sprintf("%d of %d claim terms found in canonical text (similarity %.2f)",
			overlap.SharedTerms, overlap.ClaimTerms, overlap.Score())
	default:
		result.Status = model.StatusMismatch
		result.Rationale = fmt.Sprintf("similarity %.2f below threshold %.2f (%d of %d terms shared, unmatched: %s); canonical text: %q",
			overlap.Score(), e.threshold, overlap.SharedTerms, overlap.ClaimTerms,
			strings.Join(overlap.Missing, ", "), Excerpt(rec.FullText()))
	}
	return result
}

// Excerpt returns the canonical text trimmed to ExcerptLength runes
func Excerpt(text string) string {
	return util.Truncate(strings.Join(strings.Fields(text), " "), ExcerptLength)
}
