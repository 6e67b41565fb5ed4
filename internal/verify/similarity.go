package verify

import "github.com/ppiankov/ttpmap/internal/util"

// DefaultThreshold is the acceptance boundary τ. A claim is grounded when at
// least half of its significant terms appear in the canonical text.
const DefaultThreshold = 0.5

// minSharedTerms is the absolute overlap floor, capped by the claim's own size,
// so a single shared word cannot ground a multi-word description.
const minSharedTerms = 2

// Overlap is the token-set comparison of a claim against canonical text
type Overlap struct {
	ClaimTerms  int      // significant terms in the claim
	SharedTerms int      // claim terms also present in the canonical text
	Missing     []string // claim terms absent from the canonical text, in claim order
}

// Score is |C ∩ K| / |C|; zero when the claim has no significant terms
func (o Overlap) Score() float64 {
	if o.ClaimTerms == 0 {
		return 0
	}
	return float64(o.SharedTerms) / float64(o.ClaimTerms)
}

// Passes reports whether the overlap clears threshold and the shared-term floor
func (o Overlap) Passes(threshold float64) bool {
	if o.ClaimTerms == 0 {
		return false
	}
	floor := minSharedTerms
	if o.ClaimTerms < floor {
		floor = o.ClaimTerms
	}
	return o.Score() >= threshold && o.SharedTerms >= floor
}

// Compare measures how much of claim is covered by canonical. Both sides are
// lowercased, stripped of stop words and short words, and truncated to stems.
func Compare(claim, canonical string) Overlap {
	claimStems := util.Stems(claim)
	canonicalSet := util.StemSet(canonical)

	o := Overlap{ClaimTerms: len(claimStems)}
	for _, st := range claimStems {
		if _, ok := canonicalSet[st]; ok {
			o.SharedTerms++
		} else {
			o.Missing = append(o.Missing, st)
		}
	}
	return o
}
