package session

import (
	"fmt"
	"strings"

	"github.com/ppiankov/ttpmap/internal/generate"
	"github.com/ppiankov/ttpmap/internal/model"
	"github.com/ppiankov/ttpmap/internal/verify"
)

const (
	reasonUnknownCode = "code does not exist in corpus"
	reasonMismatch    = "claimed description conflicts with canonical text"
)

// relatedLimit caps the general suggestions added to failing feedback
const relatedLimit = 4

// Suggester proposes corpus records for failing feedback: a replacement for
// a claim whose code does not exist, and records related to the activity.
type Suggester interface {
	Suggest(claim model.ClaimedMapping) (model.FrameworkRecord, bool)
	Related(text string, focus model.Focus, limit int, skip map[model.RecordKey]bool) []model.FrameworkRecord
}

// BuildFeedback renders the failing results of one attempt as the text fed
// to the next generator call. Verified results are not mentioned. query is
// the activity text searched for related records; suggester may be nil.
func BuildFeedback(query string, focus model.Focus, results []model.VerificationResult, suggester Suggester) string {
	var b strings.Builder
	var suggestions []string
	skip := make(map[model.RecordKey]bool)
	for _, r := range results {
		skip[r.Claim.Key()] = true
	}

	if len(results) == 0 {
		fmt.Fprintf(&b, "- no %s mappings were returned\n", focusLabel(focus))
	}
	for _, r := range model.Unresolved(results) {
		switch r.Status {
		case model.StatusUnknownCode:
			fmt.Fprintf(&b, "- %s (%s): %s\n", r.Claim.Code, r.Claim.Framework, reasonUnknownCode)
			if suggester == nil {
				continue
			}
			if rec, ok := suggester.Suggest(r.Claim); ok {
				suggestions = append(suggestions, fmt.Sprintf("- instead of %s use %s: %s",
					r.Claim.Code, rec.Code, verify.Excerpt(rec.FullText())))
				skip[rec.Key()] = true
			}
		case model.StatusMismatch:
			excerpt := ""
			if r.MatchedRecord != nil {
				excerpt = verify.Excerpt(r.MatchedRecord.FullText())
			}
			fmt.Fprintf(&b, "- %s (%s): %s: %q\n", r.Claim.Code, r.Claim.Framework, reasonMismatch, excerpt)
		}
	}

	if suggester != nil {
		for _, rec := range suggester.Related(query, focus, relatedLimit, skip) {
			suggestions = append(suggestions, fmt.Sprintf("- related: %s (%s): %s",
				rec.Code, rec.Framework, verify.Excerpt(rec.FullText())))
		}
	}

	if len(suggestions) > 0 {
		b.WriteString("\n" + generate.SuggestionsMarker + "\n")
		b.WriteString(strings.Join(suggestions, "\n"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func focusLabel(focus model.Focus) string {
	switch focus {
	case model.FocusMITRE:
		return "mitre"
	case model.FocusKSA:
		return "ksa"
	default:
		return "mitre or ksa"
	}
}
