package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ppiankov/ttpmap/internal/model"
)

type textRenderer struct{}

func (r *textRenderer) Render(report *model.Report) ([]byte, error) {
	var b bytes.Buffer

	fmt.Fprintf(&b, "%s\n", outcomeHeadline(report))
	fmt.Fprintf(&b, "Session: %s | Focus: %s", report.SessionID, report.Focus)
	if report.Provider != "" {
		fmt.Fprintf(&b, " | Generator: %s", report.Provider)
		if report.Model != "" {
			fmt.Fprintf(&b, " (%s)", report.Model)
		}
	}
	b.WriteString("\n")

	if report.Draft != nil && report.Draft.Narrative != "" {
		fmt.Fprintf(&b, "\nSummary:\n  %s\n", report.Draft.Narrative)
	}

	if len(report.Results) == 0 {
		fmt.Fprintf(&b, "\nNo %s mappings were produced.\n", report.Focus)
	}
	for _, s := range sections(report) {
		fmt.Fprintf(&b, "\n%s:\n", s.Title)
		for _, res := range s.Results {
			mark := "✓"
			if !res.IsVerified() {
				mark = "✗"
			}
			fmt.Fprintf(&b, "  %s %-10s %s", mark, res.Claim.Code, res.Claim.ClaimedDescription)
			if !res.IsVerified() {
				fmt.Fprintf(&b, "  [%s]", statusLabel(res.Status))
			}
			b.WriteString("\n")
			if !res.IsVerified() && res.Rationale != "" {
				fmt.Fprintf(&b, "      %s\n", res.Rationale)
			}
		}
	}

	if report.Draft != nil && report.Draft.Justification != "" {
		fmt.Fprintf(&b, "\nJustification:\n  %s\n", report.Draft.Justification)
	}

	fmt.Fprintf(&b, "\nGrounding: %d/100 (%s confidence)\n", report.Score.Index, report.Score.Confidence)
	for _, sig := range report.Score.Signals {
		if sig.Severity == model.SeverityInfo {
			continue
		}
		fmt.Fprintf(&b, "  [%s] %s\n", strings.ToUpper(string(sig.Severity)), sig.Description)
	}

	if len(report.Unresolved) > 0 {
		fmt.Fprintf(&b, "\nWARNING: %d claim(s) above are NOT verified against the corpus and must not be treated as authoritative.\n",
			len(report.Unresolved))
	}
	return b.Bytes(), nil
}
