// Package render formats session reports. Every renderer marks unverified
// claims explicitly; none presents a failed claim as authoritative.
package render

import (
	"fmt"
	"strings"

	"github.com/ppiankov/ttpmap/internal/model"
)

// Renderer formats a Report into bytes for output
type Renderer interface {
	Render(report *model.Report) ([]byte, error)
}

// Formats lists the accepted format names
var Formats = []string{"text", "json", "md"}

// NewRenderer returns a Renderer for format: text (default), json or md
func NewRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return &textRenderer{}, nil
	case "json":
		return &jsonRenderer{}, nil
	case "md", "markdown":
		return &markdownRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q: supported formats are %s", format, strings.Join(Formats, ", "))
	}
}

// section groups results under a heading in the order they are displayed
type section struct {
	Title   string
	Results []model.VerificationResult
}

func sections(report *model.Report) []section {
	groups := []struct {
		title string
		fw    model.Framework
		kind  model.RecordKind
	}{
		{"MITRE ATT&CK Techniques", model.FrameworkMITRE, ""},
		{"Knowledge", model.FrameworkKSA, model.KindKnowledge},
		{"Skills", model.FrameworkKSA, model.KindSkill},
		{"Abilities", model.FrameworkKSA, model.KindAbility},
		{"Tasks", model.FrameworkKSA, model.KindTask},
	}

	var out []section
	used := make([]bool, len(report.Results))
	for _, g := range groups {
		var s section
		s.Title = g.title
		for i, r := range report.Results {
			if used[i] || r.Claim.Framework != g.fw {
				continue
			}
			if g.kind != "" && r.Claim.Kind != g.kind {
				continue
			}
			used[i] = true
			s.Results = append(s.Results, r)
		}
		if len(s.Results) > 0 {
			out = append(out, s)
		}
	}

	var rest section
	rest.Title = "Other"
	for i, r := range report.Results {
		if !used[i] {
			rest.Results = append(rest.Results, r)
		}
	}
	if len(rest.Results) > 0 {
		out = append(out, rest)
	}
	return out
}

// statusLabel is the marker printed next to a claim
func statusLabel(status model.VerificationStatus) string {
	switch status {
	case model.StatusVerified:
		return "verified"
	case model.StatusUnknownCode:
		return "UNVERIFIED: code not in corpus"
	case model.StatusMismatch:
		return "UNVERIFIED: description mismatch"
	default:
		return "UNVERIFIED"
	}
}

func outcomeHeadline(report *model.Report) string {
	switch report.Outcome {
	case model.OutcomeAccepted:
		return fmt.Sprintf("ACCEPTED after %d of %d attempt(s)", report.Attempts, report.MaxAttempts)
	case model.OutcomeExhaustedFailed:
		return fmt.Sprintf("EXHAUSTED after %d attempt(s): best-effort draft, %d unverified claim(s)",
			report.Attempts, len(report.Unresolved))
	default:
		return strings.ToUpper(string(report.Outcome))
	}
}
