package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/ppiankov/ttpmap/internal/model"
)

type markdownRenderer struct{}

var mdFuncs = template.FuncMap{
	"headline": outcomeHeadline,
	"sections": sections,
	"status":   statusLabel,
	"diff":     claimDiff,
	"upper":    strings.ToUpper,
	"cell":     escapeCell,
}

var mdTemplate = template.Must(template.New("report").Funcs(mdFuncs).Parse(`# ttpmap Report

**Outcome:** {{ headline . }}
**Session:** ` + "`{{ .SessionID }}`" + ` | **Focus:** {{ .Focus }}{{ if .Provider }} | **Generator:** {{ .Provider }}{{ if .Model }} ({{ .Model }}){{ end }}{{ end }}
**Grounding:** {{ .Score.Index }}/100 ({{ .Score.Confidence }} confidence)
{{ if .Unresolved }}
> **Warning:** {{ len .Unresolved }} claim(s) below are NOT verified against the corpus and must not be treated as authoritative.
{{ end }}{{ with .Draft }}{{ if .Narrative }}
## Summary

{{ .Narrative }}
{{ end }}{{ end }}{{ range sections . }}
## {{ .Title }}

| Code | Claimed description | Status |
|------|---------------------|--------|
{{ range .Results }}| ` + "`{{ .Claim.Code }}`" + ` | {{ cell .Claim.ClaimedDescription }} | {{ if .IsVerified }}✓ verified{{ else }}⚠ **{{ status .Status }}**{{ end }} |
{{ end }}{{ range .Results }}{{ if not .IsVerified }}
**{{ .Claim.Code }}** ({{ .Claim.Framework }}): {{ .Rationale }}
{{ with diff . }}
Diff against canonical text (~~canonical only~~, **claimed only**):

> {{ . }}
{{ end }}{{ end }}{{ end }}{{ end }}{{ if not .Results }}
_No {{ .Focus }} mappings were produced._
{{ end }}{{ with .Draft }}{{ if .Justification }}
## Justification

{{ .Justification }}
{{ end }}{{ end }}
## Signals
{{ range .Score.Signals }}
- **{{ upper (printf "%s" .Severity) }}** ` + "`{{ .Type }}`" + `: {{ .Description }}{{ end }}
{{ if .History }}
## Attempts
{{ range .History }}
- Attempt {{ .Attempt }}: {{ .Verified }}/{{ .Claims }} verified{{ end }}
{{ end }}`))

func (r *markdownRenderer) Render(report *model.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := mdTemplate.Execute(&buf, report); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// claimDiff marks up where a mismatched claim departs from the canonical text.
// It is empty for results without a matched record.
func claimDiff(res model.VerificationResult) string {
	if res.Status != model.StatusMismatch || res.MatchedRecord == nil {
		return ""
	}
	return MarkupDiff(res.MatchedRecord.FullText(), res.Claim.ClaimedDescription)
}

// MarkupDiff renders a word-level diff from canonical to claimed as markdown
func MarkupDiff(canonical, claimed string) string {
	dmp := diffmatchpatch.New()

	// map each word to a rune so the diff runs on whole words
	a, b, words := dmp.DiffLinesToRunes(wordLines(canonical), wordLines(claimed))
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(a, b, false), words)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var out strings.Builder
	for _, d := range diffs {
		text := strings.TrimSpace(strings.ReplaceAll(d.Text, "\n", " "))
		if text == "" {
			continue
		}
		if out.Len() > 0 {
			out.WriteString(" ")
		}
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			out.WriteString("~~" + text + "~~")
		case diffmatchpatch.DiffInsert:
			out.WriteString("**" + text + "**")
		default:
			out.WriteString(text)
		}
	}
	return out.String()
}

func wordLines(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.Join(fields, "\n") + "\n"
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
