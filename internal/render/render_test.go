package render

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/ttpmap/internal/model"
)

func sampleReport() *model.Report {
	recovery := model.FrameworkRecord{
		Code:          "T1490",
		Framework:     model.FrameworkMITRE,
		Name:          "Inhibit System Recovery",
		CanonicalText: "Adversaries may delete or remove built-in data to prevent recovery.",
	}
	verified := model.VerificationResult{
		Claim:         model.ClaimedMapping{Code: "T1490", ClaimedDescription: "Inhibit System Recovery", Framework: model.FrameworkMITRE, Kind: model.KindTechnique},
		Status:        model.StatusVerified,
		MatchedRecord: &recovery,
		Similarity:    1,
		Rationale:     "3 of 3 claim terms found in canonical text (similarity 1.00)",
	}
	mismatch := model.VerificationResult{
		Claim:         model.ClaimedMapping{Code: "T1490", ClaimedDescription: "Credential dumping via memory", Framework: model.FrameworkMITRE, Kind: model.KindTechnique},
		Status:        model.StatusMismatch,
		MatchedRecord: &recovery,
		Rationale:     "similarity 0.00 below threshold 0.50",
	}
	unknown := model.VerificationResult{
		Claim:     model.ClaimedMapping{Code: "K9999", ClaimedDescription: "Knowledge of imaginary | things", Framework: model.FrameworkKSA, Kind: model.KindKnowledge},
		Status:    model.StatusUnknownCode,
		Rationale: `no ksa record with code "K9999" in corpus`,
	}

	results := []model.VerificationResult{verified, mismatch, unknown}
	return &model.Report{
		SessionID:   "abc",
		Focus:       model.FocusBoth,
		Outcome:     model.OutcomeExhaustedFailed,
		Attempts:    3,
		MaxAttempts: 3,
		StartedAt:   time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		Draft: &model.Draft{
			Narrative:     "Backups were deleted before encryption.",
			Justification: "Shadow copies removed.",
		},
		Results:    results,
		Unresolved: []model.VerificationResult{mismatch, unknown},
		Score: model.Score{
			Index:      33,
			Confidence: "low",
			Signals: []model.Signal{
				{Type: model.SignalFabricatedCodes, Severity: model.SeverityCritical, Description: "1 claimed code(s) do not exist in the corpus"},
			},
		},
		History:  []model.AttemptRecord{{Attempt: 1, Claims: 3, Verified: 1}},
		Provider: "openai",
		Model:    "gpt-4o-mini",
	}
}

func TestNewRenderer_Unknown(t *testing.T) {
	if _, err := NewRenderer("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestTextRenderer_FlagsUnverified(t *testing.T) {
	r, err := NewRenderer("text")
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	out, err := r.Render(sampleReport())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	s := string(out)

	for _, want := range []string{
		"EXHAUSTED after 3 attempt(s): best-effort draft, 2 unverified claim(s)",
		"Generator: openai (gpt-4o-mini)",
		"MITRE ATT&CK Techniques:",
		"✓ T1490",
		"[UNVERIFIED: description mismatch]",
		"Knowledge:",
		"[UNVERIFIED: code not in corpus]",
		"Grounding: 33/100 (low confidence)",
		"[CRITICAL] 1 claimed code(s)",
		"2 claim(s) above are NOT verified",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("text output missing %q\n%s", want, s)
		}
	}
	if strings.Count(s, "✗") != 2 {
		t.Errorf("expected 2 unverified markers, got %d", strings.Count(s, "✗"))
	}
}

func TestMarkdownRenderer(t *testing.T) {
	r, err := NewRenderer("md")
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	out, err := r.Render(sampleReport())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	s := string(out)

	for _, want := range []string{
		"# ttpmap Report",
		"> **Warning:** 2 claim(s) below are NOT verified",
		"## MITRE ATT&CK Techniques",
		"| `T1490` | Inhibit System Recovery | ✓ verified |",
		"⚠ **UNVERIFIED: description mismatch**",
		`Knowledge of imaginary \| things`,
		"**Credential dumping via memory**",
		"## Justification",
		"- Attempt 1: 1/3 verified",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("markdown output missing %q\n%s", want, s)
		}
	}
}

func TestJSONRenderer(t *testing.T) {
	r, _ := NewRenderer("json")
	out, err := r.Render(sampleReport())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["outcome"] != "exhausted_failed" {
		t.Errorf("expected outcome exhausted_failed, got %v", decoded["outcome"])
	}
	unresolved, _ := decoded["unresolved"].([]interface{})
	if len(unresolved) != 2 {
		t.Errorf("expected 2 unresolved results, got %d", len(unresolved))
	}
}

func TestMarkupDiff(t *testing.T) {
	got := MarkupDiff("delete shadow copies", "delete all backups")
	if !strings.HasPrefix(got, "delete") {
		t.Errorf("expected shared prefix kept, got %q", got)
	}
	if !strings.Contains(got, "~~shadow copies~~") || !strings.Contains(got, "**all backups**") {
		t.Errorf("unexpected diff markup %q", got)
	}

	if MarkupDiff("same words", "same words") != "same words" {
		t.Errorf("identical text should render unchanged")
	}
}
