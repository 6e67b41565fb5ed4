package model

import "time"

// Report is the complete output of one mapping session
type Report struct {
	SessionID   string    `json:"session_id"`
	Input       string    `json:"input"`
	Focus       Focus     `json:"focus"`
	Outcome     Outcome   `json:"outcome"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`

	Draft      *Draft               `json:"draft,omitempty"`      // Accepted draft, or best effort when exhausted
	Results    []VerificationResult `json:"results"`              // One per in-focus claim of Draft
	Unresolved []VerificationResult `json:"unresolved,omitempty"` // Failed subset, flagged as unverified

	Score   Score           `json:"score"`   // Grounding breakdown, derived from Results only
	History []AttemptRecord `json:"history"` // One entry per generator invocation

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Verified reports whether every in-focus claim was grounded
func (r *Report) Verified() bool {
	return r.Outcome == OutcomeAccepted
}

// ResultFor returns the verification result of a claim, if it was in focus
func (r *Report) ResultFor(claim ClaimedMapping) (VerificationResult, bool) {
	for _, res := range r.Results {
		if res.Claim == claim {
			return res, true
		}
	}
	return VerificationResult{}, false
}

// Score is the transparent grounding breakdown
type Score struct {
	Index      int      `json:"index"`      // Share of in-focus claims verified (0-100)
	Confidence string   `json:"confidence"` // "low", "medium", "high"
	Signals    []Signal `json:"signals"`
}

// Signal is a diagnostic with the data used to compute it
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies a grounding signal
type SignalType string

const (
	SignalGroundingCoverage SignalType = "grounding_coverage" // Verified-to-claim ratio
	SignalFabricatedCodes   SignalType = "fabricated_codes"   // Codes absent from the corpus
	SignalDescriptionDrift  SignalType = "description_drift"  // Real codes, wrong descriptions
	SignalRetriesUsed       SignalType = "retries_used"       // Feedback rounds needed
	SignalEmptyFocus        SignalType = "empty_focus"        // No claims for the requested focus
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
