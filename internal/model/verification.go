package model

// VerificationStatus is the outcome of grounding one claim
type VerificationStatus string

const (
	StatusVerified    VerificationStatus = "verified"
	StatusUnknownCode VerificationStatus = "unknown_code"
	StatusMismatch    VerificationStatus = "mismatch"
)

func (s VerificationStatus) String() string {
	return string(s)
}

// VerificationResult is the per-claim judgment
type VerificationResult struct {
	Claim         ClaimedMapping     `json:"claim"`
	Status        VerificationStatus `json:"status"`
	MatchedRecord *FrameworkRecord   `json:"matched_record,omitempty"`
	Similarity    float64            `json:"similarity"`
	Rationale     string             `json:"rationale,omitempty"`
}

// IsVerified reports whether the claim is grounded in the corpus
func (r VerificationResult) IsVerified() bool {
	return r.Status == StatusVerified
}

// AllVerified reports whether every result is verified. An empty slice
// is not considered verified.
func AllVerified(results []VerificationResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.IsVerified() {
			return false
		}
	}
	return true
}

// CountVerified returns the number of verified results
func CountVerified(results []VerificationResult) int {
	count := 0
	for _, r := range results {
		if r.IsVerified() {
			count++
		}
	}
	return count
}

// Unresolved returns the results that failed verification, in order
func Unresolved(results []VerificationResult) []VerificationResult {
	var out []VerificationResult
	for _, r := range results {
		if !r.IsVerified() {
			out = append(out, r)
		}
	}
	return out
}
