package score

import (
	"fmt"
	"sort"

	"github.com/ppiankov/ttpmap/internal/model"
)

// Scorer turns verification results into a grounding index and diagnostic signals.
// The score is derived from results only; it never changes a claim's status.
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate computes the grounding score of one session's final draft
func (s *Scorer) Calculate(results []model.VerificationResult, attempts, maxAttempts int, focus model.Focus) model.Score {
	var signals []model.Signal

	// 1. Grounding coverage (the index itself)
	index, coverageSignal := s.calculateCoverage(results)
	signals = append(signals, coverageSignal)

	if len(results) == 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalEmptyFocus,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("No %s mappings in the final draft", focus),
			Data: map[string]interface{}{
				"focus": string(focus),
			},
		})
	}

	// 2. Fabricated codes
	fabricated, fabricatedSignal := s.detectFabricated(results)
	signals = append(signals, fabricatedSignal)

	// 3. Description drift
	signals = append(signals, s.detectDrift(results))

	// 4. Retries used
	signals = append(signals, s.retriesSignal(attempts, maxAttempts, model.AllVerified(results)))

	return model.Score{
		Index:      index,
		Confidence: s.determineConfidence(index, len(results), fabricated),
		Signals:    signals,
	}
}

// calculateCoverage returns the verified share as 0-100
func (s *Scorer) calculateCoverage(results []model.VerificationResult) (int, model.Signal) {
	total := len(results)
	if total == 0 {
		return 0, model.Signal{
			Type:        model.SignalGroundingCoverage,
			Severity:    model.SeverityCritical,
			Description: "No claims to verify",
			Data: map[string]interface{}{
				"claims":   0,
				"verified": 0,
			},
		}
	}

	verified := model.CountVerified(results)
	ratio := float64(verified) / float64(total)
	index := verified * 100 / total

	severity := model.SeverityInfo
	if ratio < 0.5 {
		severity = model.SeverityCritical
	} else if ratio < 1.0 {
		severity = model.SeverityWarning
	}

	byFramework := make(map[string]string)
	for _, fw := range []model.Framework{model.FrameworkMITRE, model.FrameworkKSA} {
		n, v := 0, 0
		for _, r := range results {
			if r.Claim.Framework != fw {
				continue
			}
			n++
			if r.IsVerified() {
				v++
			}
		}
		if n > 0 {
			byFramework[string(fw)] = fmt.Sprintf("%d/%d", v, n)
		}
	}

	return index, model.Signal{
		Type:        model.SignalGroundingCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("%d of %d claims verified against the corpus", verified, total),
		Data: map[string]interface{}{
			"claims":       total,
			"verified":     verified,
			"ratio":        ratio,
			"by_framework": byFramework,
			"formula":      "verified_count * 100 / claim_count",
		},
	}
}

// detectFabricated lists claimed codes that do not exist in the corpus
func (s *Scorer) detectFabricated(results []model.VerificationResult) (int, model.Signal) {
	codes := codesWithStatus(results, model.StatusUnknownCode)
	if len(codes) == 0 {
		return 0, model.Signal{
			Type:        model.SignalFabricatedCodes,
			Severity:    model.SeverityInfo,
			Description: "Every claimed code exists in the corpus",
		}
	}
	return len(codes), model.Signal{
		Type:        model.SignalFabricatedCodes,
		Severity:    model.SeverityCritical,
		Description: fmt.Sprintf("%d claimed code(s) do not exist in the corpus", len(codes)),
		Data: map[string]interface{}{
			"codes": codes,
		},
	}
}

// detectDrift lists real codes whose claimed description conflicts with the canonical text
func (s *Scorer) detectDrift(results []model.VerificationResult) model.Signal {
	codes := codesWithStatus(results, model.StatusMismatch)
	if len(codes) == 0 {
		return model.Signal{
			Type:        model.SignalDescriptionDrift,
			Severity:    model.SeverityInfo,
			Description: "No description drift detected",
		}
	}

	var lowest float64 = 1
	for _, r := range results {
		if r.Status == model.StatusMismatch && r.Similarity < lowest {
			lowest = r.Similarity
		}
	}
	return model.Signal{
		Type:        model.SignalDescriptionDrift,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%d claim(s) describe a real code incorrectly", len(codes)),
		Data: map[string]interface{}{
			"codes":             codes,
			"lowest_similarity": lowest,
			"explanation":       "The code exists but the generated description does not overlap enough with the canonical definition",
		},
	}
}

func (s *Scorer) retriesSignal(attempts, maxAttempts int, verified bool) model.Signal {
	retries := attempts - 1
	if retries < 0 {
		retries = 0
	}

	severity := model.SeverityInfo
	description := fmt.Sprintf("Accepted after %d attempt(s)", attempts)
	if !verified {
		severity = model.SeverityWarning
		description = fmt.Sprintf("Unresolved after %d of %d attempts", attempts, maxAttempts)
	}

	return model.Signal{
		Type:        model.SignalRetriesUsed,
		Severity:    severity,
		Description: description,
		Data: map[string]interface{}{
			"attempts":     attempts,
			"max_attempts": maxAttempts,
			"retries":      retries,
		},
	}
}

// determineConfidence determines the confidence level based on the score
func (s *Scorer) determineConfidence(index int, claims int, fabricated int) string {
	if claims == 0 || fabricated > 0 {
		return "low"
	}

	if index >= 100 {
		return "high"
	} else if index >= 60 {
		return "medium"
	} else {
		return "low"
	}
}

func codesWithStatus(results []model.VerificationResult, status model.VerificationStatus) []string {
	var codes []string
	for _, r := range results {
		if r.Status == status {
			codes = append(codes, r.Claim.Key().String())
		}
	}
	sort.Strings(codes)
	return codes
}
