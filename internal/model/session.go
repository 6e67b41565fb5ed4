package model

// DefaultMaxAttempts bounds generator invocations per session
const DefaultMaxAttempts = 3

// Outcome is the externally visible result of a session
type Outcome string

const (
	OutcomePending         Outcome = "pending"
	OutcomeAccepted        Outcome = "accepted"
	OutcomeExhaustedFailed Outcome = "exhausted_failed"
)

// LoopState is the position of a session in the generate-verify loop
type LoopState string

const (
	StateStart      LoopState = "start"
	StateGenerating LoopState = "generating"
	StateVerifying  LoopState = "verifying"
	StateRetrying   LoopState = "retrying"
	StateAccepted   LoopState = "accepted"
	StateExhausted  LoopState = "exhausted"
	StateFailed     LoopState = "failed"
)

// Terminal reports whether no further transition is possible
func (s LoopState) Terminal() bool {
	return s == StateAccepted || s == StateExhausted || s == StateFailed
}

// SessionState is the control loop's working state. It is owned by exactly one
// session and discarded when the session ends.
type SessionState struct {
	ID           string    `json:"id"`
	State        LoopState `json:"state"`
	AttemptCount int       `json:"attempt_count"`
	MaxAttempts  int       `json:"max_attempts"`
	LastFeedback string    `json:"last_feedback,omitempty"`
	Outcome      Outcome   `json:"outcome"`
}

// NewSessionState returns the initial state for a session
func NewSessionState(id string, maxAttempts int) SessionState {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return SessionState{
		ID:          id,
		State:       StateStart,
		MaxAttempts: maxAttempts,
		Outcome:     OutcomePending,
	}
}

// CanRetry reports whether another generator invocation is allowed
func (s SessionState) CanRetry() bool {
	return s.AttemptCount < s.MaxAttempts
}

// AttemptRecord summarizes one generate-verify round for the report
type AttemptRecord struct {
	Attempt  int    `json:"attempt"`
	Claims   int    `json:"claims"`   // In-focus claims in the draft
	Verified int    `json:"verified"` // Of which verified
	Feedback string `json:"feedback,omitempty"`
}
