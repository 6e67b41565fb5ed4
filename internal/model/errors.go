package model

import "errors"

// Sentinel errors for the session boundary. Lower layers wrap these with %w so
// the CLI can map them to exit codes with errors.Is.
var (
	// ErrConfiguration means the session cannot start (missing credential, bad corpus path)
	ErrConfiguration = errors.New("configuration error")

	// ErrGeneration means the draft generator failed; it is never retried through
	// the verification feedback path
	ErrGeneration = errors.New("generation failure")

	// ErrMalformedDraft means the generator answered but the output could not be parsed
	ErrMalformedDraft = errors.New("malformed draft")

	// ErrExhausted marks a session that ended with unresolved claims
	ErrExhausted = errors.New("verification exhausted")
)

// MalformedDraftError carries a short excerpt of the unparseable output
type MalformedDraftError struct {
	Excerpt string
	Err     error
}

func (e *MalformedDraftError) Error() string {
	if e.Err != nil {
		return "malformed draft: " + e.Err.Error()
	}
	return "malformed draft"
}

// Is lets errors.Is match both ErrMalformedDraft and ErrGeneration
func (e *MalformedDraftError) Is(target error) bool {
	return target == ErrMalformedDraft || target == ErrGeneration
}

func (e *MalformedDraftError) Unwrap() error {
	return e.Err
}
