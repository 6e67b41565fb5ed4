package session

import (
	"errors"
	"fmt"

	"github.com/ppiankov/ttpmap/internal/model"
)

// ErrIllegalTransition is returned when the loop attempts a move the
// transition table does not allow. It indicates a bug, not bad input.
var ErrIllegalTransition = errors.New("illegal session transition")

var transitions = map[model.LoopState][]model.LoopState{
	model.StateStart:      {model.StateGenerating},
	model.StateGenerating: {model.StateVerifying, model.StateFailed},
	model.StateVerifying:  {model.StateAccepted, model.StateRetrying, model.StateExhausted},
	model.StateRetrying:   {model.StateGenerating},
}

// CanTransition reports whether from -> to is a legal move
func CanTransition(from, to model.LoopState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// advance moves st to the next state and keeps Outcome in step with it
func advance(st *model.SessionState, to model.LoopState) error {
	if !CanTransition(st.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, st.State, to)
	}
	st.State = to

	switch to {
	case model.StateAccepted:
		st.Outcome = model.OutcomeAccepted
	case model.StateExhausted:
		st.Outcome = model.OutcomeExhaustedFailed
	}
	return nil
}
