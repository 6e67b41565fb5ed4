// Package generate produces candidate mapping drafts from an opaque
// text-generation backend.
package generate

import (
	"context"

	"github.com/ppiankov/ttpmap/internal/model"
)

// Request is the input for one generator invocation
type Request struct {
	Input    string      // Raw user description
	Focus    model.Focus // Framework emphasis for the session
	Feedback string      // Verification feedback from the previous attempt, empty on the first
	Attempt  int         // 1-based attempt number
}

// Generator returns a structured candidate draft or fails. A malformed
// answer is reported as an error wrapping model.ErrMalformedDraft.
type Generator interface {
	Generate(ctx context.Context, req Request) (*model.Draft, error)
}

// Func adapts an ordinary function to the Generator interface
type Func func(ctx context.Context, req Request) (*model.Draft, error)

func (f Func) Generate(ctx context.Context, req Request) (*model.Draft, error) {
	return f(ctx, req)
}
